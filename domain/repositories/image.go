package repositories

import "github.com/satriahrh/fixit/server/domain/entities"

// ImageProcessor turns an uploaded payload into a model-ready image
type ImageProcessor interface {
	// Decode accepts raw base64 or a data URL
	Decode(encoded string) (*entities.ImagePart, error)
}
