package repositories

import "github.com/satriahrh/fixit/server/domain/entities"

// Narrator produces the short spoken summary of a response
type Narrator interface {
	Narrate(resp *entities.TroubleshootResponse) string
}
