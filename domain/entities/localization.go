package entities

import "strings"

// LocalizationStatus per requested target
type LocalizationStatus string

const (
	StatusFound      LocalizationStatus = "found"
	StatusNotVisible LocalizationStatus = "not_visible"
	StatusNotPresent LocalizationStatus = "not_present"
	StatusAmbiguous  LocalizationStatus = "ambiguous"
)

// Valid reports whether s is one of the four statuses
func (s LocalizationStatus) Valid() bool {
	switch s {
	case StatusFound, StatusNotVisible, StatusNotPresent, StatusAmbiguous:
		return true
	}
	return false
}

// PixelBox is a bounding box in absolute, sub-pixel image coordinates
type PixelBox struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Width of the box
func (b PixelBox) Width() float64 { return b.XMax - b.XMin }

// Height of the box
func (b PixelBox) Height() float64 { return b.YMax - b.YMin }

// LocalizationResult is the located (or not) position of one requested component
type LocalizationResult struct {
	Target               string             `json:"target"`
	Status               LocalizationStatus `json:"status"`
	ComponentVisible     bool               `json:"component_visible"`
	BoundingBox          *PixelBox          `json:"bounding_box"`
	Confidence           float64            `json:"confidence"`
	SpatialDescription   string             `json:"spatial_description"`
	LandmarkDescription  string             `json:"landmark_description"`
	Reasoning            string             `json:"reasoning"`
	SuggestedAction      string             `json:"suggested_action"`
	DisambiguationNeeded bool               `json:"disambiguation_needed"`
	AmbiguityNote        *string            `json:"ambiguity_note"`
	VisibleAlternatives  []string           `json:"visible_alternatives,omitempty"`
	TypicalLocation      string             `json:"typical_location,omitempty"`
}

// Found reports whether the target was located with a usable box
func (r LocalizationResult) Found() bool {
	return r.Status == StatusFound && r.BoundingBox != nil
}

// NotFoundResult builds the per-target placeholder used when localization fails
func NotFoundResult(target, reason string) LocalizationResult {
	if reason == "" {
		reason = "Could not analyze the image for this component"
	}
	return LocalizationResult{
		Target:             target,
		Status:             StatusNotVisible,
		SpatialDescription: "Unable to locate " + target,
		Reasoning:          reason,
		SuggestedAction:    "Please try taking a clearer photo or different angle",
	}
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
