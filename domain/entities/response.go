package entities

// Cannot-comply reasons accepted in a response
const (
	ReasonNotVisible    = "not_visible"
	ReasonNotPresent    = "not_present"
	ReasonLowConfidence = "low_confidence"
	ReasonInvalidImage  = "invalid_image"
	ReasonSafetyRisk    = "safety_risk"
)

// ValidCannotComplyReason reports whether r is an accepted reason
func ValidCannotComplyReason(r string) bool {
	switch r {
	case ReasonNotVisible, ReasonNotPresent, ReasonLowConfidence, ReasonInvalidImage, ReasonSafetyRisk:
		return true
	}
	return false
}

// DeviceInfo is the device section of a response
type DeviceInfo struct {
	DeviceCategory     string   `json:"device_category"`
	DeviceType         string   `json:"device_type"`
	Brand              string   `json:"brand"`
	Model              string   `json:"model"`
	BrandModelGuidance *string  `json:"brand_model_guidance"`
	Confidence         float64  `json:"confidence"`
	Components         []string `json:"components"`
}

// Visualization is one AR overlay derived from a found localization
type Visualization struct {
	Target               string    `json:"target"`
	BoundingBox          *PixelBox `json:"bounding_box"`
	ArrowHint            *string   `json:"arrow_hint"`
	Label                string    `json:"label"`
	LandmarkDescription  string    `json:"landmark_description"`
	Confidence           float64   `json:"confidence"`
	OverlayID            string    `json:"overlay_id"`
	DisambiguationNeeded bool      `json:"disambiguation_needed"`
	AmbiguityNote        *string   `json:"ambiguity_note"`
}

// TroubleshootResponse is the document returned by the troubleshoot endpoint
type TroubleshootResponse struct {
	RequestID          string      `json:"request_id,omitempty"`
	AnswerType         AnswerType  `json:"answer_type"`
	NeedsClarification bool        `json:"needs_clarification"`
	CannotComplyReason *string     `json:"cannot_comply_reason"`
	Message            string      `json:"message"`
	SectionTitle       string      `json:"section_title"`
	DeviceInfo         *DeviceInfo `json:"device_info"`

	LocalizationResults  []*LocalizationResult `json:"localization_results"`
	Explanation          *Explanation          `json:"explanation"`
	Diagnosis            *Diagnosis            `json:"diagnosis"`
	TroubleshootingSteps []*Step               `json:"troubleshooting_steps"`
	ClarifyingQuestions  []string              `json:"clarifying_questions"`
	Visualizations       []*Visualization      `json:"visualizations"`
	AudioInstructions    string                `json:"audio_instructions"`

	WebGroundingUsed        bool              `json:"web_grounding_used"`
	GroundingSources        []GroundingSource `json:"grounding_sources"`
	GroundingSourcesSummary *string           `json:"grounding_sources_summary"`
	GroundingDisclaimer     *string           `json:"grounding_disclaimer,omitempty"`
	SearchEntryPointHTML    string            `json:"search_entry_point_html,omitempty"`

	// Flattened mirror for older clients
	Status             string            `json:"status"`
	DeviceIdentified   string            `json:"device_identified"`
	DeviceConfidence   float64           `json:"device_confidence"`
	ConfidenceLevel    ConfidenceLevel   `json:"confidence_level"`
	IssueDiagnosis     string            `json:"issue_diagnosis"`
	Warnings           []string          `json:"warnings,omitempty"`
	WhenToSeekHelp     *string           `json:"when_to_seek_help,omitempty"`
	DetectedComponents []string          `json:"detected_components,omitempty"`
	Safety             *SafetyAssessment `json:"safety,omitempty"`

	// Rejection extras
	ImageCategory    string   `json:"image_category,omitempty"`
	WhatWasDetected  string   `json:"what_was_detected,omitempty"`
	Suggestion       string   `json:"suggestion,omitempty"`
	SupportedDevices []string `json:"supported_devices,omitempty"`

	// Better-input extras
	WhatISee    string   `json:"what_i_see,omitempty"`
	Reasoning   string   `json:"reasoning,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`

	RetryAfter string `json:"retry_after,omitempty"`
}
