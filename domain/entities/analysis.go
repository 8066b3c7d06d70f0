package entities

// Confidence thresholds for the device confidence tier
const (
	HighConfidenceThreshold   = 0.6
	MediumConfidenceThreshold = 0.3
)

// AnalysisRequest is one inbound troubleshoot call
type AnalysisRequest struct {
	RequestID   string `json:"request_id,omitempty"`
	ImageBase64 string `json:"-"`
	Query       string `json:"query"`
	DeviceHint  string `json:"device_hint,omitempty"`
	ImageWidth  int    `json:"image_width,omitempty"`
	ImageHeight int    `json:"image_height,omitempty"`
}

// ImagePart is a decoded, model-ready image
type ImagePart struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// ImageQuality as judged by the model
type ImageQuality string

const (
	QualityGood    ImageQuality = "good"
	QualityBlurry  ImageQuality = "blurry"
	QualityDark    ImageQuality = "dark"
	QualityTooFar  ImageQuality = "too_far"
	QualityPartial ImageQuality = "partial"
)

// Poor reports whether the quality forces a request for better input
func (q ImageQuality) Poor() bool {
	return q == QualityBlurry || q == QualityDark || q == QualityTooFar
}

// ValidationResult is the outcome of image validation
type ValidationResult struct {
	IsValid          bool         `json:"is_valid"`
	Category         string       `json:"image_category"`
	IsPhysicalDevice bool         `json:"is_physical_device"`
	Confidence       float64      `json:"confidence"`
	Quality          ImageQuality `json:"image_quality,omitempty"`
	WhatISee         string       `json:"what_i_see"`
	RejectionReason  *string      `json:"rejection_reason"`
	Suggestion       *string      `json:"suggestion"`
	MultipleDevices  bool         `json:"multiple_devices,omitempty"`
	DeviceList       []string     `json:"device_list,omitempty"`
	SupportedDevices []string     `json:"supported_devices,omitempty"`
	Error            string       `json:"error,omitempty"`
}

// ConfidenceLevel is the derived device confidence tier
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// LevelFor derives the tier from a raw confidence score
func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= HighConfidenceThreshold:
		return ConfidenceHigh
	case confidence >= MediumConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Device type markers the model uses for unidentifiable images
const (
	DeviceTypeUnknown    = "Unknown"
	DeviceTypeNotADevice = "not_a_device"
)

// DeviceProfile is the detected device
type DeviceProfile struct {
	DeviceType          string          `json:"device_type"`
	DeviceCategory      string          `json:"device_category,omitempty"`
	Brand               string          `json:"brand"`
	Model               string          `json:"model"`
	BrandModelGuidance  *string         `json:"brand_model_guidance,omitempty"`
	Confidence          float64         `json:"device_confidence"`
	Level               ConfidenceLevel `json:"confidence_level"`
	Components          []string        `json:"components"`
	Reasoning           string          `json:"reasoning"`
	IsIdentifiable      bool            `json:"is_identifiable"`
	WhatISee            string          `json:"what_i_see,omitempty"`
	Suggestions         []string        `json:"suggestions,omitempty"`
	ClarifyingQuestions []string        `json:"clarifying_questions,omitempty"`
	NeedsClarification  bool            `json:"needs_clarification"`
	Error               string          `json:"error,omitempty"`
}

// Identified reports whether the device type names an actual device
func (d DeviceProfile) Identified() bool {
	return !isUnknownMarker(d.DeviceType, "unknown", DeviceTypeNotADevice)
}

// HasBrand reports whether the brand was read from the image
func (d DeviceProfile) HasBrand() bool {
	return !isUnknownMarker(d.Brand, "unknown", "generic")
}

// HasModel reports whether the model number was read from the image
func (d DeviceProfile) HasModel() bool {
	return !isUnknownMarker(d.Model, "not visible", "unknown")
}

// QueryIntent is the classified user query
type QueryIntent struct {
	QueryType           string     `json:"query_type"`
	AnswerType          AnswerType `json:"answer_type"`
	TargetComponent     string     `json:"target_component,omitempty"`
	TargetComponents    []string   `json:"target_components,omitempty"`
	ActionRequested     string     `json:"action_requested,omitempty"`
	NeedsLocalization   bool       `json:"needs_localization"`
	NeedsSteps          bool       `json:"needs_steps"`
	NeedsExplanation    bool       `json:"needs_explanation"`
	MultiIntentCount    int        `json:"multi_intent_count,omitempty"`
	DetectedIntents     []string   `json:"detected_intents,omitempty"`
	ClarificationNeeded bool       `json:"clarification_needed"`
	ClarifyingQuestions []string   `json:"clarifying_questions,omitempty"`
	Confidence          float64    `json:"confidence"`
}

// Targets returns the requested components, list first
func (q QueryIntent) Targets() []string {
	if len(q.TargetComponents) > 0 {
		return q.TargetComponents
	}
	if q.TargetComponent != "" {
		return []string{q.TargetComponent}
	}
	return nil
}

// SafetySeverity tiers
type SafetySeverity string

const (
	SeverityNone     SafetySeverity = "none"
	SeverityWarning  SafetySeverity = "warning"
	SeverityCritical SafetySeverity = "critical"
)

// SafetyAssessment combines the model's safety signal with the local keyword scan
type SafetyAssessment struct {
	Detected           bool           `json:"safety_detected"`
	Severity           SafetySeverity `json:"safety_severity"`
	KeywordsFound      []string       `json:"safety_keywords_found"`
	Message            *string        `json:"safety_message"`
	OverrideAnswerType bool           `json:"override_answer_type"`
}

// Locks reports whether the assessment forces a safety-only answer
func (s SafetyAssessment) Locks() bool {
	return s.Detected && s.OverrideAnswerType && s.Severity == SeverityCritical
}

func isUnknownMarker(value string, markers ...string) bool {
	v := lowerTrim(value)
	if v == "" {
		return true
	}
	for _, m := range markers {
		if v == m {
			return true
		}
	}
	return false
}
