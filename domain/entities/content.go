package entities

// KeyComponent is one part described in an explanation
type KeyComponent struct {
	Name     string `json:"name"`
	Function string `json:"function"`
	Location string `json:"location,omitempty"`
}

// Explanation describes how a device works
type Explanation struct {
	Overview      string         `json:"overview"`
	KeyComponents []KeyComponent `json:"key_components,omitempty"`
	HowItWorks    string         `json:"how_it_works"`
	CommonIssues  []string       `json:"common_issues,omitempty"`
}

// Diagnosis severities
const (
	DiagnosisLow      = "low"
	DiagnosisMedium   = "medium"
	DiagnosisHigh     = "high"
	DiagnosisCritical = "critical"
)

// Diagnosis of the reported issue
type Diagnosis struct {
	Issue              string   `json:"issue"`
	Severity           string   `json:"severity"`
	SafetyWarning      *string  `json:"safety_warning"`
	PossibleCauses     []string `json:"possible_causes,omitempty"`
	Indicators         []string `json:"indicators,omitempty"`
	ProfessionalNeeded bool     `json:"professional_needed,omitempty"`
}

// Step is one troubleshooting instruction
type Step struct {
	Step             int     `json:"step"`
	Instruction      string  `json:"instruction"`
	VisualCue        string  `json:"visual_cue"`
	EstimatedTime    string  `json:"estimated_time"`
	SafetyNote       *string `json:"safety_note"`
	OverlayReference *string `json:"overlay_reference"`
}

// ContentPayload is the output of the content-generation gate. Only the sections
// matching Kind are populated.
type ContentPayload struct {
	Kind           ContentKind  `json:"kind"`
	Explanation    *Explanation `json:"explanation,omitempty"`
	Diagnosis      *Diagnosis   `json:"diagnosis,omitempty"`
	Steps          []*Step      `json:"troubleshooting_steps,omitempty"`
	IssueDiagnosis string       `json:"issue_diagnosis,omitempty"`
	Audio          string       `json:"audio_instructions,omitempty"`
	Warnings       []string     `json:"warnings,omitempty"`
	WhenToSeekHelp *string      `json:"when_to_seek_help,omitempty"`
	// Set when the device was too uncertain to produce real steps
	NeedsClarification  bool     `json:"needs_clarification,omitempty"`
	ClarifyingQuestions []string `json:"clarifying_questions,omitempty"`
	// Fallback marks payloads built locally after a generation failure.
	Fallback bool `json:"-"`
}

// SpatialContext is the first located component handed to content generation
type SpatialContext struct {
	Component          string    `json:"component"`
	SpatialDescription string    `json:"spatial_description"`
	Box                *PixelBox `json:"pixel_coords,omitempty"`
}

// SpatialContextFrom picks the first found localization, if any
func SpatialContextFrom(results []LocalizationResult) *SpatialContext {
	for _, r := range results {
		if r.Found() {
			return &SpatialContext{
				Component:          r.Target,
				SpatialDescription: r.SpatialDescription,
				Box:                r.BoundingBox,
			}
		}
	}
	return nil
}
