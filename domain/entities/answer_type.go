package entities

// AnswerType discriminates which content shape a response carries
type AnswerType string

const (
	AnswerLocateOnly         AnswerType = "locate_only"
	AnswerIdentifyOnly       AnswerType = "identify_only"
	AnswerExplainOnly        AnswerType = "explain_only"
	AnswerTroubleshootSteps  AnswerType = "troubleshoot_steps"
	AnswerDiagnoseOnly       AnswerType = "diagnose_only"
	AnswerMixed              AnswerType = "mixed"
	AnswerAskClarifying      AnswerType = "ask_clarifying_questions"
	AnswerRejectInvalidImage AnswerType = "reject_invalid_image"
	AnswerAskBetterInput     AnswerType = "ask_for_better_input"
	AnswerSafetyWarningOnly  AnswerType = "safety_warning_only"
)

// DefaultAnswerType is used whenever the model omits or garbles the answer type
const DefaultAnswerType = AnswerTroubleshootSteps

// Field names a response payload section by its JSON key
type Field string

const (
	FieldLocalization        Field = "localization_results"
	FieldExplanation         Field = "explanation"
	FieldDiagnosis           Field = "diagnosis"
	FieldSteps               Field = "troubleshooting_steps"
	FieldClarifyingQuestions Field = "clarifying_questions"
)

// ContentKind selects the content generator for an answer type
type ContentKind string

const (
	ContentNone        ContentKind = "none"
	ContentExplanation ContentKind = "explanation"
	ContentDiagnosis   ContentKind = "diagnosis"
	ContentSteps       ContentKind = "steps"
	ContentMixed       ContentKind = "mixed"
)

// Legacy status strings mirrored for older clients
const (
	StatusSuccess            = "success"
	StatusInvalidImage       = "invalid_image"
	StatusLowConfidence      = "low_confidence"
	StatusComponentNotFound  = "component_not_located"
	StatusNeedsClarification = "needs_clarification"
	StatusError              = "error"
)

// AnswerTypeSpec is the single source of truth the pipeline, the assembler and the
// validator consult for per-type behavior.
type AnswerTypeSpec struct {
	Title        string
	LegacyStatus string
	Allowed      []Field
	Required     []Field
	Content      ContentKind
	// Visual types may run component localization.
	Visual bool
	// Groundable types may trigger web-search grounding.
	Groundable bool
}

var answerTypeTable = map[AnswerType]AnswerTypeSpec{
	AnswerLocateOnly: {
		Title:        "Component Location",
		LegacyStatus: StatusSuccess,
		Allowed:      []Field{FieldLocalization},
		Required:     []Field{FieldLocalization},
		Content:      ContentNone,
		Visual:       true,
	},
	AnswerIdentifyOnly: {
		Title:        "Detected Components",
		LegacyStatus: StatusSuccess,
		Content:      ContentNone,
		Visual:       true,
	},
	AnswerExplainOnly: {
		Title:        "How It Works",
		LegacyStatus: StatusSuccess,
		Allowed:      []Field{FieldExplanation},
		Required:     []Field{FieldExplanation},
		Content:      ContentExplanation,
		Visual:       true,
		Groundable:   true,
	},
	AnswerTroubleshootSteps: {
		Title:        "Troubleshooting Steps",
		LegacyStatus: StatusSuccess,
		Allowed:      []Field{FieldLocalization, FieldDiagnosis, FieldSteps},
		Required:     []Field{FieldDiagnosis, FieldSteps},
		Content:      ContentSteps,
		Visual:       true,
		Groundable:   true,
	},
	AnswerDiagnoseOnly: {
		Title:        "Diagnosis",
		LegacyStatus: StatusSuccess,
		Allowed:      []Field{FieldDiagnosis},
		Required:     []Field{FieldDiagnosis},
		Content:      ContentDiagnosis,
		Visual:       true,
		Groundable:   true,
	},
	AnswerMixed: {
		Title:        "Device Overview",
		LegacyStatus: StatusSuccess,
		Allowed:      []Field{FieldLocalization, FieldExplanation, FieldDiagnosis, FieldSteps},
		Content:      ContentMixed,
		Visual:       true,
		Groundable:   true,
	},
	AnswerAskClarifying: {
		Title:        "I need more information",
		LegacyStatus: StatusNeedsClarification,
		Required:     []Field{FieldClarifyingQuestions},
		Content:      ContentNone,
	},
	AnswerRejectInvalidImage: {
		Title:        "Image Not Suitable",
		LegacyStatus: StatusInvalidImage,
		Content:      ContentNone,
	},
	AnswerAskBetterInput: {
		Title:        "Better Image Needed",
		LegacyStatus: StatusLowConfidence,
		Content:      ContentNone,
	},
	AnswerSafetyWarningOnly: {
		Title:        "Safety Alert",
		LegacyStatus: StatusSuccess,
		Allowed:      []Field{FieldDiagnosis},
		Required:     []Field{FieldDiagnosis},
		Content:      ContentNone,
	},
}

// AllAnswerTypes lists the closed enumeration in a stable order
func AllAnswerTypes() []AnswerType {
	return []AnswerType{
		AnswerLocateOnly,
		AnswerIdentifyOnly,
		AnswerExplainOnly,
		AnswerTroubleshootSteps,
		AnswerDiagnoseOnly,
		AnswerMixed,
		AnswerAskClarifying,
		AnswerRejectInvalidImage,
		AnswerAskBetterInput,
		AnswerSafetyWarningOnly,
	}
}

// Valid reports whether t belongs to the enumeration
func (t AnswerType) Valid() bool {
	_, ok := answerTypeTable[t]
	return ok
}

// Spec returns the table row for t, falling back to the default type's row
func (t AnswerType) Spec() AnswerTypeSpec {
	if spec, ok := answerTypeTable[t]; ok {
		return spec
	}
	return answerTypeTable[DefaultAnswerType]
}

// Allows reports whether the payload field may be populated for t
func (t AnswerType) Allows(f Field) bool {
	return containsField(t.Spec().Allowed, f)
}

// Requires reports whether the payload field must be present for t
func (t AnswerType) Requires(f Field) bool {
	return containsField(t.Spec().Required, f)
}

// ParseAnswerType maps free-form model output onto the enumeration
func ParseAnswerType(s string) (AnswerType, bool) {
	t := AnswerType(s)
	if t.Valid() {
		return t, true
	}
	return DefaultAnswerType, false
}

func containsField(fields []Field, f Field) bool {
	for _, candidate := range fields {
		if candidate == f {
			return true
		}
	}
	return false
}
