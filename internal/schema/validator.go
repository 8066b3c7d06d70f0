// Package schema enforces the response contract on every outgoing document.
package schema

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain/entities"
)

var defaultClarifyingQuestions = []string{
	"What specific issue are you experiencing?",
	"Which part of the device are you asking about?",
}

// Validator repairs response documents so they satisfy the contract of
// their answer type
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a Validator
func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate fixes resp in place and returns it. It is idempotent, and a nil
// document is replaced by a fixed fallback.
func (v *Validator) Validate(resp *entities.TroubleshootResponse) *entities.TroubleshootResponse {
	if resp == nil {
		v.logger.Error("Response missing, returning fallback document")
		return Fallback()
	}

	if !resp.AnswerType.Valid() {
		v.logger.Warn("Invalid answer_type, using default",
			zap.String("answer_type", string(resp.AnswerType)),
			zap.String("default", string(entities.DefaultAnswerType)))
		resp.AnswerType = entities.DefaultAnswerType
	}
	at := resp.AnswerType
	spec := at.Spec()

	if resp.CannotComplyReason != nil && !entities.ValidCannotComplyReason(*resp.CannotComplyReason) {
		v.logger.Warn("Invalid cannot_comply_reason", zap.String("reason", *resp.CannotComplyReason))
		resp.CannotComplyReason = nil
	}

	resp.DeviceInfo = validateDeviceInfo(resp.DeviceInfo)

	if !at.Allows(entities.FieldLocalization) {
		resp.LocalizationResults = nil
	}
	if !at.Allows(entities.FieldExplanation) {
		resp.Explanation = nil
	}
	if !at.Allows(entities.FieldDiagnosis) {
		resp.Diagnosis = nil
	}
	if !at.Allows(entities.FieldSteps) {
		if len(resp.TroubleshootingSteps) > 0 {
			v.logger.Info("Removing troubleshooting_steps", zap.String("answer_type", string(at)))
		}
		resp.TroubleshootingSteps = nil
	}

	if at.Requires(entities.FieldLocalization) && resp.LocalizationResults == nil {
		resp.LocalizationResults = []*entities.LocalizationResult{}
	}
	if at.Requires(entities.FieldExplanation) && resp.Explanation == nil {
		resp.Explanation = &entities.Explanation{}
	}
	if at.Requires(entities.FieldDiagnosis) && resp.Diagnosis == nil {
		resp.Diagnosis = &entities.Diagnosis{Severity: entities.DiagnosisMedium}
	}
	if at.Requires(entities.FieldSteps) && resp.TroubleshootingSteps == nil {
		resp.TroubleshootingSteps = []*entities.Step{}
	}
	if at.Requires(entities.FieldClarifyingQuestions) {
		resp.NeedsClarification = true
	}
	if resp.NeedsClarification && len(resp.ClarifyingQuestions) == 0 {
		resp.ClarifyingQuestions = defaultClarifyingQuestions
	}

	if resp.LocalizationResults != nil {
		resp.LocalizationResults = validateLocalization(resp.LocalizationResults)
	}
	if resp.Diagnosis != nil && !validSeverity(resp.Diagnosis.Severity) {
		resp.Diagnosis.Severity = entities.DiagnosisMedium
	}
	if resp.TroubleshootingSteps != nil {
		resp.TroubleshootingSteps = validateSteps(resp.TroubleshootingSteps)
	}
	resp.Visualizations = validateVisualizations(resp.Visualizations)

	if !resp.WebGroundingUsed {
		resp.GroundingSources = nil
		resp.GroundingSourcesSummary = nil
		resp.GroundingDisclaimer = nil
	}

	if resp.Status == "" {
		resp.Status = spec.LegacyStatus
	}
	if resp.SectionTitle == "" {
		resp.SectionTitle = spec.Title
	}
	if resp.DeviceIdentified == "" {
		resp.DeviceIdentified = resp.DeviceInfo.DeviceType
	}
	resp.DeviceConfidence = clampUnit(resp.DeviceConfidence)
	if resp.ConfidenceLevel == "" {
		resp.ConfidenceLevel = entities.LevelFor(resp.DeviceConfidence)
	}
	return resp
}

// Fallback is the document served when no response could be built at all
func Fallback() *entities.TroubleshootResponse {
	return &entities.TroubleshootResponse{
		AnswerType: entities.DefaultAnswerType,
		Message:    "An error occurred during analysis. Please try again.",
		DeviceInfo: validateDeviceInfo(nil),
		Diagnosis: &entities.Diagnosis{
			Issue:    "An error occurred during analysis. Please try again.",
			Severity: entities.DiagnosisMedium,
		},
		TroubleshootingSteps: []*entities.Step{
			{Step: 1, Instruction: "Please try submitting your request again."},
		},
		Visualizations:    []*entities.Visualization{},
		AudioInstructions: "I encountered an error during analysis. Please try again.",
		SectionTitle:      "Error",
		Status:            entities.StatusError,
		DeviceIdentified:  entities.DeviceTypeUnknown,
		ConfidenceLevel:   entities.ConfidenceLow,
	}
}

func validateDeviceInfo(info *entities.DeviceInfo) *entities.DeviceInfo {
	if info == nil {
		info = &entities.DeviceInfo{}
	}
	if info.DeviceCategory == "" {
		info.DeviceCategory = "unknown"
	}
	if info.DeviceType == "" {
		info.DeviceType = entities.DeviceTypeUnknown
	}
	if info.Brand == "" {
		info.Brand = "unknown"
	}
	if info.Model == "" {
		info.Model = "not visible"
	}
	if info.Components == nil {
		info.Components = []string{}
	}
	info.Confidence = clampUnit(info.Confidence)
	return info
}

// validateLocalization drops nil entries and restores the invariant that a
// result is found exactly when it is visible and has a box
func validateLocalization(results []*entities.LocalizationResult) []*entities.LocalizationResult {
	out := make([]*entities.LocalizationResult, 0, len(results))
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Target == "" {
			r.Target = "unknown"
		}
		if !r.Status.Valid() {
			r.Status = entities.StatusNotVisible
		}
		if r.Status == entities.StatusFound && r.BoundingBox == nil {
			r.Status = entities.StatusNotVisible
		}
		if r.Status != entities.StatusFound {
			r.BoundingBox = nil
		}
		r.ComponentVisible = r.Status == entities.StatusFound
		r.Confidence = clampUnit(r.Confidence)
		out = append(out, r)
	}
	return out
}

func validateSteps(steps []*entities.Step) []*entities.Step {
	out := make([]*entities.Step, 0, len(steps))
	for _, s := range steps {
		if s == nil {
			continue
		}
		if s.Step <= 0 {
			s.Step = len(out) + 1
		}
		if s.Instruction == "" {
			s.Instruction = "No instruction"
		}
		out = append(out, s)
	}
	return out
}

func validateVisualizations(viz []*entities.Visualization) []*entities.Visualization {
	out := make([]*entities.Visualization, 0, len(viz))
	for _, z := range viz {
		if z == nil {
			continue
		}
		if z.Target == "" {
			z.Target = "unknown"
		}
		if z.Label == "" {
			z.Label = z.Target
		}
		if z.OverlayID == "" {
			z.OverlayID = fmt.Sprintf("viz_%d", len(out)+1)
		}
		z.Confidence = clampUnit(z.Confidence)
		out = append(out, z)
	}
	return out
}

func validSeverity(s string) bool {
	switch s {
	case entities.DiagnosisLow, entities.DiagnosisMedium, entities.DiagnosisHigh, entities.DiagnosisCritical:
		return true
	}
	return false
}

func clampUnit(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
