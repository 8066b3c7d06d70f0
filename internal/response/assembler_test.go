package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/fixit/server/domain/entities"
)

func strPtr(s string) *string { return &s }

var router = entities.DeviceProfile{
	DeviceType: "WiFi Router", DeviceCategory: "networking", Brand: "TP-Link", Model: "not visible",
	BrandModelGuidance: strPtr("Check the label underneath"), Confidence: 0.85,
	Components: []string{"antenna", "power LED"},
}

var stepsContent = &entities.ContentPayload{
	Kind:           entities.ContentSteps,
	IssueDiagnosis: "Weak signal",
	Diagnosis:      &entities.Diagnosis{Issue: "Weak signal", Severity: entities.DiagnosisLow},
	Steps: []*entities.Step{
		{Instruction: "Restart the router"},
		nil,
		{Step: 7, Instruction: "Move closer"},
	},
	Audio:    "Restart the router, then move closer.",
	Warnings: []string{"Unplug before moving"},
}

func TestAssembleTroubleshootSteps(t *testing.T) {
	resp := Assemble(Input{
		AnswerType: entities.AnswerTroubleshootSteps,
		Device:     router,
		Content:    stepsContent,
		Localization: []entities.LocalizationResult{
			{Target: "power LED", Status: entities.StatusFound, ComponentVisible: true, Confidence: 0.8,
				BoundingBox: &entities.PixelBox{XMin: 10, YMin: 10, XMax: 1200, YMax: 90}},
			entities.NotFoundResult("reset button", ""),
		},
		ImageWidth:  1000,
		ImageHeight: 800,
	})

	assert.Equal(t, entities.AnswerTroubleshootSteps, resp.AnswerType)
	assert.Nil(t, resp.CannotComplyReason)
	assert.Nil(t, resp.Explanation)
	assert.Nil(t, resp.ClarifyingQuestions)
	assert.Equal(t, "Troubleshooting Steps", resp.SectionTitle)
	assert.Equal(t, "Here's how to troubleshoot your WiFi Router.", resp.Message)

	require.Len(t, resp.TroubleshootingSteps, 2)
	assert.Equal(t, 1, resp.TroubleshootingSteps[0].Step)
	assert.Equal(t, 7, resp.TroubleshootingSteps[1].Step)
	require.NotNil(t, resp.Diagnosis)
	assert.Equal(t, entities.DiagnosisLow, resp.Diagnosis.Severity)
	assert.Len(t, resp.LocalizationResults, 2)

	require.Len(t, resp.Visualizations, 1)
	viz := resp.Visualizations[0]
	assert.Equal(t, "viz_1", viz.OverlayID)
	assert.Equal(t, "Power Led", viz.Label)
	assert.Equal(t, 1000.0, viz.BoundingBox.XMax)

	assert.Equal(t, entities.StatusSuccess, resp.Status)
	assert.Equal(t, "WiFi Router", resp.DeviceIdentified)
	assert.Equal(t, entities.ConfidenceHigh, resp.ConfidenceLevel)
	assert.Equal(t, "Weak signal", resp.IssueDiagnosis)
	require.NotNil(t, resp.DeviceInfo.BrandModelGuidance, "model unknown keeps guidance")
}

func TestAssembleGuidanceDroppedWhenBrandAndModelKnown(t *testing.T) {
	d := router
	d.Model = "Archer C6"
	resp := Assemble(Input{AnswerType: entities.AnswerIdentifyOnly, Device: d})
	assert.Nil(t, resp.DeviceInfo.BrandModelGuidance)
}

func TestAssembleRejection(t *testing.T) {
	resp := Assemble(Input{
		AnswerType: entities.AnswerRejectInvalidImage,
		Validation: entities.ValidationResult{
			Category: "person", WhatISee: "Two people smiling",
			RejectionReason: strPtr("Not a device"),
		},
	})

	require.NotNil(t, resp.CannotComplyReason)
	assert.Equal(t, entities.ReasonInvalidImage, *resp.CannotComplyReason)
	assert.Nil(t, resp.LocalizationResults)
	assert.Nil(t, resp.Explanation)
	assert.Nil(t, resp.Diagnosis)
	assert.Nil(t, resp.TroubleshootingSteps)
	assert.Empty(t, resp.Visualizations)
	assert.Equal(t, entities.StatusInvalidImage, resp.Status)
	assert.Equal(t, "person", resp.ImageCategory)
	assert.Equal(t, "Two people smiling", resp.WhatWasDetected)
	assert.Contains(t, resp.Message, "This image shows people")
	assert.Len(t, resp.SupportedDevices, 6)
	assert.Equal(t, defaultSuggestion, resp.Suggestion)
	assert.Equal(t, entities.DeviceTypeUnknown, resp.DeviceInfo.DeviceType)
}

func TestRejectionMessage(t *testing.T) {
	assert.Contains(t, RejectionMessage("Software Screenshot", "", nil), "software interface")
	assert.Contains(t, RejectionMessage("other", "a cat", nil), "I can see a cat")
	assert.Equal(t, "no", RejectionMessage("other", "", strPtr("no")))
	assert.Contains(t, RejectionMessage("other", "", nil), "not suitable")
}

func TestAssembleSafetyCritical(t *testing.T) {
	msg := "STOP."
	resp := Assemble(Input{
		AnswerType: entities.AnswerSafetyWarningOnly,
		Device:     entities.DeviceProfile{DeviceType: "laptop", Confidence: 0.1},
		Safety: entities.SafetyAssessment{
			Detected: true, Severity: entities.SeverityCritical, Message: &msg, OverrideAnswerType: true,
		},
	})

	require.NotNil(t, resp.CannotComplyReason)
	assert.Equal(t, entities.ReasonSafetyRisk, *resp.CannotComplyReason)
	require.NotNil(t, resp.Diagnosis)
	require.NotNil(t, resp.Diagnosis.SafetyWarning)
	assert.Equal(t, "STOP.", *resp.Diagnosis.SafetyWarning)
	assert.Equal(t, entities.DiagnosisCritical, resp.Diagnosis.Severity)
	assert.Nil(t, resp.TroubleshootingSteps)
	assert.NotNil(t, resp.Safety)
}

func TestAssembleSafetyWarningAnnotatesSteps(t *testing.T) {
	msg := "Caution: hot detected. Follow safety precautions in the steps below."
	resp := Assemble(Input{
		AnswerType: entities.AnswerTroubleshootSteps,
		Device:     router,
		Content:    stepsContent,
		Safety:     entities.SafetyAssessment{Detected: true, Severity: entities.SeverityWarning, Message: &msg},
	})

	require.NotNil(t, resp.TroubleshootingSteps[0].SafetyNote)
	assert.Equal(t, msg, *resp.TroubleshootingSteps[0].SafetyNote)
	assert.Nil(t, resp.TroubleshootingSteps[1].SafetyNote)
	assert.Equal(t, entities.DiagnosisLow, resp.Diagnosis.Severity)
	require.NotNil(t, resp.Diagnosis.SafetyWarning)
	assert.Nil(t, stepsContent.Steps[0].SafetyNote, "content payload is not mutated")
}

func TestAssembleClarifyingQuestions(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want []string
	}{
		{
			name: "defaults",
			in:   Input{AnswerType: entities.AnswerAskClarifying},
			want: defaultClarifyingQuestions,
		},
		{
			name: "intent first",
			in: Input{
				AnswerType: entities.AnswerAskClarifying,
				Intent:     entities.QueryIntent{ClarifyingQuestions: []string{"Which router?"}},
				Device:     entities.DeviceProfile{ClarifyingQuestions: []string{"What brand?"}},
			},
			want: []string{"Which router?"},
		},
		{
			name: "device when intent has none",
			in: Input{
				AnswerType: entities.AnswerAskBetterInput,
				Intent:     entities.QueryIntent{ClarificationNeeded: true},
				Device:     entities.DeviceProfile{ClarifyingQuestions: []string{"What brand?"}},
			},
			want: []string{"What brand?"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Assemble(tt.in)
			assert.True(t, resp.NeedsClarification)
			assert.Equal(t, tt.want, resp.ClarifyingQuestions)
		})
	}
}

func TestAssembleBetterInput(t *testing.T) {
	resp := Assemble(Input{
		AnswerType: entities.AnswerAskBetterInput,
		Validation: entities.ValidationResult{Quality: entities.QualityBlurry},
		Device:     entities.DeviceProfile{DeviceType: "router", Confidence: 0.8, WhatISee: "a blurry box"},
	})
	require.NotNil(t, resp.CannotComplyReason)
	assert.Equal(t, entities.ReasonLowConfidence, *resp.CannotComplyReason)
	assert.Equal(t, "a blurry box", resp.WhatISee)
	assert.Equal(t, defaultBetterInputSuggestions, resp.Suggestions)
	assert.Equal(t, entities.StatusLowConfidence, resp.Status)

	resp = Assemble(Input{
		AnswerType: entities.AnswerAskBetterInput,
		Validation: entities.ValidationResult{Quality: entities.QualityGood},
		Device:     entities.DeviceProfile{DeviceType: "router", Confidence: 0.8},
	})
	assert.Nil(t, resp.CannotComplyReason)
}

func TestAssembleGrounding(t *testing.T) {
	resp := Assemble(Input{
		AnswerType: entities.AnswerExplainOnly,
		Device:     router,
		Content:    &entities.ContentPayload{Kind: entities.ContentExplanation, Explanation: &entities.Explanation{Overview: "x"}},
		Grounding:  &entities.GroundingResult{Grounded: true},
	})
	assert.True(t, resp.WebGroundingUsed)
	require.Len(t, resp.GroundingSources, 1)
	assert.Equal(t, "Google Search", resp.GroundingSources[0].Title)
	require.NotNil(t, resp.GroundingSourcesSummary)
	assert.NotNil(t, resp.Explanation)
	assert.Nil(t, resp.Diagnosis)
	assert.Nil(t, resp.LocalizationResults)

	resp = Assemble(Input{AnswerType: entities.AnswerExplainOnly, Grounding: &entities.GroundingResult{}})
	assert.False(t, resp.WebGroundingUsed)
	assert.Nil(t, resp.GroundingSources)
}

func TestAssembleMixedWithoutContentUsesMessage(t *testing.T) {
	resp := Assemble(Input{AnswerType: entities.AnswerMixed, Device: router})
	assert.Equal(t, resp.Message, resp.IssueDiagnosis)
	assert.NotNil(t, resp.Diagnosis)
	assert.Equal(t, entities.DiagnosisMedium, resp.Diagnosis.Severity)
	assert.Empty(t, resp.TroubleshootingSteps)
	assert.NotNil(t, resp.LocalizationResults)
}

func TestAssembleUnknownAnswerTypeDefaults(t *testing.T) {
	resp := Assemble(Input{AnswerType: "bogus"})
	assert.Equal(t, entities.AnswerTroubleshootSteps, resp.AnswerType)
}

func TestErrorDocuments(t *testing.T) {
	doc := ErrorDocument("AI temporarily unavailable (free tier quota reached)", "tomorrow")
	assert.Equal(t, entities.StatusError, doc.Status)
	assert.Equal(t, "Error", doc.SectionTitle)
	assert.Equal(t, "tomorrow", doc.RetryAfter)
	assert.Equal(t, errorAudio, doc.AudioInstructions)

	panicDoc := PanicDocument("boom")
	assert.Equal(t, "An error occurred: boom", panicDoc.Message)
	assert.Equal(t, "Error: boom", panicDoc.IssueDiagnosis)
	assert.Empty(t, panicDoc.RetryAfter)
}
