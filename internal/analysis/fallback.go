package analysis

import (
	"fmt"
	"strings"

	"github.com/satriahrh/fixit/server/domain/entities"
)

var (
	defaultDiagnosticQuestions = []string{
		"What type of device is this? (e.g., router, printer, laptop)",
		"What brand is it? Are there any visible logos or labels?",
		"Can you describe the issue you're experiencing?",
	}
	fallbackStepWarnings = []string{
		"Always disconnect power before working on electronics",
		"Don't open sealed units unless qualified",
		"If unsure, consult a professional",
	}
)

func step(n int, instruction, cue, duration string) *entities.Step {
	return &entities.Step{Step: n, Instruction: instruction, VisualCue: cue, EstimatedTime: duration}
}

func fallbackExplanation(deviceType, target string) *entities.ContentPayload {
	overview := fmt.Sprintf("This is a %s.", deviceType)
	if target != "" {
		overview += fmt.Sprintf(" The %s is a key component.", target)
	}
	return &entities.ContentPayload{
		Kind:        entities.ContentExplanation,
		Explanation: &entities.Explanation{Overview: overview},
		Audio: fmt.Sprintf("This appears to be a %s. Unfortunately, I couldn't generate a detailed explanation. "+
			"Please try again or consult the device manual for more information.", deviceType),
		Fallback: true,
	}
}

func fallbackDiagnosis(deviceType string) *entities.ContentPayload {
	return &entities.ContentPayload{
		Kind: entities.ContentDiagnosis,
		Diagnosis: &entities.Diagnosis{
			Issue:    fmt.Sprintf("I detected a potential issue with your %s but couldn't generate a detailed diagnosis.", deviceType),
			Severity: entities.DiagnosisMedium,
		},
		Audio: fmt.Sprintf("I noticed an issue with your %s but couldn't complete the full diagnosis. "+
			"Please try again or consult a professional.", deviceType),
		Fallback: true,
	}
}

func errorDiagnosis() *entities.ContentPayload {
	return &entities.ContentPayload{
		Kind: entities.ContentDiagnosis,
		Diagnosis: &entities.Diagnosis{
			Issue:    "Unable to generate diagnosis due to an error.",
			Severity: entities.DiagnosisMedium,
		},
		Audio:    "I encountered an error generating the diagnosis. Please try again.",
		Fallback: true,
	}
}

func fallbackSteps(deviceType string) *entities.ContentPayload {
	return &entities.ContentPayload{
		Kind:           entities.ContentSteps,
		IssueDiagnosis: fmt.Sprintf("I can see this is a %s, but I couldn't generate specific troubleshooting steps.", deviceType),
		Steps: []*entities.Step{
			step(1, fmt.Sprintf("For %s issues, start by power cycling the device (unplug, wait 30 seconds, plug back in)", deviceType),
				"Wait for all lights to return to normal", "2 minutes"),
			step(2, "Check all cable connections are secure", "Look for loose or damaged cables", "1 minute"),
			step(3, "If the issue persists, consult the device manual or manufacturer support",
				"Look for model number for support lookup", "5 minutes"),
		},
		Audio: fmt.Sprintf("For your %s, try power cycling it first. Unplug the device, wait 30 seconds, then plug it back in. "+
			"If that doesn't work, check all cable connections. If the issue continues, you may need to consult the manufacturer or a professional.", deviceType),
		Warnings: fallbackStepWarnings,
		Fallback: true,
	}
}

func cautiousFallback(deviceType string) *entities.ContentPayload {
	return &entities.ContentPayload{
		Kind:           entities.ContentSteps,
		IssueDiagnosis: fmt.Sprintf("I think this might be a %s, but I'm not entirely certain. Here's general guidance.", deviceType),
		Steps: []*entities.Step{
			step(1, "First, verify this is the correct device type", "Check for brand name and model number", "30 seconds"),
			step(2, "Safely disconnect power before any troubleshooting", "Confirm all power indicators are off", "30 seconds"),
		},
		Audio: fmt.Sprintf("I'm not entirely sure about the device type, so please verify before proceeding. "+
			"If this is indeed a %s, start by safely disconnecting the power.", deviceType),
		Fallback: true,
	}
}

func quotaExhausted(deviceType string, spatial *entities.SpatialContext) *entities.ContentPayload {
	component := "component"
	cue := "N/A"
	if spatial != nil {
		if spatial.Component != "" {
			component = spatial.Component
		}
		cue = spatial.SpatialDescription
		if cue == "" {
			cue = "See bounding box for location"
		}
	}
	return &entities.ContentPayload{
		Kind: entities.ContentSteps,
		IssueDiagnosis: fmt.Sprintf("I successfully identified your %s and located the %s, "+
			"but I've reached my AI analysis limit for now.", deviceType, component),
		Steps: []*entities.Step{
			step(1, fmt.Sprintf("The %s is visible in the image at the location shown", component), cue, "N/A"),
		},
		Audio: fmt.Sprintf("I found your %s and located the %s, but I've reached my daily AI usage limit. "+
			"Please try again tomorrow for detailed troubleshooting steps.", deviceType, component),
		Fallback: true,
	}
}

func stepsError() *entities.ContentPayload {
	return &entities.ContentPayload{
		Kind:           entities.ContentSteps,
		IssueDiagnosis: "I encountered an error while generating troubleshooting steps.",
		Steps:          []*entities.Step{step(1, "Please try your request again", "N/A", "N/A")},
		Audio:          "I'm sorry, I encountered an error. Please try again.",
		Fallback:       true,
	}
}

// diagnosticQuestions replaces steps when the device is too uncertain to
// give advice that might be wrong
func diagnosticQuestions(d entities.DeviceProfile) *entities.ContentPayload {
	whatISee := d.WhatISee
	if whatISee == "" {
		whatISee = "Unable to clearly identify the device"
	}
	questions := d.ClarifyingQuestions
	if len(questions) == 0 {
		questions = defaultDiagnosticQuestions
	}
	warning := "While I gather more information, remember: always disconnect power before working on any electronic device."
	return &entities.ContentPayload{
		Kind:           entities.ContentSteps,
		IssueDiagnosis: "I'm having trouble identifying this device clearly. " + whatISee,
		Steps: []*entities.Step{
			step(1, "Please help me understand your device better by answering a few questions",
				"Look at your device to answer these questions", "1 minute"),
		},
		Audio: "I need a bit more information to help you effectively. " +
			"Could you tell me what type of device this is, and describe the issue you're experiencing?",
		Warnings:            []string{warning},
		NeedsClarification:  true,
		ClarifyingQuestions: questions,
	}
}

func identificationHelp(d entities.DeviceProfile) *entities.ContentPayload {
	issue := "I couldn't identify a troubleshootable device in this image."
	if d.WhatISee != "" {
		issue += " " + d.WhatISee
	}
	steps := []*entities.Step{
		step(1, "Upload a clear photo of the electronic device you need help with",
			"Show the entire device with visible brand/labels if possible", "30 seconds"),
	}
	if len(d.Components) > 0 {
		n := min(len(d.Components), 3)
		steps = append(steps, step(2,
			fmt.Sprintf("I can see some elements in the image: %s. If you're asking about these, please clarify.", strings.Join(d.Components[:n], ", ")),
			"Point to or describe the specific part you need help with", "30 seconds"))
	}
	return &entities.ContentPayload{
		Kind:           entities.ContentSteps,
		IssueDiagnosis: issue,
		Steps:          steps,
		Audio: "I couldn't identify a device to troubleshoot. Please upload a clear photo of the electronic device " +
			"you need help with, making sure the whole device is visible.",
	}
}
