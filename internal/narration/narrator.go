// Package narration writes the spoken summary of a response when content
// generation did not provide one.
package narration

import (
	"fmt"
	"strings"

	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
)

// MinAudioLength is the shortest generated audio kept as is
const MinAudioLength = 10

const maxSpokenSteps = 3

// TemplateNarrator builds narration from the response fields
type TemplateNarrator struct{}

var _ repositories.Narrator = (*TemplateNarrator)(nil)

// NewTemplateNarrator creates a TemplateNarrator
func NewTemplateNarrator() *TemplateNarrator {
	return &TemplateNarrator{}
}

// NeedsNarration reports whether the response audio is missing or too short
func NeedsNarration(resp *entities.TroubleshootResponse) bool {
	return len(strings.TrimSpace(resp.AudioInstructions)) < MinAudioLength
}

// Narrate returns a short spoken script for the response
func (n *TemplateNarrator) Narrate(resp *entities.TroubleshootResponse) string {
	if resp == nil {
		return "I encountered an error during analysis. Please try again."
	}
	device := "device"
	if resp.DeviceInfo != nil && resp.DeviceInfo.DeviceType != "" && resp.DeviceInfo.DeviceType != entities.DeviceTypeUnknown {
		device = resp.DeviceInfo.DeviceType
	}

	var parts []string
	switch resp.AnswerType {
	case entities.AnswerRejectInvalidImage:
		parts = append(parts, resp.Message)
		if resp.Suggestion != "" {
			parts = append(parts, resp.Suggestion)
		}
	case entities.AnswerAskBetterInput:
		parts = append(parts, "I'm having trouble seeing your device clearly.")
		if len(resp.Suggestions) > 0 {
			parts = append(parts, resp.Suggestions[0]+".")
		}
		parts = append(parts, questions(resp.ClarifyingQuestions)...)
	case entities.AnswerAskClarifying:
		parts = append(parts, "I need a little more information.")
		parts = append(parts, questions(resp.ClarifyingQuestions)...)
	case entities.AnswerSafetyWarningOnly:
		if resp.Diagnosis != nil && resp.Diagnosis.SafetyWarning != nil {
			parts = append(parts, *resp.Diagnosis.SafetyWarning)
		} else {
			parts = append(parts, resp.Message)
		}
	case entities.AnswerLocateOnly:
		parts = append(parts, located(resp.LocalizationResults, device)...)
	case entities.AnswerIdentifyOnly:
		parts = append(parts, fmt.Sprintf("This looks like a %s.", device))
		if resp.DeviceInfo != nil && len(resp.DeviceInfo.Components) > 0 {
			n := min(len(resp.DeviceInfo.Components), 5)
			parts = append(parts, "I can see the "+joinSpoken(resp.DeviceInfo.Components[:n])+".")
		}
	case entities.AnswerExplainOnly:
		if resp.Explanation != nil && resp.Explanation.Overview != "" {
			parts = append(parts, resp.Explanation.Overview)
		} else {
			parts = append(parts, resp.Message)
		}
	case entities.AnswerDiagnoseOnly:
		parts = append(parts, diagnosis(resp, device)...)
	default:
		if resp.Explanation != nil && resp.Explanation.Overview != "" {
			parts = append(parts, resp.Explanation.Overview)
		}
		parts = append(parts, diagnosis(resp, device)...)
		parts = append(parts, spokenSteps(resp.TroubleshootingSteps)...)
	}

	script := strings.TrimSpace(strings.Join(parts, " "))
	if len(script) < MinAudioLength {
		return resp.Message
	}
	return script
}

func located(results []*entities.LocalizationResult, device string) []string {
	var found, missing []string
	var parts []string
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Status == entities.StatusFound {
			found = append(found, r.Target)
			if r.SpatialDescription != "" {
				parts = append(parts, fmt.Sprintf("The %s is %s.", r.Target, strings.TrimSuffix(r.SpatialDescription, ".")))
			}
			continue
		}
		missing = append(missing, r.Target)
	}
	if len(found) > 0 && len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("I've highlighted the %s on your %s.", joinSpoken(found), device))
	}
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("I couldn't see the %s in this photo. Try a different angle.", joinSpoken(missing)))
	}
	return parts
}

func diagnosis(resp *entities.TroubleshootResponse, device string) []string {
	if resp.Diagnosis != nil && resp.Diagnosis.Issue != "" {
		return []string{resp.Diagnosis.Issue}
	}
	if resp.IssueDiagnosis != "" {
		return []string{resp.IssueDiagnosis}
	}
	return []string{fmt.Sprintf("Here's what to check on your %s.", device)}
}

func spokenSteps(steps []*entities.Step) []string {
	var parts []string
	for i, s := range steps {
		if i == maxSpokenSteps {
			parts = append(parts, "Check the screen for the remaining steps.")
			break
		}
		parts = append(parts, fmt.Sprintf("Step %d: %s.", i+1, strings.TrimSuffix(s.Instruction, ".")))
	}
	return parts
}

func questions(qs []string) []string {
	if len(qs) == 0 {
		return nil
	}
	return []string{qs[0]}
}

func joinSpoken(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
