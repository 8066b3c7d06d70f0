// Package response turns the gate outputs of a troubleshoot request into the
// response document. Which payload sections are filled is decided by the
// answer type table.
package response

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/internal/spatial"
)

var (
	defaultClarifyingQuestions = []string{
		"What specific issue are you experiencing?",
		"Which part of the device are you asking about?",
	}
	defaultBetterInputSuggestions = []string{
		"Ensure the entire device is visible in the photo",
		"Take the photo in good lighting",
		"Include any visible brand names or model numbers",
	}
	defaultSupportedDevices = []string{
		"WiFi Routers & Modems",
		"Printers & Scanners",
		"Laptops & Computers",
		"Smart Home Devices",
		"Home Appliances",
		"Circuit Boards & Arduino",
	}
	contextualRejections = map[string]string{
		"person": "This image shows people, not an electronic device. " +
			"FixIt AI helps troubleshoot electronic devices like routers, printers, and circuit boards. " +
			"Please upload a photo of the device you need help with.",
		"software_screenshot": "This appears to be a software interface or screenshot. " +
			"FixIt AI troubleshoots physical electronic devices. " +
			"For software help, please consult the software's help documentation.",
		"document": "This appears to be a document or text content. " +
			"FixIt AI needs a photo of the physical device you want to troubleshoot.",
		"nature": "This appears to be a nature or outdoor scene. " +
			"FixIt AI is designed to help with electronic device troubleshooting. " +
			"Please upload a photo of the device you need assistance with.",
		"food": "This appears to be a food or beverage image. " +
			"FixIt AI helps troubleshoot electronic devices. " +
			"Please upload a photo of the device you need help with.",
		"artwork": "This appears to be artwork or an illustration. " +
			"FixIt AI needs a real photograph of a physical electronic device to provide troubleshooting help.",
	}
)

const (
	defaultSafetyWarning = "This situation may require professional help."
	defaultSuggestion    = "Please upload a photo of an electronic device."
)

// Input is everything the gates produced for one request. Terminal gates
// leave the later fields empty.
type Input struct {
	RequestID    string
	AnswerType   entities.AnswerType
	Validation   entities.ValidationResult
	Device       entities.DeviceProfile
	Intent       entities.QueryIntent
	Safety       entities.SafetyAssessment
	Localization []entities.LocalizationResult
	Content      *entities.ContentPayload
	Grounding    *entities.GroundingResult
	ImageWidth   int
	ImageHeight  int
}

// Assemble builds the response document for any answer type
func Assemble(in Input) *entities.TroubleshootResponse {
	at, _ := entities.ParseAnswerType(string(in.AnswerType))
	spec := at.Spec()
	level := in.Device.Level
	if level == "" {
		level = entities.LevelFor(in.Device.Confidence)
	}

	resp := &entities.TroubleshootResponse{
		RequestID:          in.RequestID,
		AnswerType:         at,
		CannotComplyReason: cannotComplyReason(at, in),
		NeedsClarification: at == entities.AnswerAskClarifying || in.Intent.ClarificationNeeded,
		Message:            messageFor(at, in),
		SectionTitle:       spec.Title,
		DeviceInfo:         deviceInfo(in.Device),
		Visualizations:     Visualizations(in.Localization, in.ImageWidth, in.ImageHeight),

		Status:             spec.LegacyStatus,
		DeviceIdentified:   deviceTypeOr(in.Device.DeviceType),
		DeviceConfidence:   in.Device.Confidence,
		ConfidenceLevel:    level,
		DetectedComponents: in.Device.Components,
	}

	if at.Allows(entities.FieldLocalization) {
		resp.LocalizationResults = localizationResults(in.Localization)
	}
	if at.Allows(entities.FieldExplanation) && in.Content != nil {
		resp.Explanation = in.Content.Explanation
	}
	if at.Allows(entities.FieldDiagnosis) {
		resp.Diagnosis = diagnosis(in.Content, in.Safety)
	}
	if at.Allows(entities.FieldSteps) {
		resp.TroubleshootingSteps = steps(in.Content, in.Safety)
	}
	if in.Content != nil && in.Content.NeedsClarification {
		resp.NeedsClarification = true
	}
	if resp.NeedsClarification {
		resp.ClarifyingQuestions = clarifyingQuestions(in)
	}

	if in.Content != nil {
		resp.AudioInstructions = in.Content.Audio
		resp.IssueDiagnosis = in.Content.IssueDiagnosis
		resp.Warnings = in.Content.Warnings
		resp.WhenToSeekHelp = in.Content.WhenToSeekHelp
	} else {
		resp.IssueDiagnosis = resp.Message
	}

	applyGrounding(resp, in.Grounding)

	if in.Safety.Detected {
		safety := in.Safety
		resp.Safety = &safety
	}

	switch at {
	case entities.AnswerRejectInvalidImage:
		applyRejection(resp, in.Validation)
	case entities.AnswerAskBetterInput:
		resp.WhatISee = in.Device.WhatISee
		resp.Reasoning = in.Device.Reasoning
		resp.Suggestions = in.Device.Suggestions
		if len(resp.Suggestions) == 0 {
			resp.Suggestions = defaultBetterInputSuggestions
		}
	}
	return resp
}

func cannotComplyReason(at entities.AnswerType, in Input) *string {
	var reason string
	switch at {
	case entities.AnswerRejectInvalidImage:
		reason = entities.ReasonInvalidImage
	case entities.AnswerAskBetterInput:
		if in.Validation.Quality.Poor() || in.Device.Confidence < entities.MediumConfidenceThreshold {
			reason = entities.ReasonLowConfidence
		}
	case entities.AnswerSafetyWarningOnly:
		reason = entities.ReasonSafetyRisk
	}
	if reason == "" {
		return nil
	}
	return &reason
}

func messageFor(at entities.AnswerType, in Input) string {
	device := in.Device.DeviceType
	if device == "" {
		device = "device"
	}
	switch at {
	case entities.AnswerLocateOnly:
		return fmt.Sprintf("Located components on your %s.", device)
	case entities.AnswerIdentifyOnly:
		return fmt.Sprintf("I identified this as a %s.", device)
	case entities.AnswerExplainOnly:
		return fmt.Sprintf("Here's how your %s works.", device)
	case entities.AnswerTroubleshootSteps:
		return fmt.Sprintf("Here's how to troubleshoot your %s.", device)
	case entities.AnswerDiagnoseOnly:
		return fmt.Sprintf("Here's my diagnosis for your %s.", device)
	case entities.AnswerMixed:
		return fmt.Sprintf("Here's a comprehensive analysis of your %s.", device)
	case entities.AnswerAskClarifying:
		return "I need more information to help you effectively."
	case entities.AnswerAskBetterInput:
		return "I'm having trouble analyzing the image clearly."
	case entities.AnswerSafetyWarningOnly:
		return "This situation may require professional help. Please read the safety warning carefully."
	case entities.AnswerRejectInvalidImage:
		if in.Validation.RejectionReason != nil {
			return *in.Validation.RejectionReason
		}
		return "This image is not suitable for device troubleshooting."
	}
	return "Analysis complete."
}

func deviceInfo(d entities.DeviceProfile) *entities.DeviceInfo {
	info := &entities.DeviceInfo{
		DeviceCategory: d.DeviceCategory,
		DeviceType:     deviceTypeOr(d.DeviceType),
		Brand:          d.Brand,
		Model:          d.Model,
		Confidence:     d.Confidence,
		Components:     d.Components,
	}
	if info.DeviceCategory == "" {
		info.DeviceCategory = "unknown"
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
	if !d.HasBrand() || !d.HasModel() {
		info.BrandModelGuidance = d.BrandModelGuidance
	}
	return info
}

func deviceTypeOr(t string) string {
	if t == "" {
		return entities.DeviceTypeUnknown
	}
	return t
}

func localizationResults(results []entities.LocalizationResult) []*entities.LocalizationResult {
	out := make([]*entities.LocalizationResult, 0, len(results))
	for i := range results {
		r := results[i]
		out = append(out, &r)
	}
	return out
}

// diagnosis copies the generated diagnosis and lets a detected hazard
// override its warning. Only critical hazards raise the severity.
func diagnosis(content *entities.ContentPayload, safety entities.SafetyAssessment) *entities.Diagnosis {
	d := &entities.Diagnosis{Severity: entities.DiagnosisMedium}
	if content != nil {
		if content.Diagnosis != nil {
			cp := *content.Diagnosis
			d = &cp
			if d.Severity == "" {
				d.Severity = entities.DiagnosisMedium
			}
		} else {
			d.Issue = content.IssueDiagnosis
		}
	}
	if safety.Detected {
		warning := defaultSafetyWarning
		if safety.Message != nil && *safety.Message != "" {
			warning = *safety.Message
		}
		d.SafetyWarning = &warning
		if safety.Severity == entities.SeverityCritical {
			d.Severity = entities.DiagnosisCritical
		}
	}
	return d
}

func steps(content *entities.ContentPayload, safety entities.SafetyAssessment) []*entities.Step {
	out := []*entities.Step{}
	if content == nil {
		return out
	}
	for i, s := range content.Steps {
		if s == nil {
			continue
		}
		cp := *s
		if cp.Step <= 0 {
			cp.Step = i + 1
		}
		out = append(out, &cp)
	}
	if safety.Detected && safety.Severity == entities.SeverityWarning && safety.Message != nil && len(out) > 0 {
		if out[0].SafetyNote == nil {
			note := *safety.Message
			out[0].SafetyNote = &note
		}
	}
	return out
}

func clarifyingQuestions(in Input) []string {
	switch {
	case len(in.Intent.ClarifyingQuestions) > 0:
		return in.Intent.ClarifyingQuestions
	case in.Content != nil && len(in.Content.ClarifyingQuestions) > 0:
		return in.Content.ClarifyingQuestions
	case len(in.Device.ClarifyingQuestions) > 0:
		return in.Device.ClarifyingQuestions
	}
	return defaultClarifyingQuestions
}

// Visualizations derives AR overlays from found localizations. Overlay ids
// follow the position in the localization list.
func Visualizations(results []entities.LocalizationResult, width, height int) []*entities.Visualization {
	out := []*entities.Visualization{}
	for i, r := range results {
		if r.Status != entities.StatusFound {
			continue
		}
		var box *entities.PixelBox
		if r.BoundingBox != nil && width > 0 && height > 0 {
			box = spatial.ClampBox(r.BoundingBox, width, height)
		} else if r.BoundingBox != nil {
			cp := *r.BoundingBox
			box = &cp
		}
		out = append(out, &entities.Visualization{
			Target:               r.Target,
			BoundingBox:          box,
			Label:                titleCase(r.Target),
			LandmarkDescription:  r.LandmarkDescription,
			Confidence:           r.Confidence,
			OverlayID:            fmt.Sprintf("viz_%d", i+1),
			DisambiguationNeeded: r.DisambiguationNeeded,
			AmbiguityNote:        r.AmbiguityNote,
		})
	}
	return out
}

func applyGrounding(resp *entities.TroubleshootResponse, g *entities.GroundingResult) {
	if g == nil || !g.Grounded {
		return
	}
	resp.WebGroundingUsed = true
	summary := g.SourcesSummary
	if summary == "" {
		summary = "Google Search"
	}
	resp.GroundingSources = g.Sources
	if len(resp.GroundingSources) == 0 {
		resp.GroundingSources = []entities.GroundingSource{{Title: summary}}
	}
	resp.GroundingSourcesSummary = &summary
	resp.GroundingDisclaimer = g.Disclaimer
	resp.SearchEntryPointHTML = g.SearchEntryPointHTML
}

func applyRejection(resp *entities.TroubleshootResponse, v entities.ValidationResult) {
	category := v.Category
	if category == "" {
		category = "unknown"
	}
	resp.ImageCategory = category
	resp.WhatWasDetected = v.WhatISee
	resp.Suggestion = defaultSuggestion
	if v.Suggestion != nil && *v.Suggestion != "" {
		resp.Suggestion = *v.Suggestion
	}
	resp.SupportedDevices = v.SupportedDevices
	if len(resp.SupportedDevices) == 0 {
		resp.SupportedDevices = defaultSupportedDevices
	}
	resp.Message = RejectionMessage(category, v.WhatISee, v.RejectionReason)
	resp.IssueDiagnosis = resp.Message
}

// RejectionMessage explains why the image was rejected, based on what the
// model saw in it
func RejectionMessage(category, whatISee string, reason *string) string {
	if msg, ok := contextualRejections[strings.ReplaceAll(strings.ToLower(category), " ", "_")]; ok {
		return msg
	}
	if whatISee != "" {
		return fmt.Sprintf("I can see %s, but this doesn't appear to be an electronic device I can help troubleshoot. "+
			"FixIt AI helps with devices like routers, printers, laptops, and appliances. "+
			"Please upload a photo of the device you need help with.", whatISee)
	}
	if reason != nil && *reason != "" {
		return *reason
	}
	return "This image is not suitable for device troubleshooting. Please upload a photo of an electronic device."
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
