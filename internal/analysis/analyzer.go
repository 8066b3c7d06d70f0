// Package analysis holds the model-backed stages of a troubleshoot request:
// the combined analysis call, standalone validation and detection, the safety
// scan, web grounding and content generation.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
)

// Call purposes, used in logs and by scripted models
const (
	PurposeCombined = "combined_analysis"
	PurposeValidate = "validate_image"
	PurposeDetect   = "detect_device"
	PurposeGround   = "web_grounding"
	PurposeExplain  = "explanation"
	PurposeDiagnose = "diagnosis"
	PurposeSteps    = "troubleshooting_steps"
	PurposeCautious = "cautious_steps"
)

const (
	combinedTokens   = 3000
	groundingTokens  = 3000
	stepsTokens      = 4000
	defaultMaxTokens = 2000
)

// Combined is the four-section result of the combined analysis call
type Combined struct {
	Validation entities.ValidationResult
	Device     entities.DeviceProfile
	Intent     entities.QueryIntent
	Safety     entities.SafetyAssessment
	// IntentInferred is set when the reply had no query section and the
	// intent was derived from the query text
	IntentInferred bool
}

// Analyzer runs the analysis calls through the model gateway
type Analyzer struct {
	gateway repositories.ModelGateway
	logger  *zap.Logger
}

// NewAnalyzer creates an Analyzer
func NewAnalyzer(gateway repositories.ModelGateway, logger *zap.Logger) *Analyzer {
	return &Analyzer{gateway: gateway, logger: logger}
}

// Combined validates the image, identifies the device, classifies the query
// and flags safety risks in a single model call
func (a *Analyzer) Combined(ctx context.Context, img *entities.ImagePart, query, deviceHint string) (*Combined, error) {
	res, err := a.gateway.Invoke(ctx, entities.ModelRequest{
		Purpose:         PurposeCombined,
		Parts:           []entities.Part{entities.TextPart(combinedPrompt(query, deviceHint)), entities.ImagePromptPart(img)},
		ExpectJSON:      true,
		Temperature:     0.2,
		MaxOutputTokens: combinedTokens,
	})
	if err != nil {
		return nil, err
	}
	combined, err := ParseCombined(res.Raw, query)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Combined analysis completed",
		zap.Bool("valid", combined.Validation.IsValid),
		zap.String("device_type", combined.Device.DeviceType),
		zap.Float64("device_confidence", combined.Device.Confidence),
		zap.String("answer_type", string(combined.Intent.AnswerType)),
		zap.Bool("cached", res.Cached),
	)
	return combined, nil
}

// ParseCombined reads a combined analysis reply. Missing sections fall back
// to neutral defaults; a reply that is not an object is an error.
func ParseCombined(raw []byte, query string) (*Combined, error) {
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, errors.New("combined analysis reply is not an object")
	}
	if msg := root.Get("error"); msg.Exists() && msg.String() != "" {
		return nil, fmt.Errorf("combined analysis reported an error: %s", msg.String())
	}

	c := &Combined{
		Validation: parseValidation(root.Get("validation")),
		Device:     parseDevice(root.Get("device")),
		Safety:     parseSafety(root.Get("safety")),
	}
	if q := root.Get("query"); q.IsObject() {
		c.Intent = parseIntent(q)
	} else {
		c.Intent = HeuristicIntent(query)
		c.IntentInferred = true
	}
	return c, nil
}

func parseValidation(v gjson.Result) entities.ValidationResult {
	category := normalizeCategory(v.Get("image_category").String())
	if category == "" {
		category = "unknown"
	}
	r := entities.ValidationResult{
		Category:         category,
		IsPhysicalDevice: v.Get("is_physical_device").Bool(),
		Confidence:       clampUnit(v.Get("confidence").Float()),
		Quality:          entities.ImageQuality(strings.ToLower(v.Get("image_quality").String())),
		WhatISee:         v.Get("what_i_see").String(),
		RejectionReason:  optionalString(v.Get("rejection_reason")),
		Suggestion:       optionalString(v.Get("suggestion")),
		MultipleDevices:  v.Get("multiple_devices").Bool(),
		DeviceList:       stringList(v.Get("device_list")),
	}
	if r.Quality == "" {
		r.Quality = entities.QualityGood
	}
	// A reply may reject a valid category, never accept an invalid one
	r.IsValid = ValidCategory(r.Category, r.IsPhysicalDevice, r.Confidence)
	if valid := v.Get("is_valid"); valid.Exists() {
		r.IsValid = r.IsValid && valid.Bool()
	}
	return r
}

func parseDevice(d gjson.Result) entities.DeviceProfile {
	p := entities.DeviceProfile{
		DeviceType:          stringOr(d.Get("device_type"), entities.DeviceTypeUnknown),
		DeviceCategory:      stringOr(d.Get("device_category"), "unknown"),
		Brand:               stringOr(d.Get("brand"), "unknown"),
		Model:               stringOr(d.Get("model"), "not visible"),
		BrandModelGuidance:  optionalString(d.Get("brand_model_guidance")),
		Confidence:          clampUnit(d.Get("device_confidence").Float()),
		Components:          stringList(d.Get("components")),
		Reasoning:           d.Get("reasoning").String(),
		WhatISee:            d.Get("what_i_see").String(),
		Suggestions:         stringList(d.Get("suggestions")),
		ClarifyingQuestions: stringList(d.Get("clarifying_questions")),
	}
	switch level := entities.ConfidenceLevel(strings.ToLower(d.Get("confidence_level").String())); level {
	case entities.ConfidenceHigh, entities.ConfidenceMedium, entities.ConfidenceLow:
		p.Level = level
	}
	if ident := d.Get("is_identifiable"); ident.Exists() {
		p.IsIdentifiable = ident.Bool()
	} else {
		p.IsIdentifiable = p.Identified() && p.Confidence >= entities.MediumConfidenceThreshold
	}
	return p
}

func parseIntent(q gjson.Result) entities.QueryIntent {
	intent := entities.QueryIntent{
		QueryType:           stringOr(q.Get("query_type"), "unclear"),
		AnswerType:          entities.AnswerType(strings.TrimSpace(q.Get("answer_type").String())),
		TargetComponent:     strings.TrimSpace(q.Get("target_component").String()),
		TargetComponents:    stringList(q.Get("target_components")),
		ActionRequested:     q.Get("action_requested").String(),
		NeedsLocalization:   q.Get("needs_localization").Bool(),
		NeedsSteps:          q.Get("needs_steps").Bool(),
		NeedsExplanation:    q.Get("needs_explanation").Bool(),
		MultiIntentCount:    int(q.Get("multi_intent_count").Int()),
		DetectedIntents:     stringList(q.Get("detected_intents")),
		ClarificationNeeded: q.Get("clarification_needed").Bool(),
		ClarifyingQuestions: stringList(q.Get("clarifying_questions")),
		Confidence:          clampUnit(q.Get("confidence").Float()),
	}
	if strings.EqualFold(intent.TargetComponent, "null") {
		intent.TargetComponent = ""
	}
	return intent
}

func parseSafety(s gjson.Result) entities.SafetyAssessment {
	a := entities.SafetyAssessment{
		Detected:           s.Get("safety_detected").Bool(),
		Severity:           entities.SafetySeverity(strings.ToLower(s.Get("safety_severity").String())),
		KeywordsFound:      stringList(s.Get("safety_keywords_found")),
		Message:            optionalString(s.Get("safety_message")),
		OverrideAnswerType: s.Get("override_answer_type").Bool(),
	}
	switch a.Severity {
	case entities.SeverityWarning, entities.SeverityCritical:
	default:
		a.Severity = entities.SeverityNone
	}
	return a
}

func normalizeCategory(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func stringOr(v gjson.Result, fallback string) string {
	if v.Type != gjson.String {
		return fallback
	}
	if s := strings.TrimSpace(v.Str); s != "" {
		return s
	}
	return fallback
}

func optionalString(v gjson.Result) *string {
	if v.Type != gjson.String {
		return nil
	}
	s := strings.TrimSpace(v.Str)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

func stringList(v gjson.Result) []string {
	if !v.IsArray() {
		return nil
	}
	var out []string
	for _, item := range v.Array() {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
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
