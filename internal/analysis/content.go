package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
)

// ContentRequest carries everything content generation may draw on
type ContentRequest struct {
	AnswerType entities.AnswerType
	Query      string
	Device     entities.DeviceProfile
	Intent     entities.QueryIntent
	Spatial    *entities.SpatialContext
	// Grounding is web-search guidance, empty when grounding did not run
	Grounding string
	Safety    entities.SafetyAssessment
}

var (
	severityValues = []string{entities.DiagnosisLow, entities.DiagnosisMedium, entities.DiagnosisHigh, entities.DiagnosisCritical}

	diagnosisSchema = &entities.Schema{
		Type: entities.SchemaObject,
		Properties: map[string]*entities.Schema{
			"issue":               {Type: entities.SchemaString},
			"severity":            {Type: entities.SchemaString, Enum: severityValues},
			"safety_warning":      {Type: entities.SchemaString, Nullable: true},
			"possible_causes":     {Type: entities.SchemaArray, Items: &entities.Schema{Type: entities.SchemaString}},
			"indicators":          {Type: entities.SchemaArray, Items: &entities.Schema{Type: entities.SchemaString}},
			"professional_needed": {Type: entities.SchemaBoolean},
		},
		Required: []string{"issue", "severity", "possible_causes", "indicators", "professional_needed"},
	}

	stepSchema = &entities.Schema{
		Type: entities.SchemaObject,
		Properties: map[string]*entities.Schema{
			"step_number":    {Type: entities.SchemaInteger},
			"instruction":    {Type: entities.SchemaString},
			"visual_cue":     {Type: entities.SchemaString},
			"estimated_time": {Type: entities.SchemaString},
			"safety_note":    {Type: entities.SchemaString, Nullable: true},
		},
		Required: []string{"step_number", "instruction", "visual_cue", "estimated_time"},
	}

	stepsSchema = &entities.Schema{
		Type: entities.SchemaObject,
		Properties: map[string]*entities.Schema{
			"issue_diagnosis":       {Type: entities.SchemaString},
			"diagnosis":             diagnosisSchema,
			"troubleshooting_steps": {Type: entities.SchemaArray, Items: stepSchema},
			"audio_instructions":    {Type: entities.SchemaString},
			"warnings":              {Type: entities.SchemaArray, Items: &entities.Schema{Type: entities.SchemaString}},
			"when_to_seek_help":     {Type: entities.SchemaString},
		},
		Required: []string{"issue_diagnosis", "diagnosis", "troubleshooting_steps", "audio_instructions"},
	}

	diagnosisOnlySchema = &entities.Schema{
		Type: entities.SchemaObject,
		Properties: map[string]*entities.Schema{
			"diagnosis":          diagnosisSchema,
			"audio_instructions": {Type: entities.SchemaString},
		},
		Required: []string{"diagnosis", "audio_instructions"},
	}

	explanationSchema = &entities.Schema{
		Type: entities.SchemaObject,
		Properties: map[string]*entities.Schema{
			"explanation": {
				Type: entities.SchemaObject,
				Properties: map[string]*entities.Schema{
					"overview": {Type: entities.SchemaString},
					"key_components": {
						Type: entities.SchemaArray,
						Items: &entities.Schema{
							Type: entities.SchemaObject,
							Properties: map[string]*entities.Schema{
								"name":     {Type: entities.SchemaString},
								"function": {Type: entities.SchemaString},
								"location": {Type: entities.SchemaString},
							},
							Required: []string{"name", "function"},
						},
					},
					"how_it_works":  {Type: entities.SchemaString},
					"common_issues": {Type: entities.SchemaArray, Items: &entities.Schema{Type: entities.SchemaString}},
				},
				Required: []string{"overview", "how_it_works"},
			},
			"audio_instructions": {Type: entities.SchemaString},
		},
		Required: []string{"explanation", "audio_instructions"},
	}
)

// Generate produces the content sections for the answer type. It never
// fails: model errors degrade to locally built fallback payloads. Answer
// types without content return nil.
func (a *Analyzer) Generate(ctx context.Context, req ContentRequest) *entities.ContentPayload {
	var payload *entities.ContentPayload
	switch kind := req.AnswerType.Spec().Content; kind {
	case entities.ContentExplanation:
		payload = a.explain(ctx, req)
	case entities.ContentDiagnosis:
		payload = a.diagnose(ctx, req)
	case entities.ContentSteps:
		payload = a.steps(ctx, req)
	case entities.ContentMixed:
		payload = a.mixed(ctx, req)
	default:
		return nil
	}
	a.logger.Info("Content generated",
		zap.String("answer_type", string(req.AnswerType)),
		zap.String("kind", string(payload.Kind)),
		zap.Bool("fallback", payload.Fallback),
		zap.Int("steps", len(payload.Steps)))
	return payload
}

func (a *Analyzer) explain(ctx context.Context, req ContentRequest) *entities.ContentPayload {
	res, err := a.gateway.Invoke(ctx, entities.ModelRequest{
		Purpose:         PurposeExplain,
		Parts:           []entities.Part{entities.TextPart(explainPrompt(req))},
		Schema:          explanationSchema,
		Temperature:     0.3,
		MaxOutputTokens: defaultMaxTokens,
	})
	if err != nil {
		a.logger.Error("Explanation generation failed", zap.Error(err))
		return fallbackExplanation(req.Device.DeviceType, req.Intent.TargetComponent)
	}
	root := gjson.ParseBytes(res.Raw)
	explanation := parseExplanation(root.Get("explanation"))
	if explanation == nil {
		return fallbackExplanation(req.Device.DeviceType, req.Intent.TargetComponent)
	}
	return &entities.ContentPayload{
		Kind:        entities.ContentExplanation,
		Explanation: explanation,
		Audio:       root.Get("audio_instructions").String(),
	}
}

func (a *Analyzer) diagnose(ctx context.Context, req ContentRequest) *entities.ContentPayload {
	res, err := a.gateway.Invoke(ctx, entities.ModelRequest{
		Purpose:         PurposeDiagnose,
		Parts:           []entities.Part{entities.TextPart(diagnosisPrompt(req))},
		Schema:          diagnosisOnlySchema,
		Temperature:     0.3,
		MaxOutputTokens: defaultMaxTokens,
	})
	if err != nil {
		a.logger.Error("Diagnosis generation failed", zap.Error(err))
		if errors.Is(err, domain.ErrMalformedOutput) {
			return fallbackDiagnosis(req.Device.DeviceType)
		}
		return errorDiagnosis()
	}
	root := gjson.ParseBytes(res.Raw)
	diagnosis := parseDiagnosis(root.Get("diagnosis"))
	if diagnosis == nil {
		return fallbackDiagnosis(req.Device.DeviceType)
	}
	return &entities.ContentPayload{
		Kind:      entities.ContentDiagnosis,
		Diagnosis: diagnosis,
		Audio:     root.Get("audio_instructions").String(),
	}
}

// steps routes on the device confidence tier: no device gets identification
// help, low confidence asks questions, medium gets cautious generic steps.
func (a *Analyzer) steps(ctx context.Context, req ContentRequest) *entities.ContentPayload {
	d := req.Device
	level := d.Level
	if level == "" {
		level = entities.LevelFor(d.Confidence)
	}
	switch {
	case !d.Identified():
		return identificationHelp(d)
	case level == entities.ConfidenceLow || d.Confidence < entities.MediumConfidenceThreshold:
		return diagnosticQuestions(d)
	case level == entities.ConfidenceMedium || d.Confidence < entities.HighConfidenceThreshold:
		return a.generateSteps(ctx, req, PurposeCautious, cautiousPrompt(req), func() *entities.ContentPayload {
			return cautiousFallback(d.DeviceType)
		})
	default:
		return a.generateSteps(ctx, req, PurposeSteps, stepsPrompt(req), func() *entities.ContentPayload {
			return fallbackSteps(d.DeviceType)
		})
	}
}

func (a *Analyzer) generateSteps(ctx context.Context, req ContentRequest, purpose, prompt string, fallback func() *entities.ContentPayload) *entities.ContentPayload {
	res, err := a.gateway.Invoke(ctx, entities.ModelRequest{
		Purpose:         purpose,
		Parts:           []entities.Part{entities.TextPart(prompt)},
		Schema:          stepsSchema,
		Temperature:     0.3,
		MaxOutputTokens: stepsTokens,
	})
	if err != nil {
		a.logger.Error("Step generation failed", zap.String("purpose", purpose), zap.Error(err))
		switch {
		case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrRateLimited):
			return quotaExhausted(req.Device.DeviceType, req.Spatial)
		case errors.Is(err, domain.ErrMalformedOutput), purpose == PurposeCautious:
			return fallback()
		default:
			return stepsError()
		}
	}
	root := gjson.ParseBytes(res.Raw)
	if !root.IsObject() {
		return fallback()
	}
	return parseStepsPayload(root)
}

func (a *Analyzer) mixed(ctx context.Context, req ContentRequest) *entities.ContentPayload {
	explanation := a.explain(ctx, req)
	steps := a.steps(ctx, req)

	payload := &entities.ContentPayload{
		Kind:                entities.ContentMixed,
		Explanation:         explanation.Explanation,
		Diagnosis:           steps.Diagnosis,
		Steps:               steps.Steps,
		IssueDiagnosis:      steps.IssueDiagnosis,
		Audio:               steps.Audio,
		Warnings:            steps.Warnings,
		WhenToSeekHelp:      steps.WhenToSeekHelp,
		NeedsClarification:  steps.NeedsClarification,
		ClarifyingQuestions: steps.ClarifyingQuestions,
		Fallback:            explanation.Fallback || steps.Fallback,
	}
	if payload.Diagnosis == nil {
		payload.Diagnosis = &entities.Diagnosis{
			Issue:    steps.IssueDiagnosis,
			Severity: entities.DiagnosisMedium,
		}
	}
	return payload
}

func parseStepsPayload(root gjson.Result) *entities.ContentPayload {
	p := &entities.ContentPayload{
		Kind:           entities.ContentSteps,
		IssueDiagnosis: stringOr(root.Get("issue_diagnosis"), "Unable to determine specific diagnosis."),
		Diagnosis:      parseDiagnosis(root.Get("diagnosis")),
		Steps:          parseSteps(root.Get("troubleshooting_steps")),
		Audio:          root.Get("audio_instructions").String(),
		Warnings:       stringList(root.Get("warnings")),
		WhenToSeekHelp: optionalString(root.Get("when_to_seek_help")),
	}
	return p
}

func parseExplanation(v gjson.Result) *entities.Explanation {
	if !v.IsObject() {
		return nil
	}
	e := &entities.Explanation{
		Overview:     v.Get("overview").String(),
		HowItWorks:   v.Get("how_it_works").String(),
		CommonIssues: stringList(v.Get("common_issues")),
	}
	for _, c := range v.Get("key_components").Array() {
		name := strings.TrimSpace(c.Get("name").String())
		if name == "" {
			continue
		}
		e.KeyComponents = append(e.KeyComponents, entities.KeyComponent{
			Name:     name,
			Function: c.Get("function").String(),
			Location: c.Get("location").String(),
		})
	}
	if e.Overview == "" && e.HowItWorks == "" {
		return nil
	}
	return e
}

func parseDiagnosis(v gjson.Result) *entities.Diagnosis {
	if !v.IsObject() {
		return nil
	}
	d := &entities.Diagnosis{
		Issue:              v.Get("issue").String(),
		Severity:           strings.ToLower(v.Get("severity").String()),
		SafetyWarning:      optionalString(v.Get("safety_warning")),
		PossibleCauses:     stringList(v.Get("possible_causes")),
		Indicators:         stringList(v.Get("indicators")),
		ProfessionalNeeded: v.Get("professional_needed").Bool(),
	}
	switch d.Severity {
	case entities.DiagnosisLow, entities.DiagnosisMedium, entities.DiagnosisHigh, entities.DiagnosisCritical:
	default:
		d.Severity = entities.DiagnosisMedium
	}
	return d
}

// parseSteps keeps the model's order; numbering is fixed by the assembler
func parseSteps(v gjson.Result) []*entities.Step {
	var steps []*entities.Step
	for i, s := range v.Array() {
		if !s.IsObject() {
			continue
		}
		n := int(s.Get("step_number").Int())
		if n == 0 {
			n = int(s.Get("step").Int())
		}
		if n == 0 {
			n = i + 1
		}
		steps = append(steps, &entities.Step{
			Step:          n,
			Instruction:   stringOr(s.Get("instruction"), "No instruction available"),
			VisualCue:     s.Get("visual_cue").String(),
			EstimatedTime: stringOr(s.Get("estimated_time"), "N/A"),
			SafetyNote:    optionalString(s.Get("safety_note")),
		})
	}
	return steps
}
