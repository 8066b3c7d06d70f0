package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
	"github.com/satriahrh/fixit/server/internal/analysis"
	"github.com/satriahrh/fixit/server/internal/narration"
	"github.com/satriahrh/fixit/server/internal/response"
	"github.com/satriahrh/fixit/server/internal/schema"
	"github.com/satriahrh/fixit/server/internal/spatial"
)

// LocalizationGate places bounding boxes on the requested components
type LocalizationGate struct {
	locator *spatial.Locator
	logger  *zap.Logger
}

func NewLocalizationGate(locator *spatial.Locator, logger *zap.Logger) *LocalizationGate {
	return &LocalizationGate{locator: locator, logger: logger}
}

func (g *LocalizationGate) ID() GateID { return GateLocalization }

func (g *LocalizationGate) Execute(ctx context.Context, s *State) Outcome {
	ok, reason := spatial.ShouldAttemptLocalization(&s.Device, s.AnswerType())
	if !ok {
		return Skip(reason)
	}

	targets := spatial.TargetsFor(s.Intent.Targets(), s.Request.Query, s.Device.Components)
	results, err := g.locator.LocateAll(ctx, s.Image, targets, s.Width, s.Height, &s.Device)
	if err != nil {
		g.logger.Error("Localization failed",
			zap.String("requestID", s.Request.RequestID),
			zap.Strings("targets", targets),
			zap.Error(err))
		results = make([]entities.LocalizationResult, 0, len(targets))
		for _, t := range targets {
			results = append(results, entities.NotFoundResult(t, "Localization error: "+err.Error()))
		}
	}
	s.Localization = results

	found := 0
	for _, r := range results {
		if r.Found() {
			found++
		}
	}
	return Continue(fmt.Sprintf("%d of %d targets found", found, len(results)))
}

// GroundingGate fetches web-search backed guidance when it is worth a call
type GroundingGate struct {
	analyzer *analysis.Analyzer
	gateway  repositories.ModelGateway
	enabled  bool
	logger   *zap.Logger
}

func NewGroundingGate(analyzer *analysis.Analyzer, gateway repositories.ModelGateway, enabled bool, logger *zap.Logger) *GroundingGate {
	return &GroundingGate{analyzer: analyzer, gateway: gateway, enabled: enabled, logger: logger}
}

func (g *GroundingGate) ID() GateID { return GateGrounding }

func (g *GroundingGate) Execute(ctx context.Context, s *State) Outcome {
	if !g.enabled {
		return Skip("web grounding disabled")
	}
	ok, reason := analysis.ShouldGround(s.AnswerType(), s.Device, s.Request.Query)
	if !ok {
		return Skip(reason)
	}

	result, err := g.analyzer.Ground(ctx, s.Device, s.Request.Query, "")
	if err != nil {
		g.logger.Warn("Web grounding failed, continuing without it",
			zap.String("requestID", s.Request.RequestID),
			zap.Error(err))
		if g.gateway.BreakerOpen() {
			g.logger.Info("Resetting circuit breaker tripped by optional grounding call")
			g.gateway.ResetBreaker()
		}
		return Continue("grounding failed: " + err.Error())
	}
	if result == nil || !result.Grounded {
		return Continue("no search evidence returned")
	}
	s.Grounding = result
	return Continue(fmt.Sprintf("%s; %d sources", reason, len(result.Sources)))
}

// ContentGate generates the explanation, diagnosis or steps for the answer type
type ContentGate struct {
	analyzer *analysis.Analyzer
	logger   *zap.Logger
}

func NewContentGate(analyzer *analysis.Analyzer, logger *zap.Logger) *ContentGate {
	return &ContentGate{analyzer: analyzer, logger: logger}
}

func (g *ContentGate) ID() GateID { return GateContentGeneration }

func (g *ContentGate) Execute(ctx context.Context, s *State) Outcome {
	if s.AnswerType().Spec().Content == entities.ContentNone {
		return Skip("no content for answer_type=" + string(s.AnswerType()))
	}

	req := analysis.ContentRequest{
		AnswerType: s.AnswerType(),
		Query:      s.Request.Query,
		Device:     s.Device,
		Intent:     s.Intent,
		Spatial:    entities.SpatialContextFrom(s.Localization),
		Safety:     s.Safety,
	}
	if s.Grounding != nil {
		req.Grounding = s.Grounding.Guidance
	}

	s.Content = g.analyzer.Generate(ctx, req)
	if s.Content == nil {
		return Skip("nothing generated")
	}
	if s.Content.Fallback {
		return Continue(fmt.Sprintf("%s content from fallback", s.Content.Kind))
	}
	return Continue(fmt.Sprintf("%s content generated", s.Content.Kind))
}

// AssemblyGate builds, narrates and validates the response document
type AssemblyGate struct {
	narrator  repositories.Narrator
	validator *schema.Validator
	logger    *zap.Logger
}

func NewAssemblyGate(narrator repositories.Narrator, validator *schema.Validator, logger *zap.Logger) *AssemblyGate {
	return &AssemblyGate{narrator: narrator, validator: validator, logger: logger}
}

func (g *AssemblyGate) ID() GateID { return GateAssembly }

func (g *AssemblyGate) Execute(ctx context.Context, s *State) Outcome {
	if s.Response == nil {
		s.Response = response.Assemble(response.Input{
			RequestID:    s.Request.RequestID,
			AnswerType:   s.AnswerType(),
			Validation:   s.Validation,
			Device:       s.Device,
			Intent:       s.Intent,
			Safety:       s.Safety,
			Localization: s.Localization,
			Content:      s.Content,
			Grounding:    s.Grounding,
			ImageWidth:   s.Width,
			ImageHeight:  s.Height,
		})
	}
	s.Response.RequestID = s.Request.RequestID

	if g.narrator != nil && narration.NeedsNarration(s.Response) {
		s.Response.AudioInstructions = g.narrator.Narrate(s.Response)
	}
	s.Response = g.validator.Validate(s.Response)
	return Continue("answer_type=" + string(s.Response.AnswerType))
}
