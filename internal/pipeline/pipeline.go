// Package pipeline runs a troubleshoot request through the ordered gates,
// from image ingestion to the validated response document.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
	"github.com/satriahrh/fixit/server/internal/analysis"
	"github.com/satriahrh/fixit/server/internal/response"
	"github.com/satriahrh/fixit/server/internal/schema"
	"github.com/satriahrh/fixit/server/internal/spatial"
)

const recordTimeout = 5 * time.Second

// Config holds pipeline switches
type Config struct {
	EnableGrounding bool
}

// Dependencies are the collaborators the gates call into
type Dependencies struct {
	Images    repositories.ImageProcessor
	Gateway   repositories.ModelGateway
	Analyzer  *analysis.Analyzer
	Locator   *spatial.Locator
	Narrator  repositories.Narrator
	Validator *schema.Validator
	// Log and Events are optional
	Log    repositories.AnalysisLog
	Events EventSink
}

// Pipeline executes the gates of a troubleshoot request in order
type Pipeline struct {
	gates     []Gate
	validator *schema.Validator
	log       repositories.AnalysisLog
	events    EventSink
	logger    *zap.Logger
}

// New creates a pipeline with the standard twelve gates
func New(deps Dependencies, config Config, logger *zap.Logger) *Pipeline {
	gates := []Gate{
		NewIngestionGate(deps.Images, logger),
		NewCombinedAnalysisGate(deps.Analyzer, deps.Gateway, logger),
		NewValidityGate(),
		NewQualityGate(),
		NewSafetyGate(logger),
		NewDeviceConfidenceGate(),
		NewMultiDeviceGate(),
		NewIntentRepairGate(logger),
		NewLocalizationGate(deps.Locator, logger),
		NewGroundingGate(deps.Analyzer, deps.Gateway, config.EnableGrounding, logger),
		NewContentGate(deps.Analyzer, logger),
		NewAssemblyGate(deps.Narrator, deps.Validator, logger),
	}
	return NewWithGates(gates, deps.Validator, deps.Log, deps.Events, logger)
}

// NewWithGates creates a pipeline from an explicit gate list. The last gate
// always runs, even after a terminal outcome.
func NewWithGates(gates []Gate, validator *schema.Validator, log repositories.AnalysisLog, events EventSink, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		gates:     gates,
		validator: validator,
		log:       log,
		events:    events,
		logger:    logger,
	}
}

// Gates returns the gate IDs in execution order
func (p *Pipeline) Gates() []GateID {
	ids := make([]GateID, len(p.gates))
	for i, g := range p.gates {
		ids[i] = g.ID()
	}
	return ids
}

// Run processes one request. The only returned errors are input errors from
// ingestion; every other failure is folded into the response document.
func (p *Pipeline) Run(ctx context.Context, req entities.AnalysisRequest) (resp *entities.TroubleshootResponse, err error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	record := entities.NewAnalysisRecord(req)
	state := &State{Request: req, Width: req.ImageWidth, Height: req.ImageHeight}

	p.logger.Info("Troubleshoot request started",
		zap.String("requestID", req.RequestID),
		zap.String("query", req.Query))

	defer func() {
		if r := recover(); r != nil {
			cause := fmt.Sprint(r)
			p.logger.Error("Pipeline panicked", zap.String("requestID", req.RequestID), zap.String("panic", cause))
			resp = p.validator.Validate(response.PanicDocument(cause))
			resp.RequestID = req.RequestID
			err = nil
			record.Error = cause
		}
		record.Complete(resp)
		p.persist(ctx, record)

		done := domain.GateEventMessage{
			Type:       domain.EventAnalysisDone,
			RequestID:  req.RequestID,
			DurationMs: record.DurationMs,
			Timestamp:  time.Now().Format(time.RFC3339),
		}
		if resp != nil {
			done.AnswerType = string(resp.AnswerType)
		}
		if err != nil {
			done.Error = err.Error()
		}
		p.emitEvent(done)
	}()

	terminal := false
	last := len(p.gates) - 1
	for i, gate := range p.gates {
		if terminal && i != last {
			p.emitEvent(p.gateEvent(domain.EventGateSkipped, req.RequestID, i, gate, "terminal answer reached", 0))
			continue
		}

		outcome, elapsed := p.executeGate(ctx, state, i, gate)
		record.AddGate(string(gate.ID()), string(outcome.State), elapsed)

		switch outcome.State {
		case OutcomeFailed:
			p.logger.Warn("Gate aborted request",
				zap.String("requestID", req.RequestID),
				zap.String("gate", string(gate.ID())),
				zap.Error(outcome.Err))
			record.Error = outcome.Err.Error()
			return nil, outcome.Err
		case OutcomeTerminal:
			terminal = true
			record.TerminalGate = string(gate.ID())
			if outcome.Err != nil {
				record.Error = outcome.Err.Error()
			}
		}
	}

	if state.Response == nil {
		state.Response = p.validator.Validate(nil)
		state.Response.RequestID = req.RequestID
	}

	p.logger.Info("Troubleshoot request completed",
		zap.String("requestID", req.RequestID),
		zap.String("answerType", string(state.Response.AnswerType)),
		zap.String("terminalGate", record.TerminalGate))
	return state.Response, nil
}

// executeGate runs a single gate and reports its progress
func (p *Pipeline) executeGate(ctx context.Context, s *State, index int, gate Gate) (Outcome, time.Duration) {
	requestID := s.Request.RequestID
	p.emitEvent(p.gateEvent(domain.EventGateStarted, requestID, index, gate, "", 0))

	start := time.Now()
	outcome := gate.Execute(ctx, s)
	elapsed := time.Since(start)

	eventType := domain.EventGateCompleted
	switch outcome.State {
	case OutcomeSkipped:
		eventType = domain.EventGateSkipped
	case OutcomeFailed:
		eventType = domain.EventGateFailed
	}
	event := p.gateEvent(eventType, requestID, index, gate, outcome.Detail, elapsed)
	if outcome.Err != nil {
		event.Error = outcome.Err.Error()
	}
	if s.Intent.AnswerType != "" {
		event.AnswerType = string(s.Intent.AnswerType)
	}
	p.emitEvent(event)

	p.logger.Debug("Gate finished",
		zap.String("requestID", requestID),
		zap.String("gate", string(gate.ID())),
		zap.String("outcome", string(outcome.State)),
		zap.String("detail", outcome.Detail),
		zap.Duration("elapsed", elapsed))
	return outcome, elapsed
}

func (p *Pipeline) gateEvent(eventType, requestID string, index int, gate Gate, detail string, elapsed time.Duration) domain.GateEventMessage {
	return domain.GateEventMessage{
		Type:       eventType,
		RequestID:  requestID,
		Gate:       string(gate.ID()),
		Index:      index + 1,
		Total:      len(p.gates),
		Detail:     detail,
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  time.Now().Format(time.RFC3339),
	}
}

// emitEvent forwards an event to the sink, if any
func (p *Pipeline) emitEvent(event domain.GateEventMessage) {
	if p.events == nil {
		return
	}
	p.events.Publish(event)
}

// persist writes the audit record. Failures are logged and never reach the caller.
func (p *Pipeline) persist(ctx context.Context, record *entities.AnalysisRecord) {
	if p.log == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := p.log.Create(ctx, record); err != nil {
		p.logger.Error("Failed to store analysis record",
			zap.String("requestID", record.RequestID),
			zap.Error(err))
	}
}
