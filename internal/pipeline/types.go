package pipeline

import (
	"context"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
)

// GateID uniquely identifies a gate within the pipeline
type GateID string

const (
	GateImageIngestion    GateID = "image_ingestion"
	GateCombinedAnalysis  GateID = "combined_analysis"
	GateValidity          GateID = "validity"
	GateQuality           GateID = "quality"
	GateSafety            GateID = "safety"
	GateDeviceConfidence  GateID = "device_confidence"
	GateMultiDevice       GateID = "multi_device"
	GateIntentRepair      GateID = "intent_repair"
	GateLocalization      GateID = "localization"
	GateGrounding         GateID = "grounding"
	GateContentGeneration GateID = "content_generation"
	GateAssembly          GateID = "assembly"
)

// OutcomeState represents how a gate finished
type OutcomeState string

const (
	OutcomeContinued OutcomeState = "continued"
	OutcomeSkipped   OutcomeState = "skipped"
	OutcomeTerminal  OutcomeState = "terminal"
	OutcomeFailed    OutcomeState = "failed"
)

// Outcome is the result of one gate execution
type Outcome struct {
	State  OutcomeState
	Detail string
	Err    error
}

// Continue lets the request proceed to the next gate
func Continue(detail string) Outcome { return Outcome{State: OutcomeContinued, Detail: detail} }

// Skip marks a gate that had nothing to do
func Skip(reason string) Outcome { return Outcome{State: OutcomeSkipped, Detail: reason} }

// Terminate jumps straight to assembly
func Terminate(detail string) Outcome { return Outcome{State: OutcomeTerminal, Detail: detail} }

// Fail aborts the request; the error is returned to the caller
func Fail(err error) Outcome { return Outcome{State: OutcomeFailed, Err: err} }

// Gate represents a single stage of the pipeline
type Gate interface {
	ID() GateID
	Execute(ctx context.Context, s *State) Outcome
}

// EventSink receives gate progress events
type EventSink interface {
	Publish(event domain.GateEventMessage)
}

// State is the request-scoped record threaded through the gates
type State struct {
	Request entities.AnalysisRequest

	Image  *entities.ImagePart
	Width  int
	Height int

	Validation entities.ValidationResult
	Device     entities.DeviceProfile
	Intent     entities.QueryIntent
	Safety     entities.SafetyAssessment

	Localization []entities.LocalizationResult
	Grounding    *entities.GroundingResult
	Content      *entities.ContentPayload

	// Response is set early only by gates that produce the whole document
	// themselves (the error document); assembly fills it otherwise.
	Response *entities.TroubleshootResponse
}

// AnswerType is the working answer type of the request
func (s *State) AnswerType() entities.AnswerType { return s.Intent.AnswerType }

// SetAnswerType overrides the working answer type
func (s *State) SetAnswerType(t entities.AnswerType) { s.Intent.AnswerType = t }
