package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
	"github.com/satriahrh/fixit/server/internal/analysis"
	"github.com/satriahrh/fixit/server/internal/response"
)

// IngestionGate decodes the uploaded image
type IngestionGate struct {
	images repositories.ImageProcessor
	logger *zap.Logger
}

func NewIngestionGate(images repositories.ImageProcessor, logger *zap.Logger) *IngestionGate {
	return &IngestionGate{images: images, logger: logger}
}

func (g *IngestionGate) ID() GateID { return GateImageIngestion }

func (g *IngestionGate) Execute(ctx context.Context, s *State) Outcome {
	img, err := g.images.Decode(s.Request.ImageBase64)
	if err != nil {
		return Fail(err)
	}
	s.Image = img
	if s.Width <= 0 {
		s.Width = img.Width
	}
	if s.Height <= 0 {
		s.Height = img.Height
	}
	return Continue(fmt.Sprintf("%dx%d %s", img.Width, img.Height, img.MIMEType))
}

// CombinedAnalysisGate runs the single validation, detection, intent and
// safety call
type CombinedAnalysisGate struct {
	analyzer *analysis.Analyzer
	gateway  repositories.ModelGateway
	logger   *zap.Logger
}

func NewCombinedAnalysisGate(analyzer *analysis.Analyzer, gateway repositories.ModelGateway, logger *zap.Logger) *CombinedAnalysisGate {
	return &CombinedAnalysisGate{analyzer: analyzer, gateway: gateway, logger: logger}
}

func (g *CombinedAnalysisGate) ID() GateID { return GateCombinedAnalysis }

func (g *CombinedAnalysisGate) Execute(ctx context.Context, s *State) Outcome {
	combined, err := g.analyzer.Combined(ctx, s.Image, s.Request.Query, s.Request.DeviceHint)
	if err != nil {
		g.logger.Error("Combined analysis failed", zap.String("requestID", s.Request.RequestID), zap.Error(err))
		message := "Analysis failed: " + err.Error()
		retryAfter := ""
		if me, ok := domain.AsModelError(err); ok {
			message = me.Message
			retryAfter = me.RetryAfter
		}
		if retryAfter == "" && g.gateway.BreakerOpen() {
			retryAfter = domain.ErrUnavailable.RetryAfter
		}
		s.Response = response.ErrorDocument(message, retryAfter)
		return Outcome{State: OutcomeTerminal, Detail: message, Err: err}
	}

	s.Validation = combined.Validation
	s.Device = combined.Device
	s.Intent = combined.Intent
	s.Safety = combined.Safety

	detail := fmt.Sprintf("device=%s confidence=%.2f answer_type=%s", s.Device.DeviceType, s.Device.Confidence, s.Intent.AnswerType)
	if combined.IntentInferred {
		detail += " (intent inferred from query)"
	}
	return Continue(detail)
}

// ValidityGate rejects images that do not show an electronic device
type ValidityGate struct{}

func NewValidityGate() *ValidityGate { return &ValidityGate{} }

func (g *ValidityGate) ID() GateID { return GateValidity }

func (g *ValidityGate) Execute(ctx context.Context, s *State) Outcome {
	if s.Validation.IsValid {
		return Continue("category=" + s.Validation.Category)
	}
	s.SetAnswerType(entities.AnswerRejectInvalidImage)
	return Terminate("invalid image: " + s.Validation.Category)
}

// QualityGate asks for a new photo when the image is too poor to work with
type QualityGate struct{}

func NewQualityGate() *QualityGate { return &QualityGate{} }

func (g *QualityGate) ID() GateID { return GateQuality }

func (g *QualityGate) Execute(ctx context.Context, s *State) Outcome {
	if !s.Validation.Quality.Poor() {
		return Continue("quality=" + string(s.Validation.Quality))
	}
	s.SetAnswerType(entities.AnswerAskBetterInput)
	return Continue("poor image quality: " + string(s.Validation.Quality))
}

// SafetyGate combines the model's safety flag with the keyword scan
type SafetyGate struct {
	logger *zap.Logger
}

func NewSafetyGate(logger *zap.Logger) *SafetyGate { return &SafetyGate{logger: logger} }

func (g *SafetyGate) ID() GateID { return GateSafety }

func (g *SafetyGate) Execute(ctx context.Context, s *State) Outcome {
	s.Safety = analysis.AssessSafety(s.Safety, s.Request.Query)
	if !s.Safety.Detected {
		return Continue("no hazard")
	}

	g.logger.Warn("Safety hazard detected",
		zap.String("requestID", s.Request.RequestID),
		zap.String("severity", string(s.Safety.Severity)),
		zap.Strings("keywords", s.Safety.KeywordsFound))

	if s.Safety.Locks() {
		s.SetAnswerType(entities.AnswerSafetyWarningOnly)
		return Continue("critical hazard, answer locked to safety warning")
	}
	return Continue(fmt.Sprintf("%s hazard", s.Safety.Severity))
}

// DeviceConfidenceGate stops requests whose device could not be identified
type DeviceConfidenceGate struct{}

func NewDeviceConfidenceGate() *DeviceConfidenceGate { return &DeviceConfidenceGate{} }

func (g *DeviceConfidenceGate) ID() GateID { return GateDeviceConfidence }

func (g *DeviceConfidenceGate) Execute(ctx context.Context, s *State) Outcome {
	if s.Device.Level == "" {
		s.Device.Level = entities.LevelFor(s.Device.Confidence)
	}

	if strings.EqualFold(s.Device.DeviceType, entities.DeviceTypeNotADevice) {
		reason := s.Device.Reasoning
		if reason == "" {
			reason = "Not an electronic device."
		}
		suggestion := "Please upload a photo of an electronic device."
		whatISee := s.Validation.WhatISee
		if whatISee == "" {
			whatISee = s.Device.WhatISee
		}
		s.Validation = entities.ValidationResult{
			IsValid:         false,
			Category:        entities.DeviceTypeNotADevice,
			Confidence:      s.Validation.Confidence,
			Quality:         s.Validation.Quality,
			WhatISee:        whatISee,
			RejectionReason: &reason,
			Suggestion:      &suggestion,
		}
		s.Device = entities.DeviceProfile{
			DeviceType: entities.DeviceTypeUnknown,
			Brand:      "unknown",
			Model:      "not visible",
			Level:      entities.ConfidenceLow,
			WhatISee:   whatISee,
		}
		s.SetAnswerType(entities.AnswerRejectInvalidImage)
		return Terminate("not a device")
	}

	if s.Device.Level == entities.ConfidenceLow &&
		s.Device.Confidence < entities.MediumConfidenceThreshold &&
		s.AnswerType() != entities.AnswerSafetyWarningOnly {
		s.Intent.QueryType = "unclear"
		s.Intent.ClarificationNeeded = true
		s.Intent.ClarifyingQuestions = s.Device.ClarifyingQuestions
		s.SetAnswerType(entities.AnswerAskBetterInput)
		return Terminate(fmt.Sprintf("device confidence %.2f too low", s.Device.Confidence))
	}
	return Continue("level=" + string(s.Device.Level))
}

// MultiDeviceGate asks which device is meant when several are in frame
type MultiDeviceGate struct{}

func NewMultiDeviceGate() *MultiDeviceGate { return &MultiDeviceGate{} }

func (g *MultiDeviceGate) ID() GateID { return GateMultiDevice }

func (g *MultiDeviceGate) Execute(ctx context.Context, s *State) Outcome {
	if !s.Validation.MultipleDevices || len(s.Validation.DeviceList) <= 1 {
		return Skip("single device")
	}
	if s.AnswerType() == entities.AnswerSafetyWarningOnly {
		return Skip("answer locked to safety warning")
	}
	question := fmt.Sprintf("I see multiple devices: %s. Which one do you need help with?",
		strings.Join(s.Validation.DeviceList, ", "))
	s.Intent.ClarificationNeeded = true
	s.Intent.ClarifyingQuestions = []string{question}
	s.SetAnswerType(entities.AnswerAskClarifying)
	return Continue(fmt.Sprintf("%d devices in frame", len(s.Validation.DeviceList)))
}

// IntentRepairGate normalizes the classified answer type
type IntentRepairGate struct {
	logger *zap.Logger
}

func NewIntentRepairGate(logger *zap.Logger) *IntentRepairGate {
	return &IntentRepairGate{logger: logger}
}

func (g *IntentRepairGate) ID() GateID { return GateIntentRepair }

func (g *IntentRepairGate) Execute(ctx context.Context, s *State) Outcome {
	before := s.AnswerType()
	repaired, changed := analysis.RepairIntent(s.Intent, s.Request.Query)
	s.Intent = repaired
	if !changed {
		return Continue("answer_type=" + string(s.AnswerType()))
	}
	g.logger.Info("Answer type repaired",
		zap.String("requestID", s.Request.RequestID),
		zap.String("from", string(before)),
		zap.String("to", string(s.AnswerType())))
	return Continue(fmt.Sprintf("answer_type %q -> %s", before, s.AnswerType()))
}
