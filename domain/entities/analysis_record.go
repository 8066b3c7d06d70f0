package entities

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GateTiming records how long one gate took
type GateTiming struct {
	Gate       string `json:"gate" bson:"gate"`
	Outcome    string `json:"outcome" bson:"outcome"`
	DurationMs int64  `json:"duration_ms" bson:"duration_ms"`
}

// AnalysisRecord is the audit entry written after every troubleshoot request
type AnalysisRecord struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RequestID        string             `json:"request_id" bson:"request_id"`
	Query            string             `json:"query" bson:"query"`
	DeviceHint       string             `json:"device_hint,omitempty" bson:"device_hint,omitempty"`
	ImageWidth       int                `json:"image_width" bson:"image_width"`
	ImageHeight      int                `json:"image_height" bson:"image_height"`
	AnswerType       AnswerType         `json:"answer_type" bson:"answer_type"`
	Status           string             `json:"status" bson:"status"`
	DeviceType       string             `json:"device_type" bson:"device_type"`
	DeviceConfidence float64            `json:"device_confidence" bson:"device_confidence"`
	TerminalGate     string             `json:"terminal_gate,omitempty" bson:"terminal_gate,omitempty"`
	Gates            []GateTiming       `json:"gates" bson:"gates"`
	WebGroundingUsed bool               `json:"web_grounding_used" bson:"web_grounding_used"`
	Error            string             `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt        time.Time          `json:"created_at" bson:"created_at"`
	DurationMs       int64              `json:"duration_ms" bson:"duration_ms"`
}

// NewAnalysisRecord starts a record for a request
func NewAnalysisRecord(req AnalysisRequest) *AnalysisRecord {
	return &AnalysisRecord{
		ID:          primitive.NewObjectID(),
		RequestID:   req.RequestID,
		Query:       req.Query,
		DeviceHint:  req.DeviceHint,
		ImageWidth:  req.ImageWidth,
		ImageHeight: req.ImageHeight,
		Gates:       make([]GateTiming, 0, 12),
		CreatedAt:   time.Now(),
	}
}

// AddGate appends a gate timing
func (r *AnalysisRecord) AddGate(gate, outcome string, d time.Duration) {
	r.Gates = append(r.Gates, GateTiming{Gate: gate, Outcome: outcome, DurationMs: d.Milliseconds()})
}

// Complete copies the summary fields of the final response
func (r *AnalysisRecord) Complete(resp *TroubleshootResponse) {
	r.DurationMs = time.Since(r.CreatedAt).Milliseconds()
	if resp == nil {
		return
	}
	r.AnswerType = resp.AnswerType
	r.Status = resp.Status
	r.DeviceConfidence = resp.DeviceConfidence
	r.WebGroundingUsed = resp.WebGroundingUsed
	if resp.DeviceInfo != nil {
		r.DeviceType = resp.DeviceInfo.DeviceType
	}
}

// Validate checks the record before it is persisted
func (r *AnalysisRecord) Validate() error {
	if r.RequestID == "" {
		return errors.New("request_id is required")
	}
	if r.AnswerType != "" && !r.AnswerType.Valid() {
		return errors.New("invalid answer_type")
	}
	return nil
}
