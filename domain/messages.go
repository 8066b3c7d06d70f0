package domain

// Gate event types streamed to progress subscribers
const (
	EventGateStarted   = "gate_started"
	EventGateCompleted = "gate_completed"
	EventGateSkipped   = "gate_skipped"
	EventGateFailed    = "gate_failed"
	EventAnalysisDone  = "analysis_completed"
)

// GateEventMessage is one progress update for a troubleshoot request
type GateEventMessage struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id"`
	Gate       string `json:"gate,omitempty"`
	Index      int    `json:"index,omitempty"`
	Total      int    `json:"total,omitempty"`
	Detail     string `json:"detail,omitempty"`
	AnswerType string `json:"answer_type,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}
