package entities

import "fmt"

// Part is one element of a multimodal prompt: either text or an image
type Part struct {
	Text  string
	Image *ImagePart
}

// TextPart wraps prompt text
func TextPart(text string) Part { return Part{Text: text} }

// ImagePromptPart wraps a decoded image
func ImagePromptPart(img *ImagePart) Part { return Part{Image: img} }

// CacheToken is the stable representation of the part used in cache keys. Images
// contribute their dimensions only.
func (p Part) CacheToken() string {
	if p.Image != nil {
		return fmt.Sprintf("<IMAGE:(%d, %d)>", p.Image.Width, p.Image.Height)
	}
	return p.Text
}

// SchemaType mirrors the OpenAPI subset the model accepts for structured output
type SchemaType string

const (
	SchemaObject  SchemaType = "OBJECT"
	SchemaArray   SchemaType = "ARRAY"
	SchemaString  SchemaType = "STRING"
	SchemaNumber  SchemaType = "NUMBER"
	SchemaInteger SchemaType = "INTEGER"
	SchemaBoolean SchemaType = "BOOLEAN"
)

// Schema constrains structured model output
type Schema struct {
	Type        SchemaType         `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Nullable    bool               `json:"nullable,omitempty"`
}

// ModelRequest is one call to the multimodal model through the gateway
type ModelRequest struct {
	// Purpose labels the call in logs and lets scripted models route replies.
	Purpose         string
	Parts           []Part
	Schema          *Schema
	ExpectJSON      bool
	Temperature     float32
	MaxOutputTokens int32
	WebSearch       bool
}

// ModelOutput is the raw reply of the model client
type ModelOutput struct {
	Text      string
	Grounding *GroundingMetadata
}

// ModelResult is a gateway reply after JSON recovery
type ModelResult struct {
	Raw         []byte
	Text        string
	Cached      bool
	RecoveredBy string
}

// QuotaStatus is the gateway health snapshot served on the quota endpoint
type QuotaStatus struct {
	CircuitBreakerActive  bool   `json:"circuit_breaker_active"`
	TotalCallsThisSession int    `json:"total_calls_this_session"`
	CallsInLastMinute     int    `json:"calls_in_last_minute"`
	RateLimitRemaining    int    `json:"rate_limit_remaining"`
	RPDConsumed           int    `json:"rpd_consumed"`
	RPDRemaining          int    `json:"rpd_remaining"`
	RPDBudgetPercent      int    `json:"rpd_budget_percent"`
	CacheSize             int    `json:"cache_size"`
	Status                string `json:"status"`
}
