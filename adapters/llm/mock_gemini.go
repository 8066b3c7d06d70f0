package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
)

// Purposes the demo replies are keyed by. They mirror the labels the analysis
// and spatial packages put on their requests.
const (
	mockCombined    = "combined_analysis"
	mockValidate    = "validate_image"
	mockDetect      = "detect_device"
	mockGround      = "web_grounding"
	mockExplain     = "explanation"
	mockDiagnose    = "diagnosis"
	mockSteps       = "troubleshooting_steps"
	mockCautious    = "cautious_steps"
	mockLocateBatch = "localize_batch"
	mockLocateOne   = "localize_single"
	mockComponents  = "detect_components"
)

// MockGeminiClient answers every request with a canned router scenario so the
// server runs without an API key
type MockGeminiClient struct {
	mu      sync.Mutex
	replies map[string]string
	calls   map[string]int
}

var _ repositories.MultimodalModel = (*MockGeminiClient)(nil)

// NewMockGeminiClient creates a new mock Gemini client
func NewMockGeminiClient() *MockGeminiClient {
	replies := make(map[string]string, len(mockReplies))
	for k, v := range mockReplies {
		replies[k] = v
	}
	return &MockGeminiClient{replies: replies, calls: map[string]int{}}
}

// Script replaces the reply for one request purpose
func (m *MockGeminiClient) Script(purpose, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies[purpose] = reply
}

// Calls returns how many requests of a purpose were served
func (m *MockGeminiClient) Calls(purpose string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[purpose]
}

// Generate implements repositories.MultimodalModel
func (m *MockGeminiClient) Generate(ctx context.Context, req entities.ModelRequest) (*entities.ModelOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[req.Purpose]++

	reply, ok := m.replies[req.Purpose]
	if !ok {
		return nil, fmt.Errorf("mock model has no reply for %q", req.Purpose)
	}
	out := &entities.ModelOutput{Text: reply}
	if req.WebSearch {
		out.Grounding = &entities.GroundingMetadata{
			Chunks: []entities.GroundingChunk{
				{URI: "https://www.example.com/support/router-firmware", Title: "Router firmware update guide"},
			},
		}
	}
	return out, nil
}

var mockReplies = map[string]string{
	mockCombined: `{
  "validation": {"is_valid": true, "image_category": "electronic_device", "is_physical_device": true,
    "confidence": 0.95, "image_quality": "good", "what_i_see": "A wireless router with two antennas"},
  "device": {"device_type": "WiFi Router", "device_category": "networking", "brand": "unknown",
    "model": "not visible", "device_confidence": 0.85, "components": ["antenna", "power LED", "ethernet ports"],
    "reasoning": "External antennas and a row of status LEDs"},
  "query": {"query_type": "troubleshoot", "answer_type": "troubleshoot_steps",
    "target_components": ["power LED"], "needs_localization": true, "needs_steps": true, "confidence": 0.9},
  "safety": {"safety_detected": false, "safety_severity": "none"}
}`,
	mockValidate: `{"image_category": "electronic_device", "is_physical_device": true, "confidence": 0.95,
  "what_i_see": "A wireless router with two antennas", "rejection_reason": null}`,
	mockDetect: `{"device_type": "WiFi Router", "device_category": "networking", "brand": "unknown",
  "model": "not visible", "device_confidence": 0.85, "components": ["antenna", "power LED"],
  "reasoning": "External antennas and a row of status LEDs", "what_i_see": "A wireless router"}`,
	mockGround: "Restart the router and check the manufacturer's support page for a firmware update.",
	mockExplain: `{"explanation": {"overview": "A WiFi router shares an internet connection over radio.",
  "how_it_works": "It forwards traffic between the modem and wireless clients.",
  "key_components": [{"name": "antenna", "function": "Transmits the wireless signal", "location": "top"}],
  "common_issues": ["Slow speeds", "Dropped connections"]},
  "audio_instructions": "This is a WiFi router. It shares your internet connection over radio."}`,
	mockDiagnose: `{"diagnosis": {"issue": "Intermittent connectivity", "severity": "low",
  "possible_causes": ["Interference", "Outdated firmware"], "indicators": ["Blinking power LED"]},
  "audio_instructions": "The router likely has interference or outdated firmware."}`,
	mockSteps: `{"issue_diagnosis": "Slow WiFi is usually interference or outdated firmware",
  "diagnosis": {"issue": "Slow wireless throughput", "severity": "low", "possible_causes": ["Interference"]},
  "troubleshooting_steps": [
    {"step_number": 1, "instruction": "Unplug the router for 30 seconds, then plug it back in", "visual_cue": "Power LED turns off, then on", "estimated_time": "2 minutes"},
    {"step_number": 2, "instruction": "Move the router away from microwaves and thick walls", "visual_cue": "Router in an open spot", "estimated_time": "5 minutes"}
  ],
  "audio_instructions": "Restart the router, then move it somewhere open."}`,
	mockCautious: `{"issue_diagnosis": "The device could not be identified with confidence",
  "troubleshooting_steps": [
    {"step_number": 1, "instruction": "Turn the device off and on again", "visual_cue": "Lights restart", "estimated_time": "2 minutes"}
  ],
  "audio_instructions": "Try turning the device off and on again."}`,
	mockLocateBatch: `{"results": [{"target": "power LED", "status": "found", "component_visible": true,
  "confidence": 0.8, "bounding_box": {"x_min": 0.45, "y_min": 0.6, "x_max": 0.52, "y_max": 0.66},
  "spatial_description": "front panel, left of center"}]}`,
	mockLocateOne: `{"target": "power LED", "status": "found", "component_visible": true, "confidence": 0.8,
  "bounding_box": {"x_min": 0.45, "y_min": 0.6, "x_max": 0.52, "y_max": 0.66},
  "spatial_description": "front panel, left of center"}`,
	mockComponents: `{"visible_components": ["power LED", "antenna", "ethernet ports"]}`,
}
