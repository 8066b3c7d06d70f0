package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/fixit/server/domain/entities"
)

func TestAssessSafety(t *testing.T) {
	tests := []struct {
		name         string
		model        entities.SafetyAssessment
		query        string
		wantDetected bool
		wantSeverity entities.SafetySeverity
		wantKeyword  string
		wantLock     bool
	}{
		{
			name:         "swelling battery is critical",
			query:        "My laptop has a swelling battery, how do I fix it?",
			wantDetected: true,
			wantSeverity: entities.SeverityCritical,
			wantKeyword:  "swelling battery",
			wantLock:     true,
		},
		{
			name:         "critical wins over warning",
			query:        "the printer is hot and there is smoke",
			wantDetected: true,
			wantSeverity: entities.SeverityCritical,
			wantKeyword:  "smoke",
			wantLock:     true,
		},
		{
			name:         "paper jam is a warning",
			query:        "how do I clear a paper jam",
			wantDetected: true,
			wantSeverity: entities.SeverityWarning,
			wantKeyword:  "paper jam",
		},
		{
			name:         "hot inside another word does not match",
			query:        "take a photo of the hotspot settings",
			wantSeverity: entities.SeverityNone,
		},
		{
			name: "model assessment kept",
			model: entities.SafetyAssessment{
				Detected: true, Severity: entities.SeverityCritical, OverrideAnswerType: true,
			},
			query:        "why is it blinking",
			wantDetected: true,
			wantSeverity: entities.SeverityCritical,
			wantLock:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AssessSafety(tt.model, tt.query)
			assert.Equal(t, tt.wantDetected, got.Detected)
			assert.Equal(t, tt.wantSeverity, got.Severity)
			assert.Equal(t, tt.wantLock, got.Locks())
			if tt.wantKeyword != "" {
				require.Len(t, got.KeywordsFound, 1)
				assert.Equal(t, tt.wantKeyword, got.KeywordsFound[0])
				require.NotNil(t, got.Message)
			}
		})
	}
}

func TestWarningMessageNamesKeyword(t *testing.T) {
	got := AssessSafety(entities.SafetyAssessment{}, "my toner is leaking")
	require.NotNil(t, got.Message)
	assert.Equal(t, "Caution: toner detected. Follow safety precautions in the steps below.", *got.Message)
	assert.False(t, got.OverrideAnswerType)
}
