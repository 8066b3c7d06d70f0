package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/internal/analysis"
	"github.com/satriahrh/fixit/server/internal/spatial"
)

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{name: "valid", config: GeminiConfig{APIKey: "key"}},
		{name: "missing key", config: GeminiConfig{}, wantErr: true},
		{name: "negative tokens", config: GeminiConfig{APIKey: "key", MaxOutputTokens: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConvertSchema(t *testing.T) {
	schema := &entities.Schema{
		Type: entities.SchemaObject,
		Properties: map[string]*entities.Schema{
			"results": {
				Type:  entities.SchemaArray,
				Items: &entities.Schema{Type: entities.SchemaString, Enum: []string{"found", "not_visible"}},
			},
			"reason": {Type: entities.SchemaString, Nullable: true},
		},
		Required: []string{"results"},
	}

	got := ConvertSchema(schema)
	require.NotNil(t, got)
	assert.Equal(t, genai.TypeObject, got.Type)
	assert.Equal(t, []string{"results"}, got.Required)
	assert.Nil(t, got.Nullable)

	results := got.Properties["results"]
	require.NotNil(t, results)
	assert.Equal(t, genai.TypeArray, results.Type)
	assert.Equal(t, genai.TypeString, results.Items.Type)
	assert.Equal(t, []string{"found", "not_visible"}, results.Items.Enum)

	reason := got.Properties["reason"]
	require.NotNil(t, reason.Nullable)
	assert.True(t, *reason.Nullable)

	assert.Nil(t, ConvertSchema(nil))
}

func TestGenerateConfig(t *testing.T) {
	g := &GeminiModel{maxTokens: 1000}

	jsonConfig := g.generateConfig(entities.ModelRequest{Schema: &entities.Schema{Type: entities.SchemaObject}, Temperature: 0.2})
	assert.Equal(t, "application/json", jsonConfig.ResponseMIMEType)
	assert.NotNil(t, jsonConfig.ResponseSchema)
	assert.Equal(t, int32(1000), jsonConfig.MaxOutputTokens)
	assert.Equal(t, float32(0.2), *jsonConfig.Temperature)
	assert.Empty(t, jsonConfig.Tools)

	searchConfig := g.generateConfig(entities.ModelRequest{WebSearch: true, ExpectJSON: true, MaxOutputTokens: 300})
	require.Len(t, searchConfig.Tools, 1)
	assert.NotNil(t, searchConfig.Tools[0].GoogleSearch)
	assert.Empty(t, searchConfig.ResponseMIMEType)
	assert.Equal(t, int32(300), searchConfig.MaxOutputTokens)
}

func TestConvertParts(t *testing.T) {
	parts := convertParts([]entities.Part{
		entities.TextPart("describe"),
		entities.ImagePromptPart(&entities.ImagePart{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg"}),
	})
	require.Len(t, parts, 2)
	assert.Equal(t, "describe", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)
}

func TestConvertGrounding(t *testing.T) {
	assert.Nil(t, convertGrounding(nil))

	got := convertGrounding(&genai.GroundingMetadata{
		GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://example.com/a", Title: "Guide"}},
			{},
		},
		GroundingSupports: []*genai.GroundingSupport{
			{
				Segment:               &genai.Segment{Text: "Restart it"},
				GroundingChunkIndices: []int32{0},
				ConfidenceScores:      []float32{0.5},
			},
		},
		SearchEntryPoint: &genai.SearchEntryPoint{RenderedContent: "<div>search</div>"},
		WebSearchQueries: []string{"router slow"},
	})
	require.NotNil(t, got)
	require.Len(t, got.Chunks, 1)
	assert.Equal(t, "Guide", got.Chunks[0].Title)
	require.Len(t, got.Supports, 1)
	assert.Equal(t, "Restart it", got.Supports[0].Text)
	assert.Equal(t, []int{0}, got.Supports[0].SourceIndices)
	assert.Equal(t, []float64{0.5}, got.Supports[0].ConfidenceScores)
	assert.Equal(t, "<div>search</div>", got.SearchEntryPointHTML)
	assert.Equal(t, []string{"router slow"}, got.WebSearchQueries)
}

func TestMockGeminiClient(t *testing.T) {
	m := NewMockGeminiClient()
	ctx := context.Background()

	out, err := m.Generate(ctx, entities.ModelRequest{Purpose: mockCombined})
	require.NoError(t, err)
	assert.Contains(t, out.Text, "WiFi Router")
	assert.Nil(t, out.Grounding)

	grounded, err := m.Generate(ctx, entities.ModelRequest{Purpose: mockGround, WebSearch: true})
	require.NoError(t, err)
	require.NotNil(t, grounded.Grounding)
	assert.Len(t, grounded.Grounding.Chunks, 1)

	m.Script(mockCombined, `{"validation": {"is_valid": false}}`)
	out, err = m.Generate(ctx, entities.ModelRequest{Purpose: mockCombined})
	require.NoError(t, err)
	assert.Equal(t, `{"validation": {"is_valid": false}}`, out.Text)
	assert.Equal(t, 2, m.Calls(mockCombined))

	_, err = m.Generate(ctx, entities.ModelRequest{Purpose: "unknown"})
	assert.Error(t, err)
}

func TestMockGeminiClient_CoversEveryPurpose(t *testing.T) {
	purposes := []string{
		analysis.PurposeCombined, analysis.PurposeValidate, analysis.PurposeDetect,
		analysis.PurposeGround, analysis.PurposeExplain, analysis.PurposeDiagnose,
		analysis.PurposeSteps, analysis.PurposeCautious,
		spatial.PurposeLocateBatch, spatial.PurposeLocateSingle, spatial.PurposeDetect,
	}
	m := NewMockGeminiClient()
	for _, p := range purposes {
		_, err := m.Generate(context.Background(), entities.ModelRequest{Purpose: p})
		assert.NoError(t, err, p)
	}
}
