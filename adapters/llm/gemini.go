package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
)

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 8000
)

// GeminiConfig configures the Gemini model client
type GeminiConfig struct {
	APIKey string
	Model  string

	// MaxOutputTokens applies to requests that do not set their own limit
	MaxOutputTokens int32
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Google AI API key is required")
	}
	if config.MaxOutputTokens < 0 {
		return fmt.Errorf("max output tokens must be positive, got %d", config.MaxOutputTokens)
	}
	return nil
}

// GeminiModel implements the MultimodalModel interface using Google's Gemini API
type GeminiModel struct {
	client    *genai.Client
	logger    *zap.Logger
	model     string
	maxTokens int32
}

var _ repositories.MultimodalModel = (*GeminiModel)(nil)

// NewGeminiModel creates a new Gemini model client
func NewGeminiModel(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiModel, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := config.Model
	if model == "" {
		model = defaultModel
		logger.Info("Using default model", zap.String("model", model))
	}
	maxTokens := config.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
		logger.Info("Using default maxOutputTokens", zap.Int32("maxOutputTokens", maxTokens))
	}

	return &GeminiModel{
		client:    client,
		logger:    logger,
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Generate sends one multimodal prompt. Retries and quota handling belong to
// the gateway, so errors are returned as they come.
func (g *GeminiModel) Generate(ctx context.Context, req entities.ModelRequest) (*entities.ModelOutput, error) {
	content := genai.NewContentFromParts(convertParts(req.Parts), genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, g.generateConfig(req))
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in model reply")
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part.Text != "" && !part.Thought {
			text.WriteString(part.Text)
		}
	}

	out := &entities.ModelOutput{Text: text.String()}
	if req.WebSearch {
		out.Grounding = convertGrounding(candidate.GroundingMetadata)
	}

	g.logger.Debug("Model reply received",
		zap.String("purpose", req.Purpose),
		zap.Int("length", len(out.Text)),
		zap.String("finishReason", string(candidate.FinishReason)))
	return out, nil
}

func (g *GeminiModel) generateConfig(req entities.ModelRequest) *genai.GenerateContentConfig {
	maxTokens := req.MaxOutputTokens
	if maxTokens == 0 {
		maxTokens = g.maxTokens
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: maxTokens,
	}

	// The search tool cannot be combined with a JSON response type
	if req.WebSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
		return config
	}
	if req.Schema != nil || req.ExpectJSON {
		config.ResponseMIMEType = "application/json"
	}
	if req.Schema != nil {
		config.ResponseSchema = ConvertSchema(req.Schema)
	}
	return config
}

func convertParts(parts []entities.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Image != nil {
			out = append(out, genai.NewPartFromBytes(p.Image.Data, p.Image.MIMEType))
			continue
		}
		out = append(out, genai.NewPartFromText(p.Text))
	}
	return out
}

// ConvertSchema maps the structured output schema onto the genai schema type
func ConvertSchema(s *entities.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       ConvertSchema(s.Items),
	}
	if s.Nullable {
		out.Nullable = genai.Ptr(true)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = ConvertSchema(prop)
		}
	}
	return out
}

func convertGrounding(meta *genai.GroundingMetadata) *entities.GroundingMetadata {
	if meta == nil {
		return nil
	}
	out := &entities.GroundingMetadata{WebSearchQueries: meta.WebSearchQueries}
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		out.Chunks = append(out.Chunks, entities.GroundingChunk{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	for _, support := range meta.GroundingSupports {
		if support == nil {
			continue
		}
		s := entities.GroundingSupport{}
		if support.Segment != nil {
			s.Text = support.Segment.Text
		}
		for _, idx := range support.GroundingChunkIndices {
			s.SourceIndices = append(s.SourceIndices, int(idx))
		}
		for _, score := range support.ConfidenceScores {
			s.ConfidenceScores = append(s.ConfidenceScores, float64(score))
		}
		out.Supports = append(out.Supports, s)
	}
	if meta.SearchEntryPoint != nil {
		out.SearchEntryPointHTML = meta.SearchEntryPoint.RenderedContent
	}
	return out
}
