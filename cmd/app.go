package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/adapters"
	"github.com/satriahrh/fixit/server/adapters/llm"
	"github.com/satriahrh/fixit/server/adapters/mongo"
	"github.com/satriahrh/fixit/server/domain/repositories"
	"github.com/satriahrh/fixit/server/internal/analysis"
	"github.com/satriahrh/fixit/server/internal/auth"
	"github.com/satriahrh/fixit/server/internal/config"
	"github.com/satriahrh/fixit/server/internal/gateway"
	"github.com/satriahrh/fixit/server/internal/imaging"
	"github.com/satriahrh/fixit/server/internal/narration"
	"github.com/satriahrh/fixit/server/internal/pipeline"
	"github.com/satriahrh/fixit/server/internal/schema"
	"github.com/satriahrh/fixit/server/internal/spatial"
)

// app holds the wired components shared by the subcommands
type app struct {
	images   *imaging.Processor
	gateway  *gateway.Gateway
	analyzer *analysis.Analyzer
	pipeline *pipeline.Pipeline
	log      repositories.AnalysisLog
	issuer   *auth.Issuer

	closers []func(ctx context.Context) error
}

// newApp builds every component from the configuration. model may be nil,
// in which case the Gemini client or the mock client is chosen by config.
func newApp(ctx context.Context, cfg *config.Config, model repositories.MultimodalModel, events pipeline.EventSink, logger *zap.Logger) (*app, error) {
	a := &app{}

	if model == nil {
		if cfg.UseMockModel() {
			logger.Warn("GEMINI_API_KEY not set, using the mock model")
			model = llm.NewMockGeminiClient()
		} else {
			gemini, err := llm.NewGeminiModel(ctx, llm.GeminiConfig{
				APIKey:          cfg.Gemini.APIKey,
				Model:           cfg.Gemini.Model,
				MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
			}, logger)
			if err != nil {
				return nil, err
			}
			model = gemini
		}
	}

	images, err := imaging.NewProcessor(imaging.Config{
		MaxDimension: cfg.Image.MaxDimension,
		JPEGQuality:  cfg.Image.JPEGQuality,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create image processor: %w", err)
	}
	a.images = images

	gw, err := gateway.New(model, gateway.Config{
		CallsPerMinute: cfg.Gateway.CallsPerMinute,
		CacheTTL:       cfg.Gateway.CacheTTL,
		CacheSize:      cfg.Gateway.CacheSize,
		RetryBackoff:   cfg.Gateway.RetryBackoff,
		CallTimeout:    cfg.Gateway.CallTimeout,
		DailyBudget:    cfg.Gateway.DailyBudget,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model gateway: %w", err)
	}
	a.gateway = gw

	if cfg.UseMongoDB() {
		client, err := mongo.NewClient(ctx, mongo.Config{URI: cfg.MongoDB.URI, Database: cfg.MongoDB.Database}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.log = mongo.NewAnalysisLog(client.Database, cfg.MongoDB.Retention, logger)
	} else {
		logger.Info("MONGODB_URI not set, keeping analyses in memory")
		a.log = adapters.NewMemoryAnalysisLog(0)
	}

	issuer, err := auth.NewIssuer(cfg.Auth.AdminKey, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	a.issuer = issuer

	a.analyzer = analysis.NewAnalyzer(gw, logger)
	a.pipeline = pipeline.New(pipeline.Dependencies{
		Images:    images,
		Gateway:   gw,
		Analyzer:  a.analyzer,
		Locator:   spatial.NewLocator(gw, cfg.Pipeline.LocalizationFloor, logger),
		Narrator:  narration.NewTemplateNarrator(),
		Validator: schema.NewValidator(logger),
		Log:       a.log,
		Events:    events,
	}, pipeline.Config{EnableGrounding: cfg.Pipeline.EnableWebGrounding}, logger)

	return a, nil
}

// Close releases external connections
func (a *app) Close(ctx context.Context) {
	for _, closeFn := range a.closers {
		closeFn(ctx)
	}
}
