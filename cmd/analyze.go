package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/internal/config"
	"github.com/satriahrh/fixit/server/internal/pipeline"
)

type analyzeOptions struct {
	imagePath  string
	query      string
	deviceHint string
	verbose    bool
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the troubleshooting pipeline on a local photo",
		Example: `  fixit analyze --image router.jpg --query "why is the power light red?"
  fixit analyze --image tv.png --query "where is the HDMI port?" --device-hint "Samsung TV" -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			logger := zap.NewNop()
			if opts.verbose {
				if logger, err = zap.NewDevelopment(); err != nil {
					return err
				}
				defer logger.Sync()
			}

			return runAnalyze(cmd, cfg, opts, logger)
		},
	}

	cmd.Flags().StringVar(&opts.imagePath, "image", "", "Path to the device photo")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "What is wrong with this device?", "Question about the device")
	cmd.Flags().StringVar(&opts.deviceHint, "device-hint", "", "Optional device name to steer identification")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log gate progress and model calls")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, opts *analyzeOptions, logger *zap.Logger) error {
	raw, err := os.ReadFile(opts.imagePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	var events *progressPrinter
	if opts.verbose {
		events = &progressPrinter{w: cmd.ErrOrStderr()}
	}

	a, err := newApp(cmd.Context(), cfg, nil, events.sink(), logger)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())

	resp, err := a.pipeline.Run(cmd.Context(), entities.AnalysisRequest{
		RequestID:   uuid.NewString(),
		ImageBase64: base64.StdEncoding.EncodeToString(raw),
		Query:       opts.query,
		DeviceHint:  opts.deviceHint,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// progressPrinter writes one line per gate event
type progressPrinter struct {
	w io.Writer
}

func (p *progressPrinter) Publish(event domain.GateEventMessage) {
	switch event.Type {
	case domain.EventAnalysisDone:
		fmt.Fprintf(p.w, "done: %s in %dms\n", event.AnswerType, event.DurationMs)
	case domain.EventGateFailed:
		fmt.Fprintf(p.w, "[%d/%d] %s failed: %s\n", event.Index, event.Total, event.Gate, event.Error)
	case domain.EventGateStarted:
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s\n", event.Index, event.Total, event.Gate, event.Detail)
	}
}

// sink keeps a nil printer from becoming a non-nil interface
func (p *progressPrinter) sink() pipeline.EventSink {
	if p == nil {
		return nil
	}
	return p
}
