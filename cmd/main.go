package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/satriahrh/fixit/server/internal/api"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "fixit",
		Short: "Photo-based device troubleshooting server",
		Long: `fixit answers questions about a photographed device. A gated pipeline
validates the photo, identifies the device, locates components and produces
troubleshooting guidance.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $FIXIT_CONFIG)")

	// Disable automatic 'completion' command added by cobra
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	serveCmd := newServeCmd(&configPath)
	rootCmd.AddCommand(
		serveCmd,
		newAnalyzeCmd(&configPath),
		newVersionCmd(),
	)

	// Running the binary without a subcommand starts the server
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fixit version %s (%s pipeline)\n", api.Version, api.PipelineName)
		},
	}
}
