package cli

import (
	"context"

	"atsforge/internal/config"
	"atsforge/internal/errors"

	"github.com/spf13/cobra"
)

type ctxKey int

const (
	configKey ctxKey = iota
	loggerKey
)

var rootCmd = &cobra.Command{
	Use:   "atsforge",
	Short: "An AI-powered resume optimization service",
	Long: `ATSForge stores your resume and cover letter sources, accepts job
descriptions and produces keyword-optimized LaTeX documents with an ATS
compatibility score. It can also forward optimized documents to a
LaTeX-to-PDF render service.`,
}

// Execute runs the root command with the config and logger reachable from
// every subcommand's context.
func Execute(ctx context.Context, cfg *config.Config, logger *errors.Logger) error {
	ctx = context.WithValue(ctx, configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func configFrom(ctx context.Context) *config.Config {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok {
		panic("config not found in context")
	}
	return cfg
}

func loggerFrom(ctx context.Context) *errors.Logger {
	logger, ok := ctx.Value(loggerKey).(*errors.Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}
