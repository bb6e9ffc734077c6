package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"atsforge/internal/ai"
	"atsforge/internal/compose"
	"atsforge/internal/config"
	"atsforge/internal/pipeline"
	"atsforge/internal/store"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run the optimization pipeline for a stored job description",
	Long: `Run the AI optimization pipeline against the user's current resume
(and cover letter, when one is stored) for a previously submitted job
description. The result is persisted and printed as JSON.`,
	RunE: runOptimize,
}

var (
	optimizeUserID string
	optimizeJobID  string
)

func init() {
	optimizeCmd.Flags().StringVar(&optimizeUserID, "user", "", "User ID owning the documents and job description")
	optimizeCmd.Flags().StringVar(&optimizeJobID, "job", "", "Job description ID to optimize against")
	_ = optimizeCmd.MarkFlagRequired("user")
	_ = optimizeCmd.MarkFlagRequired("job")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd.Context())
	logger := loggerFrom(cmd.Context())

	st, err := store.Open(cfg.Database, logger, cfg.App.LogLevel == "debug")
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.LogError(err, "Failed to close store")
		}
	}()

	aiService, err := ai.NewService(&cfg.AI, logger)
	if err != nil {
		return fmt.Errorf("failed to create model service: %w", err)
	}
	defer func() {
		if err := aiService.Close(); err != nil {
			logger.LogError(err, "Failed to close model service")
		}
	}()

	templates, err := config.NewTemplateWatcher(cfg.AI, compose.DefaultTemplate, logger)
	if err != nil {
		return fmt.Errorf("failed to load instruction template: %w", err)
	}

	pl := pipeline.New(st, aiService, &cfg.AI, templates, nil, logger)

	optimization, err := pl.Run(cmd.Context(), optimizeUserID, optimizeJobID)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(optimization)
}
