package cli

import (
	"fmt"

	"atsforge/internal/errors"
	"atsforge/internal/render"
	"atsforge/internal/store"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a stored optimization to PDF",
	Long: `Forward an optimization's LaTeX source to the configured render
service and print the resulting artifact URL. The render key is taken
from the --render-key flag, the user's stored settings, or the
server-wide default, in that order.`,
	RunE: runRender,
}

var (
	renderUserID         string
	renderOptimizationID string
	renderCoverLetter    bool
	renderKeyOverride    string
)

func init() {
	renderCmd.Flags().StringVar(&renderUserID, "user", "", "User ID owning the optimization")
	renderCmd.Flags().StringVar(&renderOptimizationID, "optimization", "", "Optimization ID to render")
	renderCmd.Flags().BoolVar(&renderCoverLetter, "cover-letter", false, "Render the optimized cover letter instead of the resume")
	renderCmd.Flags().StringVar(&renderKeyOverride, "render-key", "", "Render service key (overrides stored settings)")
	_ = renderCmd.MarkFlagRequired("user")
	_ = renderCmd.MarkFlagRequired("optimization")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd.Context())
	logger := loggerFrom(cmd.Context())
	ctx := cmd.Context()

	st, err := store.Open(cfg.Database, logger, cfg.App.LogLevel == "debug")
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.LogError(err, "Failed to close store")
		}
	}()

	optimization, err := st.GetOptimization(ctx, renderUserID, renderOptimizationID)
	if err != nil {
		return err
	}

	content := optimization.OptimizedContent
	if renderCoverLetter {
		if optimization.OptimizedCoverLetter == nil {
			return errors.NewBadRequest(errors.ErrCodeMissingContent,
				"optimization has no optimized cover letter")
		}
		content = *optimization.OptimizedCoverLetter
	}

	credential := renderKeyOverride
	if credential == "" {
		settings, err := st.GetUserSettings(ctx, renderUserID)
		if err != nil {
			return err
		}
		if settings != nil {
			credential = settings.RenderKey
		}
	}
	if credential == "" {
		credential = cfg.Render.APIKey
	}

	result, err := render.NewProxy(cfg.Render, logger).Render(ctx, content, credential)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	fmt.Println(result.ArtifactURL)
	return nil
}
