package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/morningready/morningready/internal/app"
	"github.com/morningready/morningready/internal/weather"
	"github.com/morningready/morningready/internal/worker"
)

func newRefreshCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one forecast refresh pass",
		Long: `Prefetch forecasts for upcoming events and the configured anchors once, the
same pass the worker runs on its schedule. Useful to warm the shared cache
after a deploy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			log := g.logger(cmd.ErrOrStderr(), cfg)

			services, err := app.New(cmd.Context(), cfg, log, app.Options{SkipMigrations: true})
			if err != nil {
				return err
			}
			defer services.Close()

			job, err := worker.NewRefreshJob(worker.RefreshJobConfig{
				Config:   worker.FromConfig(cfg.Worker),
				Logger:   log,
				Weather:  services.Weather,
				Events:   services.Events,
				Profiles: services.Profiles,
				Location: cfg.Location(),
			})
			if err != nil {
				return err
			}

			result := job.Run(cmd.Context())

			w := cmd.OutOrStdout()
			if g.jsonOutput {
				return outputJSON(w, result)
			}

			msg := fmt.Sprintf("refreshed %d of %s in %s",
				result.Successful, plural(result.TotalTargets, "target", "targets"), result.Duration.Round(time.Millisecond))
			if result.Failed == 0 {
				printSuccess(w, msg)
				return nil
			}
			printWarning(w, msg)
			for _, e := range result.Errors {
				printEmptyState(w, fmt.Sprintf("%s %s: %s", e.Target.Name, e.Target.Date.Format(weather.DateLayout), e.Error))
			}
			if result.Failed > result.Successful {
				return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.TotalTargets)
			}
			return nil
		},
	}
}
