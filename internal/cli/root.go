// Package cli implements morningctl, the operator tool for computing plans
// offline, parsing event text, minting tokens and running maintenance.
package cli

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/morningready/morningready/internal/app"
	"github.com/morningready/morningready/internal/config"
)

const serviceName = "morningctl"

var version = "dev"

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v == "" {
		return
	}
	version = v
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	envFiles   []string
	jsonOutput bool
	verbose    bool
}

// loadConfig reads configuration from the env files and the environment.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Options{EnvFiles: o.envFiles})
	if err != nil {
		return nil, err
	}
	if cfg.App.Version == "dev" {
		cfg.App.Version = version
	}
	return cfg, nil
}

// logger writes JSON logs to stderr; only warnings unless --verbose.
func (o *globalOptions) logger(w io.Writer, cfg *config.Config) zerolog.Logger {
	log := app.NewLogger(w, serviceName, cfg)
	if !o.verbose && log.GetLevel() < zerolog.WarnLevel {
		log = log.Level(zerolog.WarnLevel)
	}
	return log
}

// NewRootCommand builds the morningctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "morningctl",
		Version: version,
		Short:   "Morning plan operator tool",
		Long: `morningctl computes morning plans from scenario files, parses free-text
events and runs maintenance tasks against a MorningReady deployment.

Configuration is read from the same environment variables as the API server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "Env files to load before reading the environment")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")

	rootCmd.AddGroup(
		&cobra.Group{ID: "planning", Title: "Planning:"},
		&cobra.Group{ID: "operations", Title: "Operations:"},
	)

	for _, cmd := range []*cobra.Command{newPlanCmd(opts), newParseCmd(opts)} {
		cmd.GroupID = "planning"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{newTokenCmd(opts), newMigrateCmd(opts), newRefreshCmd(opts)} {
		cmd.GroupID = "operations"
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the morningctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}
