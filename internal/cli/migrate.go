package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/morningready/morningready/internal/database"
)

func newMigrateCmd(g *globalOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply the embedded schema migrations to the DB_* database. Already applied
versions are skipped. With --list the embedded migrations are printed
without connecting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()

			if list {
				migrations, err := database.Migrations()
				if err != nil {
					return err
				}
				versions := make([]string, 0, len(migrations))
				for _, m := range migrations {
					versions = append(versions, m.Version)
				}
				if g.jsonOutput {
					return outputJSON(w, versions)
				}
				printSection(w, "Embedded migrations")
				printList(w, versions)
				return nil
			}

			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			log := g.logger(cmd.ErrOrStderr(), cfg)

			pool, err := database.Connect(cmd.Context(), database.FromConfig(cfg.Database))
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			applied, err := database.Migrate(cmd.Context(), pool, log)
			if err != nil {
				return err
			}

			if g.jsonOutput {
				return outputJSON(w, applied)
			}
			if len(applied) == 0 {
				printSuccess(w, "schema is up to date")
				return nil
			}
			printSuccess(w, "applied "+plural(len(applied), "migration", "migrations"))
			printList(w, applied)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List embedded migrations without connecting")
	return cmd
}
