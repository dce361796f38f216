package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/morningready/morningready/internal/eventparser"
)

// ErrNothingToParse is returned when the text names no date or time.
var ErrNothingToParse = errors.New("no date or time found in text")

func newParseCmd(g *globalOptions) *cobra.Command {
	var now string

	cmd := &cobra.Command{
		Use:   "parse <text>...",
		Short: "Parse free text into an event draft",
		Long: `Parse a short English or Japanese sentence into the event draft the API
would create. Relative dates are anchored at --now in APP_TIME_ZONE.`,
		Example: `  morningctl parse "meeting tomorrow 9:30am at Shiodome Station"
  morningctl parse --json 明日10時 渋谷で打ち合わせ`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			parserCfg := eventparser.Config{Location: cfg.Location()}
			if now != "" {
				at, err := time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("--now: %w", err)
				}
				parserCfg.Now = func() time.Time { return at }
			}

			draft := eventparser.New(parserCfg).Parse(strings.Join(args, " "))
			if draft == nil {
				return ErrNothingToParse
			}

			if g.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), draft)
			}

			w := cmd.OutOrStdout()
			printSection(w, "Event draft")
			printLabelValue(w, "Title", draft.Title)
			printLabelValue(w, "Place", draft.Place)
			printLabelValue(w, "Starts", draft.Start.Format("Mon 2 Jan 15:04 MST"))
			printLabelValue(w, "Mode", string(draft.Mode))
			return nil
		},
	}

	cmd.Flags().StringVar(&now, "now", "", "Anchor time for relative dates (RFC 3339, default current time)")
	return cmd
}
