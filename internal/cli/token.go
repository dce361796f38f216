package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/morningready/morningready/internal/auth"
	"github.com/morningready/morningready/internal/config"
)

type tokenOutput struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func newTokenCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint an access token for a user",
		Long: `Mint a signed access token for a user with the JWT_* settings, for
calling the /v1/me endpoints during development and support.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			token, expiresAt, err := auth.NewJWTService(auth.FromConfig(cfg.JWT)).GenerateAccessToken(args[0])
			if err != nil {
				return err
			}

			out := tokenOutput{Token: token, UserID: args[0], ExpiresAt: expiresAt.UTC()}
			if g.jsonOutput {
				return outputJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			if cfg.JWT.SigningKey == config.DevSigningKey {
				printWarning(cmd.ErrOrStderr(), "signed with the development key")
			}
			_, _ = fmt.Fprintln(w, out.Token)
			printEmptyState(cmd.ErrOrStderr(), "expires "+out.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}
}
