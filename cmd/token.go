// File: cmd/token.go
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/pathwright/internal/observer"
)

func newTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issues a token for viewing the progress stream",
		Long: `Prints a signed token accepted by the websocket progress server when
observer.token_secret is configured. Pass it as "Authorization: Bearer <token>"
or as the token query parameter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if cfg.Observer.TokenSecret == "" {
				return errors.New("observer.token_secret is not configured")
			}
			if ttl <= 0 {
				return errors.New("--ttl must be positive")
			}

			token, err := observer.NewTokenAuth(cfg.Observer.TokenSecret).Issue(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "viewer", "who the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "how long the token stays valid")
	return cmd
}
