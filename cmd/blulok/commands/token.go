package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blulok/blulok-cloud/pkg/access/signing"
	"github.com/blulok/blulok-cloud/pkg/api"
	"github.com/blulok/blulok-cloud/pkg/config"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an operator bearer token for the admin API",
	Long: `Mint an operator bearer token for the admin API.

The token is signed with the configured operator private key and carries
the admin audience. Pass it as "Authorization: Bearer <token>".

Examples:
  # One-hour token for the default subject
  blulok token

  # Custom subject and lifetime
  blulok token --sub ops-alice --ttl 15m`,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "operator", "Subject (sub claim) recorded as the acting operator")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "Token lifetime")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	signer, err := signing.NewService(signing.Config{
		PrivateKeyB64: cfg.Access.OperatorPrivateKeyB64,
		PublicKeyB64:  cfg.Access.OperatorPublicKeyB64,
	})
	if err != nil {
		return fmt.Errorf("operator keys are not usable: %w", err)
	}

	token, err := signer.SignCommand(map[string]any{
		"sub": tokenSubject,
		"aud": api.AdminAudience,
	}, tokenTTL, time.Now())
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Println(token)
	return nil
}
