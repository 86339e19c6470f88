package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blulok/blulok-cloud/pkg/access/signing"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an operator Ed25519 keypair",
	Long: `Generate a fresh operator Ed25519 keypair.

The keys are printed in the base64url (unpadded) wire encoding used
throughout the system: 43 characters each, decoding to 32 bytes.

The private key signs every Route Pass and gateway command; store it
securely and never commit it to version control.`,
	RunE: runKeygen,
}

func runKeygen(cmd *cobra.Command, args []string) error {
	priv, pub, err := signing.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	fmt.Println("Operator keypair generated.")
	fmt.Println()
	fmt.Printf("operator_private_key_b64: %s\n", priv)
	fmt.Printf("operator_public_key_b64:  %s\n", pub)
	fmt.Println()
	fmt.Println("Add both values to the access section of your config file, or")
	fmt.Println("provide them via environment variables:")
	fmt.Println("  export BLULOK_ACCESS_OPERATOR_PRIVATE_KEY_B64=<private>")
	fmt.Println("  export BLULOK_ACCESS_OPERATOR_PUBLIC_KEY_B64=<public>")

	return nil
}
