package config

import (
	"crypto/ed25519"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/blulok/blulok-cloud/pkg/access/signing"
)

// Validate checks the configuration for structural and semantic errors.
//
// Struct tags cover ranges and enumerations; operator key material gets a
// dedicated check because a malformed signing key must stop the server
// before any token is issued. In development the keys may be omitted
// entirely (the keygen command produces them on demand); production
// requires a valid pair.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	return validateOperatorKeys(cfg)
}

func validateOperatorKeys(cfg *Config) error {
	priv := cfg.Access.OperatorPrivateKeyB64
	pub := cfg.Access.OperatorPublicKeyB64

	if priv == "" && pub == "" {
		if cfg.Environment == "production" {
			return fmt.Errorf("access: operator key pair is required in production (run 'blulok keygen')")
		}
		return nil
	}

	if priv == "" || pub == "" {
		return fmt.Errorf("access: operator_private_key_b64 and operator_public_key_b64 must be set together")
	}

	seed, err := signing.DecodeKey(priv)
	if err != nil {
		return fmt.Errorf("access: operator_private_key_b64: %w", err)
	}
	pubKey, err := signing.DecodeKey(pub)
	if err != nil {
		return fmt.Errorf("access: operator_public_key_b64: %w", err)
	}

	derived := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if !derived.Equal(ed25519.PublicKey(pubKey)) {
		return fmt.Errorf("access: operator public key does not match the private key")
	}

	return nil
}
