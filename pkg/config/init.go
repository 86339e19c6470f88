package config

import (
	"fmt"
	"os"

	"github.com/blulok/blulok-cloud/pkg/access/signing"
)

// InitConfig creates a sample configuration file at the default location.
// Returns the path the file was written to.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath creates a sample configuration file at the given path.
//
// A fresh operator keypair is generated and embedded so a development
// server starts out of the box. The file is written 0600.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	cfg := GetDefaultConfig()

	priv, pub, err := signing.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("generating operator keypair: %w", err)
	}
	cfg.Access.OperatorPrivateKeyB64 = priv
	cfg.Access.OperatorPublicKeyB64 = pub

	return SaveConfig(cfg, path)
}
