package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blulok/blulok-cloud/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample BluLok configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/blulok/config.yaml. Use --config to specify a custom path.

A fresh operator Ed25519 keypair is generated and embedded in the file.

Examples:
  # Initialize with default location
  blulok init

  # Initialize with custom path
  blulok init --config /etc/blulok/config.yaml

  # Force overwrite existing config
  blulok init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the server with: blulok start")
	fmt.Printf("  3. Or specify custom config: blulok start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  A fresh operator keypair was generated for development use.")
	fmt.Println("  For production, generate keys offline with 'blulok keygen' and")
	fmt.Println("  provide the private key via environment variable:")
	fmt.Println("    export BLULOK_ACCESS_OPERATOR_PRIVATE_KEY_B64=<seed>")

	return nil
}
