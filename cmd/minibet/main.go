package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/onchaincommerce/minibet/config"
)

var version = getVersion()

// getVersion returns the module version from build info
func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "dev"
}

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	configDir  string
	envFile    string
	network    string
	logLevel   string
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "minibet",
		Short:         "minibet slot machine client and API server",
		Long:          "Spin the minibet contract, decode results, rebuild win history and serve the mini-app API.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile == "" {
				return nil
			}
			if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to load %s: %w", opts.envFile, err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file (default: <config-dir>/config-$APP_ENV.yaml)")
	flags.StringVar(&opts.configDir, "config-dir", "configs", "Directory searched for config-<env>.yaml")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file loaded before the config")
	flags.StringVarP(&opts.network, "network", "n", "", "Network profile override (base, base-sepolia)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level override")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSpinCmd(opts),
		newStatusCmd(opts),
		newHistoryCmd(opts),
		newStatsCmd(opts),
		newJackpotCmd(opts),
		newWithdrawCmd(opts),
		newTokenCmd(opts),
		newManifestCmd(opts),
		newSignaturesCmd(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults plus the
// environment when no file exists.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadByEnv(o.configDir)
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			cfg, err = config.Default()
		}
	}
	if err != nil {
		return nil, err
	}

	if o.network != "" {
		cfg.Network = o.network
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
