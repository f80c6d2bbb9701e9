// Gray Logic Node - MQTT edge node
//
// This is the main entry point for a Gray Logic Node: a small device that
// keeps one MQTT session to the site broker, announces its entities through
// Home Assistant discovery and runs message-triggered automations.
//
// Commands:
//
//	graylogic-node run          start the node
//	graylogic-node validate     load and validate the configuration
//	graylogic-node dump-config  print the effective configuration
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/lifecycle"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither --config nor the env var is set.
	defaultConfigPath = "configs/config.yaml"

	// configEnv names the config file path override.
	configEnv = "GRAYLOGIC_NODE_CONFIG"

	// redacted replaces secrets in dump-config output.
	redacted = "********"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, lifecycle.ErrRebootRequested) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Each call returns a fresh tree so
// tests can execute commands independently.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "graylogic-node",
		Short:         "Gray Logic MQTT edge node",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default $"+configEnv+" or "+defaultConfigPath+")")

	load := func() (*config.Config, string, error) {
		path := resolveConfigPath(configPath)
		cfg, err := config.Load(path)
		if err != nil {
			return nil, path, fmt.Errorf("loading config: %w", err)
		}
		return cfg, path, nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the node and run until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			// Cancel on interrupt signals (Ctrl+C, SIGTERM) for a clean shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := load()
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), path, cfg)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "dump-config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			return dumpConfig(cmd.OutOrStdout(), cfg)
		},
	})

	root.SetContext(context.Background())
	return root
}

// resolveConfigPath returns the flag value, then the environment
// variable, then the default path.
func resolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

func printSummary(w io.Writer, path string, cfg *config.Config) {
	fmt.Fprintf(w, "configuration valid: %s\n", path)
	fmt.Fprintf(w, "  node:         %s\n", cfg.Node.Name)
	fmt.Fprintf(w, "  broker:       %s:%d\n", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port)
	fmt.Fprintf(w, "  client id:    %s\n", cfg.MQTT.Broker.ClientID)
	fmt.Fprintf(w, "  topic prefix: %s\n", cfg.MQTT.TopicPrefix)
	fmt.Fprintf(w, "  entities:     %d\n",
		len(cfg.Devices.Sensors)+len(cfg.Devices.BinarySensors)+len(cfg.Devices.Switches))
	fmt.Fprintf(w, "  automations:  %d\n", len(cfg.Automations))
}

// dumpConfig writes cfg as YAML with the broker password and the InfluxDB
// token replaced.
func dumpConfig(w io.Writer, cfg *config.Config) error {
	out := *cfg
	if out.MQTT.Auth.Password != "" {
		out.MQTT.Auth.Password = redacted
	}
	if out.InfluxDB.Token != "" {
		out.InfluxDB.Token = redacted
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
