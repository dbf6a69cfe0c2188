package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigmcp/signal-mcp-go/internal/config"
	"github.com/sigmcp/signal-mcp-go/internal/logging"
)

// rootOptions holds the persistent flag values shared by all commands.
type rootOptions struct {
	configPath string
	account    string
	daemonHost string
	daemonPort int
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "sigmcp",
		Short:         "Signal MCP bridge",
		Long:          "sigmcp connects a signal-cli daemon to MCP clients, exposing Signal send and receive operations as tools.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&opts.account, "account", "", "Signal account in E.164 form (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.daemonHost, "daemon-host", "", "signal-cli daemon host (overrides config)")
	rootCmd.PersistentFlags().IntVar(&opts.daemonPort, "daemon-port", 0, "signal-cli daemon port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: auto, text, json")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newSendCommand(opts))
	rootCmd.AddCommand(newGroupsCommand(opts))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sigmcp.toml"
	}

	return home + "/.config/sigmcp/config.toml"
}

// loadConfig reads the config file and applies flag overrides on top.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	if o.account != "" {
		cfg.Account = o.account
	}

	if o.daemonHost != "" {
		cfg.Daemon.Host = o.daemonHost
	}

	if o.daemonPort != 0 {
		cfg.Daemon.Port = o.daemonPort
	}

	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newLogger builds the process logger. Logs always go to stderr; stdout
// carries the MCP stdio transport.
func (o *rootOptions) newLogger(cfg *config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
}

// requireAccount fails early when no Signal account is configured.
func requireAccount(cfg *config.Config) error {
	if cfg.Account == "" {
		return fmt.Errorf("no Signal account configured; set account in the config file or pass --account")
	}

	return nil
}
