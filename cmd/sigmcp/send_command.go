package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigmcp/signal-mcp-go/internal/rpc"
	sig "github.com/sigmcp/signal-mcp-go/internal/signal"
)

const sendTimeout = 30 * time.Second

func newSendCommand(opts *rootOptions) *cobra.Command {
	var (
		toUser  string
		toGroup string
	)

	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send a message from the command line",
		Long:  "Sends a Signal message to a user or group without starting the MCP server. Useful for testing daemon connectivity.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (toUser == "") == (toGroup == "") {
				return fmt.Errorf("exactly one of --to or --group is required")
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			if err := requireAccount(cfg); err != nil {
				return err
			}

			log := opts.newLogger(cfg)

			client := rpc.NewClient(log, cfg.Addr())
			defer func() { _ = client.Close() }()

			svc := sig.NewService(log, client, nil, nil, cfg.Account)
			message := strings.Join(args, " ")

			ctx, cancel := contextWithTimeout(cmd.Context(), sendTimeout)
			defer cancel()

			if toGroup != "" {
				return svc.SendToGroup(ctx, toGroup, message)
			}

			return svc.SendToUser(ctx, toUser, message)
		},
	}

	cmd.Flags().StringVar(&toUser, "to", "", "Recipient phone number or username")
	cmd.Flags().StringVar(&toGroup, "group", "", "Recipient group id")

	return cmd
}
