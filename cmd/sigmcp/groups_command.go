package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigmcp/signal-mcp-go/internal/rpc"
	sig "github.com/sigmcp/signal-mcp-go/internal/signal"
)

func newGroupsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List the account's Signal groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			ctx, cancel := contextWithTimeout(cmd.Context(), sendTimeout)
			defer cancel()

			groups, err := svc.ListGroups(ctx)
			if err != nil {
				return err
			}

			if len(groups) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No groups found.")

				return nil
			}

			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				rows = append(rows, []string{g.Name, g.ID, g.Description})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"NAME", "ID", "DESCRIPTION"}, rows))

			return nil
		},
	}
}
