package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sigmcp/signal-mcp-go/internal/server"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the sigmcp version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sigmcp %s\n", server.Version)
		},
	}
}
