// Command sigmcp bridges Signal messaging into MCP tools.
//
// It talks to a running signal-cli daemon over JSON-RPC TCP and exposes
// send, receive and group operations to MCP clients over stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
