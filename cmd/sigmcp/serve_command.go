package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sigmcp/signal-mcp-go/internal/errors"
	"github.com/sigmcp/signal-mcp-go/internal/names"
	"github.com/sigmcp/signal-mcp-go/internal/relay"
	"github.com/sigmcp/signal-mcp-go/internal/rpc"
	"github.com/sigmcp/signal-mcp-go/internal/server"
	sig "github.com/sigmcp/signal-mcp-go/internal/signal"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP bridge over stdio",
		Long:  "Connects to the signal-cli daemon, starts the notification listener, and serves MCP tools on stdin/stdout until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
}

func runServe(opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	if err := requireAccount(cfg); err != nil {
		return err
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	log := opts.newLogger(cfg)

	// Only one bridge may serve a given data directory at a time.
	lock := flock.New(cfg.LockPath())

	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}

	if !locked {
		return fmt.Errorf("%w: %s", errors.ErrAlreadyLocked, cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	cache, err := names.Open(cfg.CachePath(), log)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	client := rpc.NewClient(log, cfg.Addr())
	defer func() { _ = client.Close() }()

	listener := relay.NewListener(log, cfg.Addr(), relay.NewQueue(cfg.Queue.Limit))
	svc := sig.NewService(log, client, listener, cache, cfg.Account)
	srv := server.New(log, svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start listening before any tool call arrives so messages received
	// early are not lost.
	if err := listener.Start(ctx); err != nil {
		log.Warn("listener start failed, will retry on first wait", "error", err)
	}

	log.Info("bridge starting",
		"account", cfg.Account,
		"daemon", cfg.Addr(),
		"queue_limit", cfg.Queue.Limit,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		listener.Stop()

		return gctx.Err()
	})

	err = g.Wait()
	log.Info("bridge stopped")

	return err
}
