package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ai-notetaking-be/internal/bootstrap"
	"ai-notetaking-be/internal/config"
	"ai-notetaking-be/internal/server"
	"ai-notetaking-be/internal/tracer"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the council HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	shutdownTracer := tracer.InitTracer()
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	cfg := config.Load()

	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("build council container: %w", err)
	}
	defer func() { _ = container.Logger.Sync() }()

	srv := server.New(cfg, container)

	signalCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-signalCtx.Done():
		_ = os.Stdout.Sync()
		return nil
	}
}
