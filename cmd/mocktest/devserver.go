package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/mocktest/internal/devserver"
)

func devserverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local backend with demo tests for development",
		RunE:  runDevserver,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8000", "HTTP listen address")
	f.String("server-db", ":memory:", "Backend SQLite database path")
	f.StringSlice("seed", nil, "Extra seed files with users and tests (repeatable)")
	f.Bool("no-default-seed", false, "Start without the built-in demo user and tests")
	f.Bool("request-log", true, "Log every request")
	f.Bool("secure-cookies", false, "Set the Secure flag on session cookies")
	return cmd
}

func runDevserver(cmd *cobra.Command, _ []string) error {
	logs, err := setupLogging(cmd, false)
	if err != nil {
		return err
	}
	defer logs.Close()
	v := viperForCmd(cmd)

	var seed devserver.Seed
	if !v.GetBool("no-default-seed") {
		if seed, err = devserver.DefaultSeed(); err != nil {
			return fmt.Errorf("load default seed: %w", err)
		}
	}
	srv, err := devserver.New(v.GetString("server-db"), seed,
		devserver.WithRequestLog(v.GetBool("request-log")),
		devserver.WithSecureCookies(v.GetBool("secure-cookies")),
	)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer srv.Close()

	for _, path := range v.GetStringSlice("seed") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := srv.Import(path, data); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
	}

	addr := v.GetString("addr")
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	slog.Info("starting development backend", "addr", addr, "db", v.GetString("server-db"),
		"seed_files", len(v.GetStringSlice("seed")))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-cmd.Context().Done():
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("shutting down development backend")
	if err := hs.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
