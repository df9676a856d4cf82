// Package main is the entry point for the tasksyncd daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"tasksync/internal/auth"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/provider/googletasks"
	"tasksync/internal/provider/reminders"
	"tasksync/internal/store"
	syncengine "tasksync/internal/sync"
	"tasksync/internal/web"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Subcommands manage credentials; no subcommand runs the daemon.
	if len(args) > 0 && (args[0] == "login" || args[0] == "logout") {
		return runAuth(args[0], args[1:])
	}

	fs := flag.NewFlagSet("tasksyncd", flag.ContinueOnError)
	addr := fs.String("addr", ":8000", "HTTP listen address")
	configDir := fs.String("config", "", "configuration directory (default: XDG config dir)")
	bridgePath := fs.String("bridge", "", "reminders bridge command (default: tasksync-reminders-bridge on PATH)")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return exitcode.UserError
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.New(*configDir)
	if err != nil {
		slog.Error("config", "err", err)
		return exitcode.UserError
	}
	cfg.BridgePath = *bridgePath
	cfg.Debug = *debug
	if err := cfg.EnsureDir(); err != nil {
		slog.Error("create config dir", "dir", cfg.Dir, "err", err)
		return exitcode.BackendError
	}

	// Root context cancels on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	db, err := store.Open(cfg.DatabasePath())
	if err != nil {
		slog.Error("open store", "path", cfg.DatabasePath(), "err", err)
		return exitcode.BackendError
	}
	defer db.Close()

	tasks := googletasks.New(cfg)
	rems := reminders.New(cfg)
	engine := syncengine.NewEngine(tasks, rems, db)
	sched := syncengine.NewScheduler(engine)
	defer sched.Stop()

	// Resume the scheduler only if sync was configured in a previous run.
	if configured, err := db.HasSettings(ctx); err != nil {
		slog.Error("read settings", "err", err)
		return exitcode.BackendError
	} else if configured {
		settings, err := db.GetSettings(ctx)
		if err != nil {
			slog.Error("read settings", "err", err)
			return exitcode.BackendError
		}
		sched.Start(time.Duration(settings.IntervalMinutes) * time.Minute)
	}

	server := web.NewServer(engine, sched, db, tasks, rems)
	server.SetConnectionProbes(
		func() bool { return cfg.HasOAuthClient() && cfg.HasToken() },
		func() bool {
			_, err := exec.LookPath(cfg.BridgeCommand())
			return err == nil
		},
	)
	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", *addr)
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "err", err)
			return exitcode.BackendError
		}
		return exitcode.Success
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return exitcode.Success
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitcode.BackendError
	}
}

func runAuth(cmd string, args []string) int {
	fs := flag.NewFlagSet("tasksyncd "+cmd, flag.ContinueOnError)
	configDir := fs.String("config", "", "configuration directory (default: XDG config dir)")
	if err := fs.Parse(args); err != nil {
		return exitcode.UserError
	}

	cfg, err := config.New(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitcode.UserError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "login":
		if err := auth.Login(ctx, cfg, os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return exitcode.AuthError
		}
	case "logout":
		if err := auth.Logout(cfg, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return exitcode.AuthError
		}
	}
	return exitcode.Success
}
