package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/cloud/handlers"
	"github.com/iudanet/possync/internal/cloud/storage/sqlite"
	"github.com/iudanet/possync/internal/config"
	"github.com/iudanet/possync/internal/logger"
	"github.com/iudanet/possync/internal/middleware"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// tokenCleanupInterval период удаления истекших refresh токенов
const tokenCleanupInterval = time.Hour

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CLOUD_CONFIG"), "Path to YAML config")
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.LoadCloud(*configPath, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Journal: cfg.Log.Journal})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := "serve"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	if err := run(ctx, cmd, flag.Args(), cfg, log.Logger); err != nil {
		log.Error("Command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, cfg *config.CloudConfig, log *slog.Logger) error {
	st, err := sqlite.New(ctx, cfg.DBPath, log, sqlite.WithBusinessKeys(cfg.BusinessKeys))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer st.Close()

	switch cmd {
	case "serve":
		return serve(ctx, cfg, st, log)
	case "devices":
		return listDevices(ctx, st)
	case "revoke":
		if len(args) < 2 {
			return errors.New("usage: revoke <device_id>")
		}
		if err := st.DeleteAccount(ctx, args[1]); err != nil {
			return err
		}
		fmt.Printf("Device %s revoked\n", args[1])
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func serve(ctx context.Context, cfg *config.CloudConfig, st *sqlite.Storage, log *slog.Logger) error {
	jwt := authtoken.Config{
		Issuer:          cfg.Issuer,
		Secret:          []byte(cfg.JWTSecret),
		AccessTokenTTL:  cfg.AccessTTL,
		RefreshTokenTTL: cfg.RefreshTTL,
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, log)
	defer limiter.Stop()

	handler := handlers.Routes(
		handlers.NewAuthHandler(log, st, st, jwt),
		handlers.NewRecordsHandler(log, st),
		handlers.NewHealthHandler(log, st, Version),
		jwt, limiter, log,
	)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go cleanupTokens(ctx, st, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("PosSync cloud listening", "addr", cfg.Listen, "version", Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}
	log.Info("PosSync cloud stopped")
	return nil
}

func cleanupTokens(ctx context.Context, st *sqlite.Storage, log *slog.Logger) {
	ticker := time.NewTicker(tokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := st.DeleteExpiredTokens(ctx, now)
			if err != nil {
				log.Warn("Failed to delete expired refresh tokens", "error", err)
				continue
			}
			if n > 0 {
				log.Info("Expired refresh tokens deleted", "count", n)
			}
		}
	}
}

func listDevices(ctx context.Context, st *sqlite.Storage) error {
	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tREGISTERED\tLAST LOGIN")
	for _, a := range accounts {
		last := "never"
		if a.LastLogin != nil {
			last = a.LastLogin.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.DeviceID, a.CreatedAt.Local().Format(time.DateTime), last)
	}
	return w.Flush()
}

func usage() {
	fmt.Fprintf(os.Stderr, `PosSync Cloud

Usage:
  possync-cloud [flags] [command]

Commands:
  serve              Run the cloud API (default)
  devices            List registered terminals
  revoke <device_id> Delete a terminal account and its tokens

Flags:
`)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Printf("PosSync Cloud\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
