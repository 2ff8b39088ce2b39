package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/possync/internal/admin"
	"github.com/iudanet/possync/internal/config"
	"github.com/iudanet/possync/internal/credentials"
	"github.com/iudanet/possync/internal/daemon"
	"github.com/iudanet/possync/internal/iocli"
	"github.com/iudanet/possync/internal/logger"
	"github.com/iudanet/possync/internal/remote/httpapi"
	"github.com/iudanet/possync/internal/terminalcli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	var flags config.Flags
	flags.Register(flag.CommandLine)
	showVersion := flag.Bool("version", false, "Show version information")
	secretFile := flag.String("secret-file", "", "Path to file containing the device secret")
	flag.Usage = func() { terminalcli.PrintUsage(iocli.NewStdio()) }
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := config.Load(flags, os.LookupEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	command := "serve"
	var args []string
	if flag.NArg() > 0 {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command == "serve" {
		err = serve(ctx, cfg, *secretFile)
	} else {
		err = runCommand(ctx, cfg, command, args, *secretFile)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, secretFile string) error {
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Journal: cfg.Log.Journal})
	if err != nil {
		return err
	}
	defer log.Close()

	var secret string
	if cfg.Remote.Kind != config.RemotePostgres {
		secret, err = terminalcli.ReadSecret(iocli.NewStdio(), secretFile, os.LookupEnv)
		if err != nil {
			return err
		}
	}

	app, err := daemon.New(ctx, cfg, log.Logger, daemon.Options{Secret: secret})
	if err != nil {
		return err
	}
	defer app.Close()

	log.Info("Starting terminal", "version", Version, "commit", GitCommit)
	return app.Run(ctx)
}

func runCommand(ctx context.Context, cfg *config.Config, command string, args []string, secretFile string) error {
	// для разовых команд в терминал выводятся только предупреждения
	level := cfg.Log.Level
	if level == "" || level == "info" || level == "debug" {
		level = "warn"
	}
	log, err := logger.New(logger.Options{Level: level})
	if err != nil {
		return err
	}
	defer log.Close()

	var adm terminalcli.AdminAPI
	if token, err := terminalcli.OperatorToken(cfg.Admin, terminalcli.Operator(cfg)); err == nil {
		adm = admin.NewClient(adminBaseURL(cfg.Admin.Listen), token)
	}

	var creds terminalcli.Credentials
	if needsCredentials(command) && cfg.Remote.Kind != config.RemotePostgres {
		ks, err := credentials.OpenKeystore(cfg.Keystore.Path)
		if err != nil {
			return err
		}
		defer ks.Close()
		authAPI := httpapi.NewClient(cfg.Remote.URL, httpapi.WithTimeout(cfg.Remote.Timeout))
		creds = credentials.NewService(authAPI, ks, cfg.Remote.URL, log.Logger)
	}

	cli := terminalcli.New(iocli.NewStdio(), adm, creds, cfg, secretFile, os.LookupEnv)
	return cli.Run(ctx, command, args)
}

// needsCredentials keystore открывается только для команд входа,
// пока демон держит его открытым
func needsCredentials(command string) bool {
	switch command {
	case "register", "login", "logout":
		return true
	}
	return false
}

// adminBaseURL адрес административного API для клиента; пустой хост
// означает локальный демон
func adminBaseURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func printVersion() {
	fmt.Printf("POS Sync Terminal\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
