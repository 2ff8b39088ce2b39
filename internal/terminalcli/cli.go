// Package terminalcli реализует команды оператора терминала.
// Операции с очередью выполняются через административный API запущенного
// демона, учетные данные устройства хранятся локально.
package terminalcli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/possync/internal/config"
	"github.com/iudanet/possync/internal/credentials"
	"github.com/iudanet/possync/internal/iocli"
	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/pkg/api"
)

//go:generate moq -out adminapi_mock.go . AdminAPI
//go:generate moq -out credentials_mock.go . Credentials

// AdminAPI административный API демона терминала
type AdminAPI interface {
	Status(ctx context.Context) (*api.StatusResponse, error)
	Statistics(ctx context.Context) (*api.StatisticsResponse, error)
	ForceSync(ctx context.Context) (*api.PassResponse, error)
	RetryFailed(ctx context.Context) (int, error)
	ClearFailed(ctx context.Context) (int, error)
	ClearLegacy(ctx context.Context, table string) (int, error)
	Conflicts(ctx context.Context, all bool) ([]*models.DataConflict, error)
	Resolve(ctx context.Context, id string, req api.ResolveRequest) error
	Devices(ctx context.Context) ([]*models.DeviceInfo, error)
	RegisterDevice(ctx context.Context, req api.DeviceRequest) (*models.DeviceInfo, error)
}

// Credentials учетные данные устройства в облаке
type Credentials interface {
	Register(ctx context.Context, deviceID, secret string) (*credentials.Session, error)
	Login(ctx context.Context, deviceID, secret string) (*credentials.Session, error)
	Logout(ctx context.Context) error
	StoredDeviceID(ctx context.Context) (string, error)
}

var (
	// ErrAdminDisabled admin.jwt_secret не задан, команды оператора недоступны
	ErrAdminDisabled = errors.New("admin API token is not configured, set admin.jwt_secret")
	// ErrNoCredentials команда требует облачного backend с учетными данными
	ErrNoCredentials = errors.New("device credentials are only used with the http remote")
	// ErrUsage неверные аргументы команды
	ErrUsage = errors.New("invalid usage")
)

type Cli struct {
	io         iocli.IO
	admin      AdminAPI
	creds      Credentials
	cfg        *config.Config
	lookupEnv  func(string) (string, bool)
	secretFile string
}

// New создает CLI. admin и creds могут быть nil, тогда соответствующие
// команды возвращают ошибку.
func New(io iocli.IO, admin AdminAPI, creds Credentials, cfg *config.Config, secretFile string, lookupEnv func(string) (string, bool)) *Cli {
	return &Cli{
		io:         io,
		admin:      admin,
		creds:      creds,
		cfg:        cfg,
		lookupEnv:  lookupEnv,
		secretFile: secretFile,
	}
}

// Run выполняет команду
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "status":
		return c.runStatus(ctx)
	case "stats":
		return c.runStats(ctx)
	case "sync":
		return c.runSync(ctx)
	case "conflicts":
		return c.runConflicts(ctx, args)
	case "resolve":
		return c.runResolve(ctx, args)
	case "retry-failed":
		return c.runRetryFailed(ctx)
	case "clear-failed":
		return c.runClearFailed(ctx)
	case "purge-legacy":
		return c.runPurgeLegacy(ctx, args)
	case "devices":
		return c.runDevices(ctx)
	case "add-device":
		return c.runAddDevice(ctx, args)
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "admin-token":
		return c.runAdminToken()
	default:
		PrintUsage(c.io)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func (c *Cli) adminAPI() (AdminAPI, error) {
	if c.admin == nil {
		return nil, ErrAdminDisabled
	}
	return c.admin, nil
}

func (c *Cli) credentials() (Credentials, error) {
	if c.creds == nil {
		return nil, ErrNoCredentials
	}
	return c.creds, nil
}

// PrintUsage печатает справку
func PrintUsage(io iocli.IO) {
	io.Println("POS sync terminal")
	io.Println()
	io.Println("Usage:")
	io.Println("  possync-terminal [OPTIONS] COMMAND")
	io.Println()
	io.Println("Options:")
	io.Println("  --version              Show version information")
	io.Println("  --config PATH          Path to YAML config file")
	io.Println("  --db PATH              Path to local database")
	io.Println("  --server URL           Cloud URL")
	io.Println("  --listen ADDR          Admin API listen address")
	io.Println("  --device ID            Device ID of this terminal")
	io.Println("  --log-level LEVEL      Log level: debug, info, warn, error")
	io.Println("  --secret-file PATH     Path to file containing the device secret")
	io.Println()
	io.Println("Device Secret Priority (highest to lowest):")
	io.Println("  1. POSSYNC_DEVICE_SECRET environment variable")
	io.Println("  2. --secret-file (file path)")
	io.Println("  3. Interactive prompt (fallback)")
	io.Println()
	io.Println("Commands:")
	io.Println("  serve                        Run the sync daemon (default)")
	io.Println("  register                     Register this device in the cloud")
	io.Println("  login                        Login to the cloud")
	io.Println("  logout                       Forget stored credentials")
	io.Println("  status                       Show sync status")
	io.Println("  stats                        Show queue statistics")
	io.Println("  sync                         Run a sync pass now")
	io.Println("  conflicts [--all]            List unresolved conflicts")
	io.Println("  resolve <id> <resolution> [merged-json]")
	io.Println("                               Resolve conflict: local_wins, cloud_wins, manual_merge")
	io.Println("  retry-failed                 Return failed items to the queue")
	io.Println("  clear-failed                 Delete failed items")
	io.Println("  purge-legacy <table> [--yes] Delete queued items of a removed table")
	io.Println("  devices                      List known devices")
	io.Println("  add-device <id> <name> [type]")
	io.Println("                               Register a device on the local network")
	io.Println("  admin-token                  Print an operator token for the admin API")
	io.Println()
	io.Println("Examples:")
	io.Println("  export POSSYNC_DEVICE_SECRET='long-device-secret'")
	io.Println("  possync-terminal register")
	io.Println("  possync-terminal --config /etc/possync/terminal.yaml serve")
	io.Println("  possync-terminal resolve 6f1c... manual_merge '{\"name\":\"Cola 0.5\"}'")
}
