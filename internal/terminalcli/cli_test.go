package terminalcli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/config"
	"github.com/iudanet/possync/internal/credentials"
	"github.com/iudanet/possync/internal/iocli"
	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/pkg/api"
)

// testIO собирает вывод и отдает заранее заданные ответы
type testIO struct {
	*iocli.IOMock
	out     strings.Builder
	answers []string
}

func newTestIO(answers ...string) *testIO {
	tio := &testIO{answers: answers}
	next := func(prompt string) (string, error) {
		tio.out.WriteString(prompt)
		if len(tio.answers) == 0 {
			return "", errors.New("unexpected prompt: " + prompt)
		}
		a := tio.answers[0]
		tio.answers = tio.answers[1:]
		return a, nil
	}
	tio.IOMock = &iocli.IOMock{
		PrintlnFunc: func(a ...any) {
			tio.out.WriteString(fmt.Sprintln(a...))
		},
		PrintfFunc: func(format string, a ...any) {
			tio.out.WriteString(fmt.Sprintf(format, a...))
		},
		WriteFunc: func(p []byte) (int, error) {
			return tio.out.Write(p)
		},
		ReadInputFunc:    next,
		ReadPasswordFunc: next,
	}
	return tio
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Terminal.DeviceID = "pos-7"
	cfg.Admin.JWTSecret = "test-admin-secret"
	return cfg
}

func noEnv(string) (string, bool) { return "", false }

func envWith(vals map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := vals[k]
		return v, ok
	}
}

func TestCli_UnknownCommand(t *testing.T) {
	tio := newTestIO()
	c := New(tio, &AdminAPIMock{}, nil, testConfig(), "", noEnv)

	err := c.Run(context.Background(), "explode", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
	assert.Contains(t, tio.out.String(), "Commands:")
}

func TestCli_AdminDisabled(t *testing.T) {
	commands := []struct {
		name string
		args []string
	}{
		{name: "status"},
		{name: "stats"},
		{name: "sync"},
		{name: "conflicts"},
		{name: "retry-failed"},
		{name: "clear-failed"},
		{name: "devices"},
		{name: "resolve", args: []string{"c-1", "local_wins"}},
		{name: "purge-legacy", args: []string{"old_orders", "--yes"}},
	}

	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			c := New(newTestIO(), nil, nil, testConfig(), "", noEnv)
			err := c.Run(context.Background(), cmd.name, cmd.args)
			assert.ErrorIs(t, err, ErrAdminDisabled)
		})
	}
}

func TestCli_Status(t *testing.T) {
	last := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		resp     *api.StatusResponse
		contains []string
		absent   []string
	}{
		{
			name: "online and synced",
			resp: &api.StatusResponse{
				NetworkMode:  string(models.NetworkModeOnline),
				IsOnline:     true,
				LastSyncTime: &last,
				DeviceCount:  2,
			},
			contains: []string{"cloud reachable", "Devices: 2", "All changes synchronized"},
			absent:   []string{"Conflicts", "never"},
		},
		{
			name: "offline with backlog",
			resp: &api.StatusResponse{
				NetworkMode:   string(models.NetworkModeOffline),
				PendingCount:  5,
				ConflictCount: 1,
			},
			contains: []string{"cloud unreachable", "Last sync: never", "5 item(s)", "Conflicts: 1 unresolved"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tio := newTestIO()
			adm := &AdminAPIMock{
				StatusFunc: func(ctx context.Context) (*api.StatusResponse, error) {
					return tt.resp, nil
				},
			}
			c := New(tio, adm, nil, testConfig(), "", noEnv)
			require.NoError(t, c.Run(context.Background(), "status", nil))

			out := tio.out.String()
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestCli_Stats(t *testing.T) {
	tio := newTestIO()
	adm := &AdminAPIMock{
		StatisticsFunc: func(ctx context.Context) (*api.StatisticsResponse, error) {
			return &api.StatisticsResponse{TotalPending: 3, TotalFailed: 1, TotalConflicts: 2, SyncInProgress: true}, nil
		},
	}
	c := New(tio, adm, nil, testConfig(), "", noEnv)
	require.NoError(t, c.Run(context.Background(), "stats", nil))

	out := tio.out.String()
	assert.Contains(t, out, "Pending:     3")
	assert.Contains(t, out, "Failed:      1")
	assert.Contains(t, out, "Conflicts:   2")
	assert.Contains(t, out, "In progress: true")
}

func TestCli_Sync(t *testing.T) {
	tests := []struct {
		name     string
		resp     *api.PassResponse
		err      error
		wantErr  bool
		contains string
	}{
		{
			name:     "completed",
			resp:     &api.PassResponse{Processed: 4, Successful: 3, Conflicts: 1},
			contains: "Conflicts: 1",
		},
		{
			name:     "already running",
			resp:     &api.PassResponse{InProgress: true},
			contains: "already running",
		},
		{
			name:    "offline",
			err:     &adminError{msg: "cloud is offline"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tio := newTestIO()
			adm := &AdminAPIMock{
				ForceSyncFunc: func(ctx context.Context) (*api.PassResponse, error) {
					return tt.resp, tt.err
				},
			}
			c := New(tio, adm, nil, testConfig(), "", noEnv)
			err := c.Run(context.Background(), "sync", nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "cloud is offline")
				return
			}
			require.NoError(t, err)
			assert.Contains(t, tio.out.String(), tt.contains)
		})
	}
}

type adminError struct{ msg string }

func (e *adminError) Error() string { return e.msg }

func TestCli_Conflicts(t *testing.T) {
	created := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	conflicts := []*models.DataConflict{{
		ID:           "c-1",
		TableName:    models.TableCustomers,
		RecordID:     "p-1",
		ConflictType: models.ConflictTypeUpdate,
		Resolution:   models.ResolutionPending,
		CreatedAt:    created,
	}}

	t.Run("lists unresolved", func(t *testing.T) {
		tio := newTestIO()
		adm := &AdminAPIMock{
			ConflictsFunc: func(ctx context.Context, all bool) ([]*models.DataConflict, error) {
				return conflicts, nil
			},
		}
		c := New(tio, adm, nil, testConfig(), "", noEnv)
		require.NoError(t, c.Run(context.Background(), "conflicts", nil))

		require.Len(t, adm.ConflictsCalls(), 1)
		assert.False(t, adm.ConflictsCalls()[0].All)
		out := tio.out.String()
		assert.Contains(t, out, "ID")
		assert.Contains(t, out, "c-1")
		assert.Contains(t, out, "p-1")
		assert.Contains(t, out, "Total: 1 conflict(s)")
	})

	t.Run("all", func(t *testing.T) {
		tio := newTestIO()
		adm := &AdminAPIMock{
			ConflictsFunc: func(ctx context.Context, all bool) ([]*models.DataConflict, error) {
				return nil, nil
			},
		}
		c := New(tio, adm, nil, testConfig(), "", noEnv)
		require.NoError(t, c.Run(context.Background(), "conflicts", []string{"--all"}))
		assert.True(t, adm.ConflictsCalls()[0].All)
		assert.Contains(t, tio.out.String(), "No conflicts.")
	})

	t.Run("bad flag", func(t *testing.T) {
		c := New(newTestIO(), &AdminAPIMock{}, nil, testConfig(), "", noEnv)
		assert.ErrorIs(t, c.Run(context.Background(), "conflicts", []string{"--none"}), ErrUsage)
	})
}

func TestCli_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantErr    error
		errText    string
		wantReq    api.ResolveRequest
		wantCalled bool
	}{
		{name: "missing args", args: []string{"c-1"}, wantErr: ErrUsage},
		{name: "too many args", args: []string{"c-1", "manual_merge", "{}", "x"}, wantErr: ErrUsage},
		{name: "unknown resolution", args: []string{"c-1", "whatever"}, errText: "unknown resolution"},
		{name: "merged without manual_merge", args: []string{"c-1", "local_wins", "{}"}, wantErr: ErrUsage},
		{name: "broken json", args: []string{"c-1", "manual_merge", "{oops"}, errText: "invalid merged record"},
		{
			name:       "cloud wins",
			args:       []string{"c-1", "cloud_wins"},
			wantCalled: true,
			wantReq:    api.ResolveRequest{Resolution: "cloud_wins", ResolvedBy: "operator@pos-7"},
		},
		{
			name:       "manual merge with record",
			args:       []string{"c-1", "manual_merge", `{"name":"Cola"}`},
			wantCalled: true,
			wantReq: api.ResolveRequest{
				Resolution: "manual_merge",
				ResolvedBy: "operator@pos-7",
				Merged:     map[string]any{"name": "Cola"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tio := newTestIO()
			adm := &AdminAPIMock{
				ResolveFunc: func(ctx context.Context, id string, req api.ResolveRequest) error {
					return nil
				},
			}
			c := New(tio, adm, nil, testConfig(), "", noEnv)
			err := c.Run(context.Background(), "resolve", tt.args)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				require.NoError(t, err)
			}

			if !tt.wantCalled {
				assert.Empty(t, adm.ResolveCalls())
				return
			}
			require.Len(t, adm.ResolveCalls(), 1)
			assert.Equal(t, "c-1", adm.ResolveCalls()[0].ID)
			assert.Equal(t, tt.wantReq, adm.ResolveCalls()[0].Req)
			assert.Contains(t, tio.out.String(), "resolved")
		})
	}
}

func TestCli_ResolveUsesUserID(t *testing.T) {
	cfg := testConfig()
	cfg.Terminal.UserID = "cashier-12"
	adm := &AdminAPIMock{
		ResolveFunc: func(ctx context.Context, id string, req api.ResolveRequest) error { return nil },
	}
	c := New(newTestIO(), adm, nil, cfg, "", noEnv)
	require.NoError(t, c.Run(context.Background(), "resolve", []string{"c-1", "local_wins"}))
	assert.Equal(t, "cashier-12", adm.ResolveCalls()[0].Req.ResolvedBy)
}

func TestCli_RetryAndClearFailed(t *testing.T) {
	tio := newTestIO()
	adm := &AdminAPIMock{
		RetryFailedFunc: func(ctx context.Context) (int, error) { return 2, nil },
		ClearFailedFunc: func(ctx context.Context) (int, error) { return 0, errors.New("boom") },
	}
	c := New(tio, adm, nil, testConfig(), "", noEnv)

	require.NoError(t, c.Run(context.Background(), "retry-failed", nil))
	assert.Contains(t, tio.out.String(), "2 failed item(s) returned")

	err := c.Run(context.Background(), "clear-failed", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCli_PurgeLegacy(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		answers    []string
		wantErr    bool
		wantCalled bool
		contains   string
	}{
		{name: "no table", args: nil, wantErr: true},
		{name: "two tables", args: []string{"a_old", "b_old"}, wantErr: true},
		{name: "unsafe name", args: []string{"Orders;drop"}, wantErr: true},
		{name: "confirmed", args: []string{"old_orders"}, answers: []string{"y"}, wantCalled: true, contains: "3 queued item(s)"},
		{name: "declined", args: []string{"old_orders"}, answers: []string{""}, contains: "Cancelled."},
		{name: "yes flag", args: []string{"--yes", "old_orders"}, wantCalled: true, contains: "3 queued item(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tio := newTestIO(tt.answers...)
			adm := &AdminAPIMock{
				ClearLegacyFunc: func(ctx context.Context, table string) (int, error) { return 3, nil },
			}
			c := New(tio, adm, nil, testConfig(), "", noEnv)
			err := c.Run(context.Background(), "purge-legacy", tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, adm.ClearLegacyCalls())
				return
			}
			require.NoError(t, err)
			if tt.wantCalled {
				require.Len(t, adm.ClearLegacyCalls(), 1)
				assert.Equal(t, "old_orders", adm.ClearLegacyCalls()[0].Table)
			} else {
				assert.Empty(t, adm.ClearLegacyCalls())
			}
			assert.Contains(t, tio.out.String(), tt.contains)
		})
	}
}

func TestCli_Devices(t *testing.T) {
	synced := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	tio := newTestIO()
	adm := &AdminAPIMock{
		DevicesFunc: func(ctx context.Context) ([]*models.DeviceInfo, error) {
			return []*models.DeviceInfo{
				{DeviceID: "pos-7", DeviceName: "Front", DeviceType: models.DeviceTypeTerminal, IsOnline: true, LastSeen: synced, LastSyncAt: &synced},
				{DeviceID: "kds-1", DeviceName: "Kitchen", DeviceType: models.DeviceTypeKitchen, LastSeen: synced},
			}, nil
		},
	}
	c := New(tio, adm, nil, testConfig(), "", noEnv)
	require.NoError(t, c.Run(context.Background(), "devices", nil))

	out := tio.out.String()
	assert.Contains(t, out, "DEVICE")
	assert.Contains(t, out, "pos-7")
	assert.Contains(t, out, "kds-1")
	assert.Contains(t, out, "never")
}

func TestCli_AddDevice(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  bool
		wantType string
	}{
		{name: "missing name", args: []string{"kds-1"}, wantErr: true},
		{name: "bad id", args: []string{"k", "Kitchen"}, wantErr: true},
		{name: "default type", args: []string{"pos-8", "Back"}, wantType: "terminal"},
		{name: "explicit type", args: []string{"kds-1", "Kitchen", "kitchen"}, wantType: "kitchen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tio := newTestIO()
			adm := &AdminAPIMock{
				RegisterDeviceFunc: func(ctx context.Context, req api.DeviceRequest) (*models.DeviceInfo, error) {
					return &models.DeviceInfo{DeviceID: req.DeviceID, DeviceType: models.DeviceType(req.DeviceType)}, nil
				},
			}
			c := New(tio, adm, nil, testConfig(), "", noEnv)
			err := c.Run(context.Background(), "add-device", tt.args)
			if tt.wantErr {
				require.Error(t, err)
				assert.Empty(t, adm.RegisterDeviceCalls())
				return
			}
			require.NoError(t, err)
			require.Len(t, adm.RegisterDeviceCalls(), 1)
			assert.Equal(t, tt.wantType, adm.RegisterDeviceCalls()[0].Req.DeviceType)
			assert.Contains(t, tio.out.String(), "registered")
		})
	}
}

func TestCli_RegisterAndLogin(t *testing.T) {
	const secret = "a-long-device-secret"

	t.Run("register from env", func(t *testing.T) {
		tio := newTestIO()
		creds := &CredentialsMock{
			RegisterFunc: func(ctx context.Context, deviceID, s string) (*credentials.Session, error) {
				return &credentials.Session{}, nil
			},
		}
		c := New(tio, nil, creds, testConfig(), "", envWith(map[string]string{SecretEnv: secret}))
		require.NoError(t, c.Run(context.Background(), "register", nil))

		require.Len(t, creds.RegisterCalls(), 1)
		assert.Equal(t, "pos-7", creds.RegisterCalls()[0].DeviceID)
		assert.Equal(t, secret, creds.RegisterCalls()[0].Secret)
		assert.Empty(t, tio.ReadPasswordCalls())
		assert.Contains(t, tio.out.String(), "Device pos-7 registered")
	})

	t.Run("register prompt mismatch", func(t *testing.T) {
		tio := newTestIO(secret, "something-else-entirely")
		creds := &CredentialsMock{}
		c := New(tio, nil, creds, testConfig(), "", noEnv)
		err := c.Run(context.Background(), "register", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "do not match")
		assert.Empty(t, creds.RegisterCalls())
	})

	t.Run("login from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secret")
		require.NoError(t, os.WriteFile(path, []byte(secret+"\n"), 0o600))

		tio := newTestIO()
		creds := &CredentialsMock{
			StoredDeviceIDFunc: func(ctx context.Context) (string, error) { return "pos-1", nil },
			LoginFunc: func(ctx context.Context, deviceID, s string) (*credentials.Session, error) {
				return &credentials.Session{}, nil
			},
		}
		c := New(tio, nil, creds, testConfig(), path, noEnv)
		require.NoError(t, c.Run(context.Background(), "login", nil))

		require.Len(t, creds.LoginCalls(), 1)
		assert.Equal(t, secret, creds.LoginCalls()[0].Secret)
		out := tio.out.String()
		assert.Contains(t, out, "Replacing stored credentials of device pos-1")
		assert.Contains(t, out, "Logged in as pos-7")
	})

	t.Run("login rejected", func(t *testing.T) {
		creds := &CredentialsMock{
			StoredDeviceIDFunc: func(ctx context.Context) (string, error) { return "", credentials.ErrNotFound },
			LoginFunc: func(ctx context.Context, deviceID, s string) (*credentials.Session, error) {
				return nil, errors.New("unauthorized")
			},
		}
		c := New(newTestIO(secret), nil, creds, testConfig(), "", noEnv)
		err := c.Run(context.Background(), "login", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "login failed")
	})

	t.Run("postgres remote has no credentials", func(t *testing.T) {
		c := New(newTestIO(), nil, nil, testConfig(), "", noEnv)
		assert.ErrorIs(t, c.Run(context.Background(), "login", nil), ErrNoCredentials)
	})
}

func TestCli_Logout(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		tio := newTestIO()
		creds := &CredentialsMock{
			StoredDeviceIDFunc: func(ctx context.Context) (string, error) { return "", credentials.ErrNotFound },
		}
		c := New(tio, nil, creds, testConfig(), "", noEnv)
		require.NoError(t, c.Run(context.Background(), "logout", nil))
		assert.Empty(t, creds.LogoutCalls())
		assert.Contains(t, tio.out.String(), "Not logged in.")
	})

	t.Run("removes credentials", func(t *testing.T) {
		tio := newTestIO()
		creds := &CredentialsMock{
			StoredDeviceIDFunc: func(ctx context.Context) (string, error) { return "pos-7", nil },
			LogoutFunc:         func(ctx context.Context) error { return nil },
		}
		c := New(tio, nil, creds, testConfig(), "", noEnv)
		require.NoError(t, c.Run(context.Background(), "logout", nil))
		assert.Len(t, creds.LogoutCalls(), 1)
		assert.Contains(t, tio.out.String(), "pos-7 removed")
	})
}

func TestCli_AdminToken(t *testing.T) {
	cfg := testConfig()
	tio := newTestIO()
	c := New(tio, nil, nil, cfg, "", noEnv)
	require.NoError(t, c.Run(context.Background(), "admin-token", nil))

	token := strings.TrimSpace(tio.out.String())
	claims, err := authtoken.ValidateAccessToken(JWTConfig(cfg.Admin), token)
	require.NoError(t, err)
	assert.Equal(t, authtoken.RoleAdmin, claims.Role)
	assert.Equal(t, "operator@pos-7", claims.Subject)

	cfg.Admin.JWTSecret = ""
	assert.ErrorIs(t, c.Run(context.Background(), "admin-token", nil), ErrAdminDisabled)
}

func TestReadSecret(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(file, []byte("  from-file-secret \n"), 0o600))
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))

	tests := []struct {
		name    string
		env     map[string]string
		file    string
		answers []string
		want    string
		wantErr bool
	}{
		{name: "env wins", env: map[string]string{SecretEnv: "from-env"}, file: file, want: "from-env"},
		{name: "empty env falls through", env: map[string]string{SecretEnv: ""}, file: file, want: "from-file-secret"},
		{name: "file", file: file, want: "from-file-secret"},
		{name: "empty file", file: empty, wantErr: true},
		{name: "missing file", file: filepath.Join(dir, "nope"), wantErr: true},
		{name: "prompt", answers: []string{"typed-secret"}, want: "typed-secret"},
		{name: "empty prompt", answers: []string{""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadSecret(newTestIO(tt.answers...), tt.file, envWith(tt.env))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
