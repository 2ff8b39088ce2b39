package terminalcli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/iudanet/possync/internal/config"
	"github.com/iudanet/possync/internal/iocli"
)

// SecretEnv переменная окружения с секретом устройства
const SecretEnv = config.EnvPrefix + "DEVICE_SECRET"

// ReadSecret returns the device secret with priority:
// 1. Environment variable POSSYNC_DEVICE_SECRET
// 2. File secretFile
// 3. Interactive prompt (fallback)
func ReadSecret(io iocli.IO, secretFile string, lookupEnv func(string) (string, bool)) (string, error) {
	if lookupEnv != nil {
		if v, ok := lookupEnv(SecretEnv); ok && v != "" {
			return v, nil
		}
	}

	if secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return "", fmt.Errorf("failed to read secret file: %w", err)
		}
		secret := strings.TrimSpace(string(content))
		if secret == "" {
			return "", errors.New("secret file is empty")
		}
		return secret, nil
	}

	secret, err := io.ReadPassword("Device secret: ")
	if err != nil {
		return "", fmt.Errorf("failed to read secret from stdin: %w", err)
	}
	if secret == "" {
		return "", errors.New("secret cannot be empty")
	}
	return secret, nil
}

func (c *Cli) readSecret() (string, error) {
	return ReadSecret(c.io, c.secretFile, c.lookupEnv)
}

// promptsSecret сообщает, что секрет будет запрошен интерактивно
func (c *Cli) promptsSecret() bool {
	if c.lookupEnv != nil {
		if v, ok := c.lookupEnv(SecretEnv); ok && v != "" {
			return false
		}
	}
	return c.secretFile == ""
}
