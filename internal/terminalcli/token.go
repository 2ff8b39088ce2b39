package terminalcli

import (
	"fmt"

	"github.com/iudanet/possync/internal/authtoken"
	"github.com/iudanet/possync/internal/config"
)

// Issuer издатель токенов административного API терминала
const Issuer = "possync-terminal"

// JWTConfig конфигурация подписи токенов административного API
func JWTConfig(cfg config.AdminConfig) authtoken.Config {
	return authtoken.Config{
		Issuer:         Issuer,
		Secret:         []byte(cfg.JWTSecret),
		AccessTokenTTL: cfg.TokenTTL,
	}
}

// OperatorToken выпускает токен оператора для административного API
func OperatorToken(cfg config.AdminConfig, subject string) (string, error) {
	if cfg.JWTSecret == "" {
		return "", ErrAdminDisabled
	}
	token, _, err := authtoken.GenerateAccessToken(JWTConfig(cfg), subject, "", authtoken.RoleAdmin)
	if err != nil {
		return "", fmt.Errorf("failed to generate operator token: %w", err)
	}
	return token, nil
}

func (c *Cli) runAdminToken() error {
	token, err := OperatorToken(c.cfg.Admin, c.operator())
	if err != nil {
		return err
	}
	c.io.Println(token)
	return nil
}

// Operator имя, под которым действия оператора попадают в журнал
func Operator(cfg *config.Config) string {
	if cfg.Terminal.UserID != "" {
		return cfg.Terminal.UserID
	}
	return "operator@" + cfg.Terminal.DeviceID
}

func (c *Cli) operator() string {
	return Operator(c.cfg)
}
