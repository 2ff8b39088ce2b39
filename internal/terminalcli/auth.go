package terminalcli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/possync/internal/credentials"
)

func (c *Cli) runRegister(ctx context.Context) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}

	deviceID := c.cfg.Terminal.DeviceID
	c.io.Printf("Registering device %s at %s\n", deviceID, c.cfg.Remote.URL)

	secret, err := c.readSecret()
	if err != nil {
		return err
	}
	if c.promptsSecret() {
		confirm, err := c.io.ReadPassword("Confirm device secret: ")
		if err != nil {
			return fmt.Errorf("failed to read secret from stdin: %w", err)
		}
		if confirm != secret {
			return errors.New("secrets do not match")
		}
	}

	sess, err := creds.Register(ctx, deviceID, secret)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	c.io.Printf("✓ Device %s registered and logged in\n", sessionDevice(sess, deviceID))
	return nil
}

func (c *Cli) runLogin(ctx context.Context) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}

	deviceID := c.cfg.Terminal.DeviceID
	if stored, err := creds.StoredDeviceID(ctx); err == nil && stored != deviceID {
		c.io.Printf("⚠️  Replacing stored credentials of device %s\n", stored)
	}

	secret, err := c.readSecret()
	if err != nil {
		return err
	}

	sess, err := creds.Login(ctx, deviceID, secret)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	c.io.Printf("✓ Logged in as %s\n", sessionDevice(sess, deviceID))
	return nil
}

func (c *Cli) runLogout(ctx context.Context) error {
	creds, err := c.credentials()
	if err != nil {
		return err
	}

	deviceID, err := creds.StoredDeviceID(ctx)
	if errors.Is(err, credentials.ErrNotFound) {
		c.io.Println("Not logged in.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read credentials: %w", err)
	}

	if err := creds.Logout(ctx); err != nil {
		return err
	}
	c.io.Printf("✓ Credentials of device %s removed\n", deviceID)
	return nil
}

func sessionDevice(sess *credentials.Session, fallback string) string {
	if sess == nil || sess.DeviceID() == "" {
		return fallback
	}
	return sess.DeviceID()
}
