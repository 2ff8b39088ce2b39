package terminalcli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/internal/validation"
	"github.com/iudanet/possync/pkg/api"
)

func (c *Cli) runDevices(ctx context.Context) error {
	adm, err := c.adminAPI()
	if err != nil {
		return err
	}

	devices, err := adm.Devices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		c.io.Println("No devices registered.")
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DEVICE\tNAME\tTYPE\tONLINE\tLAST SEEN\tLAST SYNC")
	for _, d := range devices {
		lastSync := "never"
		if d.LastSyncAt != nil {
			lastSync = d.LastSyncAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			d.DeviceID, d.DeviceName, d.DeviceType, d.IsOnline,
			d.LastSeen.Local().Format(time.DateTime), lastSync)
	}
	return tw.Flush()
}

// runAddDevice: add-device <id> <name> [type]
func (c *Cli) runAddDevice(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: add-device <id> <name> [terminal|kitchen|manager|kiosk]", ErrUsage)
	}
	if err := validation.ValidateDeviceID(args[0]); err != nil {
		return err
	}

	req := api.DeviceRequest{
		DeviceID:   args[0],
		DeviceName: args[1],
		DeviceType: string(models.DeviceTypeTerminal),
	}
	if len(args) == 3 {
		req.DeviceType = args[2]
	}

	adm, err := c.adminAPI()
	if err != nil {
		return err
	}
	d, err := adm.RegisterDevice(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	c.io.Printf("✓ Device %s (%s) registered\n", d.DeviceID, d.DeviceType)
	return nil
}
