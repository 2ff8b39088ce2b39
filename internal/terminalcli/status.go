package terminalcli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runStatus(ctx context.Context) error {
	adm, err := c.adminAPI()
	if err != nil {
		return err
	}

	st, err := adm.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	c.io.Println("=== Sync Status ===")
	c.io.Println()
	if st.IsOnline {
		c.io.Printf("Network: %s (cloud reachable)\n", st.NetworkMode)
	} else {
		c.io.Printf("Network: %s (cloud unreachable)\n", st.NetworkMode)
	}
	c.io.Printf("Last sync: %s\n", formatTime(st.LastSyncTime))
	c.io.Printf("Devices: %d\n", st.DeviceCount)
	c.io.Println()

	if st.PendingCount > 0 {
		c.io.Printf("⚠️  Pending sync: %d item(s) waiting to be synchronized\n", st.PendingCount)
	} else {
		c.io.Println("✓ All changes synchronized with the cloud")
	}
	if st.ConflictCount > 0 {
		c.io.Printf("⚠️  Conflicts: %d unresolved. Run 'possync-terminal conflicts' to review.\n", st.ConflictCount)
	}
	return nil
}

func (c *Cli) runStats(ctx context.Context) error {
	adm, err := c.adminAPI()
	if err != nil {
		return err
	}

	st, err := adm.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("failed to get statistics: %w", err)
	}

	c.io.Println("=== Queue Statistics ===")
	c.io.Printf("Pending:     %d\n", st.TotalPending)
	c.io.Printf("Failed:      %d\n", st.TotalFailed)
	c.io.Printf("Conflicts:   %d\n", st.TotalConflicts)
	c.io.Printf("In progress: %t\n", st.SyncInProgress)
	c.io.Printf("Last sync:   %s\n", formatTime(st.LastSyncTime))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format(time.RFC3339)
}
