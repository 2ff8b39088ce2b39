package terminalcli

import (
	"context"
	"fmt"
	"strings"

	"github.com/iudanet/possync/internal/validation"
)

func (c *Cli) runSync(ctx context.Context) error {
	adm, err := c.adminAPI()
	if err != nil {
		return err
	}

	c.io.Println("Starting synchronization...")
	res, err := adm.ForceSync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if res.InProgress {
		c.io.Println("A sync pass is already running, try again later.")
		return nil
	}

	c.io.Println("✓ Synchronization completed")
	c.io.Printf("  Processed:  %d\n", res.Processed)
	c.io.Printf("  Successful: %d\n", res.Successful)
	c.io.Printf("  Failed:     %d\n", res.Failed)
	if res.Conflicts > 0 {
		c.io.Printf("⚠️  Conflicts: %d. Run 'possync-terminal conflicts' to review.\n", res.Conflicts)
	}
	return nil
}

func (c *Cli) runRetryFailed(ctx context.Context) error {
	adm, err := c.adminAPI()
	if err != nil {
		return err
	}
	n, err := adm.RetryFailed(ctx)
	if err != nil {
		return fmt.Errorf("failed to retry items: %w", err)
	}
	c.io.Printf("✓ %d failed item(s) returned to the queue\n", n)
	return nil
}

func (c *Cli) runClearFailed(ctx context.Context) error {
	adm, err := c.adminAPI()
	if err != nil {
		return err
	}
	n, err := adm.ClearFailed(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear items: %w", err)
	}
	c.io.Printf("✓ %d failed item(s) deleted\n", n)
	return nil
}

// runPurgeLegacy удаляет из очереди элементы таблицы, которой больше нет
// в схеме. Без --yes спрашивает подтверждение.
func (c *Cli) runPurgeLegacy(ctx context.Context, args []string) error {
	var table string
	confirmed := false
	for _, a := range args {
		switch a {
		case "--yes", "-y":
			confirmed = true
		default:
			if table != "" {
				return fmt.Errorf("%w: purge-legacy <table> [--yes]", ErrUsage)
			}
			table = a
		}
	}
	if table == "" {
		return fmt.Errorf("%w: purge-legacy <table> [--yes]", ErrUsage)
	}
	if err := validation.ValidateTableName(table); err != nil {
		return err
	}

	adm, err := c.adminAPI()
	if err != nil {
		return err
	}

	if !confirmed {
		answer, err := c.io.ReadInput(fmt.Sprintf("Delete all queued items of table %q? [y/N]: ", table))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			c.io.Println("Cancelled.")
			return nil
		}
	}

	n, err := adm.ClearLegacy(ctx, table)
	if err != nil {
		return fmt.Errorf("failed to purge legacy items: %w", err)
	}
	c.io.Printf("✓ %d queued item(s) of table %s deleted\n", n, table)
	return nil
}
