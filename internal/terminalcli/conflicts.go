package terminalcli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/iudanet/possync/internal/models"
	"github.com/iudanet/possync/pkg/api"
)

func (c *Cli) runConflicts(ctx context.Context, args []string) error {
	all := false
	for _, a := range args {
		if a != "--all" {
			return fmt.Errorf("%w: conflicts [--all]", ErrUsage)
		}
		all = true
	}

	adm, err := c.adminAPI()
	if err != nil {
		return err
	}

	conflicts, err := adm.Conflicts(ctx, all)
	if err != nil {
		return fmt.Errorf("failed to list conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		c.io.Println("No conflicts.")
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTABLE\tRECORD\tTYPE\tRESOLUTION\tCREATED")
	for _, cf := range conflicts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			cf.ID, cf.TableName, cf.RecordID, cf.ConflictType, cf.Resolution,
			cf.CreatedAt.Local().Format(time.DateTime))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	c.io.Println()
	c.io.Printf("Total: %d conflict(s)\n", len(conflicts))
	return nil
}

// runResolve: resolve <id> <resolution> [merged-json]
func (c *Cli) runResolve(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: resolve <id> <local_wins|cloud_wins|manual_merge> [merged-json]", ErrUsage)
	}

	id := args[0]
	resolution := models.Resolution(args[1])
	if !resolution.Valid() {
		return fmt.Errorf("unknown resolution %q, expected local_wins, cloud_wins or manual_merge", args[1])
	}

	req := api.ResolveRequest{
		Resolution: string(resolution),
		ResolvedBy: c.operator(),
	}
	if len(args) == 3 {
		if resolution != models.ResolutionManualMerge {
			return fmt.Errorf("%w: merged record is only accepted with manual_merge", ErrUsage)
		}
		if err := json.Unmarshal([]byte(args[2]), &req.Merged); err != nil {
			return fmt.Errorf("invalid merged record: %w", err)
		}
	}

	adm, err := c.adminAPI()
	if err != nil {
		return err
	}
	if err := adm.Resolve(ctx, id, req); err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	c.io.Printf("✓ Conflict %s resolved: %s\n", id, resolution)
	return nil
}
