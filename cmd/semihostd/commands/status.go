package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/johnwbyrd/semihost/internal/cli/output"
	"github.com/johnwbyrd/semihost/internal/cli/timeutil"
	"github.com/johnwbyrd/semihost/pkg/apiclient"
)

var statusServerURL string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the handle table and recent audit entries of a running daemon",
	Long: `Query a running semihostd's admin API and render its live sessions,
their open handles, and its most recent audit entries.

Examples:
  semihostd status
  semihostd status --server http://127.0.0.1:8080`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServerURL, "server", "http://127.0.0.1:8080", "Admin API base URL")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := apiclient.New(statusServerURL)
	ctx := context.Background()

	sessions, err := client.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch sessions: %w", err)
	}

	entries, err := client.AuditEntries(ctx, 20)
	if err != nil {
		return fmt.Errorf("failed to fetch audit entries: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Sessions")
	fmt.Fprintln(out, "--------")
	sessionTable := output.NewTableData("ID", "INT SIZE", "PTR SIZE", "OPEN HANDLES")
	for _, s := range sessions {
		sessionTable.AddRow(s.ID, strconv.Itoa(s.IntSize), strconv.Itoa(s.PtrSize), strconv.Itoa(s.OpenHandles))
	}
	if err := output.PrintTable(out, sessionTable); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Recent audit entries")
	fmt.Fprintln(out, "---------------------")
	auditTable := output.NewTableData("TIME", "SESSION", "KIND", "DETAIL")
	for _, e := range entries {
		rfc3339 := time.Unix(e.Time, 0).UTC().Format(time.RFC3339)
		auditTable.AddRow(timeutil.FormatTime(rfc3339), e.SessionID, e.Kind, e.Detail)
	}
	return output.PrintTable(out, auditTable)
}
