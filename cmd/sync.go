package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tam-cli/internal/model"
	"github.com/sells-group/tam-cli/internal/recon"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile schools against the CRM",
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full CRM reconciliation pass",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		crm, err := initCRM()
		if err != nil {
			return err
		}

		summary, err := recon.New(st, crm).Run(ctx)
		if err != nil {
			if eris.Is(err, recon.ErrSyncInProgress) {
				return eris.New("a sync is already in progress; wait for it to finish")
			}
			return err
		}

		fmt.Printf("Sync %s: %d contacts synced, %d errors, %d stage failures\n",
			summary.Status, summary.ContactsSynced, summary.ErrorCount, summary.StageFailures)
		return nil
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent reconciliation runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListSyncRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "sync status")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No sync runs yet.")
			return nil
		}

		linked, err := st.CountLinkedSchools(ctx)
		if err != nil {
			return eris.Wrap(err, "sync status")
		}

		formatSyncRuns(os.Stdout, runs)
		fmt.Printf("\nLinked schools: %d\n", linked)
		return nil
	},
}

func init() {
	syncStatusCmd.Flags().Int("limit", 10, "max number of runs to display")
	syncCmd.AddCommand(syncRunCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}

// formatSyncRuns writes a tabular run history to out.
func formatSyncRuns(out io.Writer, runs []model.SyncRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSYNCED\tERRORS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t------\t-------\t--------")

	for _, r := range runs {
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Status,
			r.ContactsSynced,
			len(r.Errors),
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
