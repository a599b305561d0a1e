package main

import (
	"encoding/json"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/tam-cli/internal/metrics"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show per-region saturation metrics",
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

		counts, err := st.RegionStatusCounts(ctx)
		if err != nil {
			return eris.Wrap(err, "metrics")
		}

		th := metrics.Thresholds{
			ContactedWarn:  cfg.Metrics.ContactedWarn,
			HardNoCritical: cfg.Metrics.HardNoCritical,
		}
		regions, totals := metrics.ComputeAll(counts, th)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"regions": regions, "totals": totals})
		}

		formatMetrics(os.Stdout, regions, totals)
		return nil
	},
}

func init() {
	metricsCmd.Flags().Bool("json", false, "emit JSON instead of a table")
	rootCmd.AddCommand(metricsCmd)
}

// formatMetrics writes the saturation table to out, most saturated
// region first.
func formatMetrics(out io.Writer, regions []metrics.RegionMetrics, totals metrics.Totals) {
	p := message.NewPrinter(language.English)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = p.Fprintln(w, "REGION\tTAM\tTOUCHED\tPCT\tHARD_NO\tRUNWAY\tYES\tSTILL_NEED\tHEALTH")
	_, _ = p.Fprintln(w, "------\t---\t-------\t---\t-------\t------\t---\t----------\t------")

	for _, m := range regions {
		_, _ = p.Fprintf(w, "%s\t%d\t%d\t%.1f%%\t%.1f%%\t%d\t%d\t%d\t%s\n",
			m.Name, m.TAM, m.TotalTouched, m.ContactedPct, m.HardNoRate,
			m.Runway, m.Yes, m.StillNeed, m.Health,
		)
	}

	_, _ = p.Fprintf(w, "TOTAL\t%d\t%d\t%.1f%%\t%.1f%%\t%d\t%d\t%d\t\n",
		totals.TAM, totals.TotalTouched, totals.ContactedPct, totals.HardNoRate,
		totals.Runway, totals.Yes, totals.StillNeed,
	)
	_ = w.Flush()
}
