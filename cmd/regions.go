package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tam-cli/internal/model"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Manage regions and their TAM estimates",
}

var regionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List regions",
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

		regions, err := st.ListRegions(ctx)
		if err != nil {
			return eris.Wrap(err, "regions list")
		}
		if len(regions) == 0 {
			fmt.Fprintln(os.Stderr, "No regions. Run `tam-cli seed` first.")
			return nil
		}

		formatRegions(os.Stdout, regions)
		return nil
	},
}

var regionsSetTAMCmd = &cobra.Command{
	Use:   "set-tam <region-name> <tam>",
	Short: "Set a region's total addressable market",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		tam, err := strconv.Atoi(args[1])
		if err != nil || tam < 0 {
			return eris.Errorf("tam must be a non-negative integer, got %q", args[1])
		}

		regionID, err := resolveRegion(cmd, st, args[0])
		if err != nil {
			return err
		}
		if err := st.UpdateRegionTAM(ctx, regionID, tam); err != nil {
			return eris.Wrap(err, "regions set-tam")
		}

		fmt.Printf("Set TAM for %s to %d\n", args[0], tam)
		return nil
	},
}

func init() {
	regionsCmd.AddCommand(regionsListCmd)
	regionsCmd.AddCommand(regionsSetTAMCmd)
	rootCmd.AddCommand(regionsCmd)
}

// formatRegions writes a tabular region listing to out.
func formatRegions(out io.Writer, regions []model.Region) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tTAM")
	_, _ = fmt.Fprintln(w, "--\t----\t---")
	for _, r := range regions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", truncateID(r.ID), r.Name, r.TAM)
	}
	_ = w.Flush()
}
