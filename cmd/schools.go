package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tam-cli/internal/model"
	"github.com/sells-group/tam-cli/internal/store"
)

var schoolsCmd = &cobra.Command{
	Use:   "schools",
	Short: "Manage the school book",
}

var schoolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked schools",
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

		status, _ := cmd.Flags().GetString("status")
		search, _ := cmd.Flags().GetString("search")
		region, _ := cmd.Flags().GetString("region")
		limit, _ := cmd.Flags().GetInt("limit")
		page, _ := cmd.Flags().GetInt("page")

		regionID := ""
		if region != "" {
			regionID, err = resolveRegion(cmd, st, region)
			if err != nil {
				return err
			}
		}

		result, err := st.ListSchools(ctx, store.SchoolFilter{
			RegionID: regionID,
			Status:   model.SchoolStatus(status),
			Search:   search,
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "schools list")
		}
		if len(result.Schools) == 0 {
			fmt.Fprintln(os.Stderr, "No schools found.")
			return nil
		}

		formatSchools(os.Stdout, result.Schools)
		fmt.Printf("\nPage %d of %d (%d total)\n", result.Page, result.TotalPages, result.Total)
		return nil
	},
}

var schoolsImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Bulk import schools from CSV",
	Long:  "Imports schools from a CSV with a header row. Required columns: name, region. Optional: type, status, email, phone, contact_person, notes. Rows whose (region, name) already exists are skipped.",
	Args:  cobra.ExactArgs(1),
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

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		schools, err := parseSchoolsCSV(ctx, st, f)
		if err != nil {
			return err
		}

		result, err := st.BulkInsertSchools(ctx, schools)
		if err != nil {
			return eris.Wrap(err, "schools import")
		}

		fmt.Printf("Imported %d schools (%d skipped as duplicates)\n", result.Created, result.Skipped)
		return nil
	},
}

func init() {
	schoolsListCmd.Flags().String("status", "", "filter by funnel status (uncontacted, contacted, replied, yes, no)")
	schoolsListCmd.Flags().String("search", "", "filter by name substring")
	schoolsListCmd.Flags().String("region", "", "filter by region name")
	schoolsListCmd.Flags().Int("limit", 50, "page size")
	schoolsListCmd.Flags().Int("page", 1, "page number")

	schoolsCmd.AddCommand(schoolsListCmd)
	schoolsCmd.AddCommand(schoolsImportCmd)
	rootCmd.AddCommand(schoolsCmd)
}

// parseSchoolsCSV reads the import file and resolves region names to ids.
func parseSchoolsCSV(ctx context.Context, st store.Store, r io.Reader) ([]model.School, error) {
	regions, err := st.ListRegions(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "import: list regions")
	}
	regionByName := make(map[string]string, len(regions))
	for _, reg := range regions {
		regionByName[strings.ToLower(reg.Name)] = reg.ID
	}

	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "import: read header")
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, eris.New("import: missing required column: name")
	}
	if _, ok := col["region"]; !ok {
		return nil, eris.New("import: missing required column: region")
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var schools []model.School
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, eris.Wrapf(err, "import: line %d", line)
		}

		regionName := field(rec, "region")
		regionID, ok := regionByName[strings.ToLower(regionName)]
		if !ok {
			return nil, eris.Errorf("import: line %d: unknown region %q", line, regionName)
		}

		status := model.SchoolStatus(strings.ToLower(field(rec, "status")))
		if status != "" && !status.Valid() {
			return nil, eris.Errorf("import: line %d: invalid status %q", line, status)
		}

		schools = append(schools, model.School{
			RegionID:      regionID,
			Name:          field(rec, "name"),
			Type:          field(rec, "type"),
			Status:        status,
			Email:         field(rec, "email"),
			Phone:         field(rec, "phone"),
			ContactPerson: field(rec, "contact_person"),
			Notes:         field(rec, "notes"),
		})
	}
	return schools, nil
}

// resolveRegion maps a region name (case-insensitive) to its id.
func resolveRegion(cmd *cobra.Command, st store.Store, name string) (string, error) {
	regions, err := st.ListRegions(cmd.Context())
	if err != nil {
		return "", eris.Wrap(err, "list regions")
	}
	for _, r := range regions {
		if strings.EqualFold(r.Name, name) {
			return r.ID, nil
		}
	}
	return "", eris.Errorf("unknown region: %s", name)
}

// formatSchools writes a tabular school listing to out.
func formatSchools(out io.Writer, schools []model.School) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTATUS\tEMAIL\tPHONE\tCRM")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t-----\t---")

	for _, s := range schools {
		linked := ""
		if s.CRMContactID != "" {
			linked = "linked"
		}
		name := s.Name
		if len(name) > 32 {
			name = name[:29] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(s.ID), name, s.Status, s.Email, s.Phone, linked)
	}
	_ = w.Flush()
}
