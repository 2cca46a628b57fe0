// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubmap/internal/store"
	"github.com/pdiddy/pubmap/pkg/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what the local store contains",
	Long: `Stats prints row counts, the publication date range, and the institutions
and countries with the most papers. It reads the store only.`,
	RunE: runStats,
}

// storeReport is the snapshot printed by stats.
type storeReport struct {
	Papers       int                        `yaml:"papers"`
	Institutions int                        `yaml:"institutions"`
	Links        int                        `yaml:"links"`
	DateRange    types.DateRange            `yaml:"date_range"`
	Top          []types.InstitutionSummary `yaml:"top_institutions"`
	Countries    []types.CountryCount       `yaml:"top_countries"`
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	top, _ := cmd.Flags().GetInt("top")
	report, err := buildReport(cmd.Context(), st, top)
	if err != nil {
		return err
	}

	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(report)
	}
	printReport(cmd.OutOrStdout(), report)
	return nil
}

func buildReport(ctx context.Context, st *store.Store, top int) (storeReport, error) {
	counts, err := st.Counts(ctx)
	if err != nil {
		return storeReport{}, err
	}
	dr, err := st.DateRange(ctx)
	if err != nil {
		return storeReport{}, err
	}
	insts, err := st.InstitutionSummaries(ctx)
	if err != nil {
		return storeReport{}, err
	}
	countries, err := st.CountryCounts(ctx)
	if err != nil {
		return storeReport{}, err
	}
	return storeReport{
		Papers:       counts.Papers,
		Institutions: counts.Institutions,
		Links:        counts.Links,
		DateRange:    dr,
		Top:          head(insts, top),
		Countries:    head(countries, top),
	}, nil
}

func head[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}

func printReport(w io.Writer, r storeReport) {
	fmt.Fprintf(w, "Papers:        %d\n", r.Papers)
	fmt.Fprintf(w, "Institutions:  %d\n", r.Institutions)
	fmt.Fprintf(w, "Associations:  %d\n", r.Links)
	if r.DateRange.From == "" {
		fmt.Fprintln(w, "Date range:    (empty)")
	} else {
		fmt.Fprintf(w, "Date range:    %s to %s\n", r.DateRange.From, r.DateRange.To)
	}

	if len(r.Top) > 0 {
		fmt.Fprintf(w, "\n%-12s  %-50s  %-7s  %s\n", "ID", "Institution", "Country", "Papers")
		fmt.Fprintln(w, strings.Repeat("-", 82))
		for _, inst := range r.Top {
			name := inst.Name
			if len(name) > 50 {
				name = name[:47] + "..."
			}
			fmt.Fprintf(w, "%-12s  %-50s  %-7s  %d\n", inst.ID, name, inst.CountryCode, inst.PaperCount)
		}
	}

	if len(r.Countries) > 0 {
		fmt.Fprintf(w, "\n%-7s  %s\n", "Country", "Papers")
		fmt.Fprintln(w, strings.Repeat("-", 16))
		for _, c := range r.Countries {
			fmt.Fprintf(w, "%-7s  %d\n", c.CountryCode, c.PaperCount)
		}
	}
}

func init() {
	statsCmd.Flags().Int("top", 10, "number of institutions and countries to list")
	statsCmd.Flags().Bool("yaml", false, "print the report as YAML")
	rootCmd.AddCommand(statsCmd)
}
