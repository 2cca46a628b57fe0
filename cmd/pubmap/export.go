// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/pubmap/internal/export"
	"github.com/pdiddy/pubmap/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Regenerate institutions.json and meta.json from the store",
	Long: `Export aggregates the stored papers into per-institution summaries and
dataset metadata and rewrites the artifacts in the data directory. It does
not contact OpenAlex. Backfill and update run it automatically.`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := export.New(st, cfg.Export).Run(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exported %d institutions, %d papers\n", len(res.Institutions), res.Meta.TotalPapers)
	for _, f := range res.Files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	return nil
}

func init() {
	exportCmd.Flags().StringSlice("format", nil, "artifact formats to write: json, yaml (default json)")
	exportCmd.PreRun = func(cmd *cobra.Command, args []string) {
		bindFlag("export.formats", cmd.Flags().Lookup("format"))
	}
	rootCmd.AddCommand(exportCmd)
}
