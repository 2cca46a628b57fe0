// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/pubmap/internal/export"
	"github.com/pdiddy/pubmap/internal/ingest"
	"github.com/pdiddy/pubmap/internal/openalex"
	"github.com/pdiddy/pubmap/internal/store"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Load the full historical window from OpenAlex",
	Long: `Backfill pages through every robotics work published between the
historical start (sync.from_date) and the horizon (sync.to_date), stores
papers and geocoded institutions, and runs export. Existing rows are left
untouched, so backfill can be re-run safely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, ingest.ModeBackfill)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch papers published since the latest date in the store",
	Long: `Update starts from the latest publication date already stored (or the
historical start when the store is empty), stores new papers and geocoded
institutions, and runs export. Institutions missing coordinates in the works
payload are looked up individually.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd, ingest.ModeUpdate)
	},
}

func runSync(cmd *cobra.Command, mode ingest.Mode) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.OpenAlex.Mailto == "" {
		log.Warn("No OpenAlex mailto configured; set openalex.mailto or .secrets/openalex-email for the polite pool")
	}

	strategy, err := ingest.StrategyFor(mode, cfg.Sync.FromDate)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := openalex.NewClient(&http.Client{}, cfg.OpenAlex)
	pipeline := ingest.New(client, st, export.New(st, cfg.Export), cfg.OpenAlex.ConceptID, cfg.Sync, cmd.OutOrStdout())

	stats, err := pipeline.Run(ctx, strategy)
	logSyncStats(stats)
	return err
}

func logSyncStats(s ingest.Stats) {
	log.WithFields(log.Fields{
		"mode":                 s.Mode,
		"from":                 s.FromDate,
		"to":                   s.ToDate,
		"pages":                s.Pages,
		"papers":               s.Papers,
		"new-papers":           s.PapersInserted,
		"new-institutions":     s.InstitutionsInserted,
		"new-links":            s.LinksInserted,
		"skipped-malformed":    s.SkippedMalformed,
		"skipped-geo":          s.SkippedGeo,
		"institution-cache":    s.Resolver.CacheHits,
		"institution-store":    s.Resolver.StoreHits,
		"institution-payload":  s.Resolver.PayloadHits,
		"institution-lookups":  s.Resolver.RemoteLookups,
		"institution-failures": s.Resolver.RemoteFailures,
		"elapsed":              s.Elapsed.Round(100 * time.Millisecond),
	}).Info("Sync finished")
}

func init() {
	for _, c := range []*cobra.Command{backfillCmd, updateCmd} {
		c.Flags().String("mailto", "", "contact email sent to OpenAlex (overrides .secrets/openalex-email)")
		c.Flags().String("concept", "", "OpenAlex concept id to filter works by (default C18903297)")
		c.Flags().String("from", "", "historical start date, YYYY-MM-DD (default 2018-01-01)")
		c.Flags().String("to", "", "publication date horizon, YYYY-MM-DD (default 2026-01-01)")
		c.Flags().Int("checkpoint-every", 0, "papers between commits (default 1000)")
		rootCmd.AddCommand(c)
	}
	bindSyncFlags := func(c *cobra.Command) {
		bindFlag("openalex.mailto", c.Flags().Lookup("mailto"))
		bindFlag("openalex.concept_id", c.Flags().Lookup("concept"))
		bindFlag("sync.from_date", c.Flags().Lookup("from"))
		bindFlag("sync.to_date", c.Flags().Lookup("to"))
		bindFlag("sync.checkpoint_every", c.Flags().Lookup("checkpoint-every"))
	}
	// Both commands share keys; bind the one that is about to run.
	for _, c := range []*cobra.Command{backfillCmd, updateCmd} {
		c.PreRun = func(cmd *cobra.Command, args []string) { bindSyncFlags(cmd) }
	}
}
