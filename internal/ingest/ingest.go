// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest is the sync pipeline: it pages through the OpenAlex works
// collection for one concept and date window, normalizes each work into the
// store, backfills institution geography through a resolver, commits at
// fixed intervals, and runs the export once the collection is exhausted.
//
// Every write is insert-if-absent, so a run can be repeated or resumed
// after a crash without changing rows that already exist.
package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/pubmap/internal/export"
	"github.com/pdiddy/pubmap/internal/openalex"
	"github.com/pdiddy/pubmap/internal/resolve"
	"github.com/pdiddy/pubmap/internal/store"
	"github.com/pdiddy/pubmap/pkg/types"
)

// Source is the remote collection. openalex.Client satisfies it.
type Source interface {
	FetchWorks(ctx context.Context, filter openalex.Filter, cursor string) (openalex.Page, error)
	resolve.Fetcher
}

// Store is the normalized store. store.Store satisfies it.
type Store interface {
	Begin(ctx context.Context) (*store.Session, error)
	MaxPublicationDate(ctx context.Context) (string, error)
}

// Exporter writes the derived artifacts. export.Exporter satisfies it.
type Exporter interface {
	Run(ctx context.Context) (export.Result, error)
}

// Stats are the counters of one run.
type Stats struct {
	Mode     Mode
	FromDate string
	ToDate   string

	Pages int
	// Papers counts works with a usable ID, whether new or already stored.
	Papers               int
	PapersInserted       int
	InstitutionsInserted int
	LinksInserted        int
	// SkippedMalformed counts works without an ID.
	SkippedMalformed int
	// SkippedGeo counts institution occurrences that could not be geocoded.
	SkippedGeo  int
	Checkpoints int

	Resolver resolve.Stats
	Export   export.Result
	Elapsed  time.Duration
}

// Pipeline wires a source, a store, and an exporter.
type Pipeline struct {
	source    Source
	store     Store
	exporter  Exporter
	conceptID string
	cfg       types.SyncConfig
	out       io.Writer
}

// New returns a pipeline. Progress lines are written to out.
func New(source Source, st Store, exporter Exporter, conceptID string, cfg types.SyncConfig, out io.Writer) *Pipeline {
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = types.DefaultCheckpointEvery
	}
	if cfg.ToDate == "" {
		cfg.ToDate = types.DefaultToDate
	}
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{
		source:    source,
		store:     st,
		exporter:  exporter,
		conceptID: conceptID,
		cfg:       cfg,
		out:       out,
	}
}

// run holds the state scoped to a single Run call.
type run struct {
	resolver *resolve.Resolver
	session  *store.Session
	stats    Stats
	start    time.Time
}

// Run synchronizes the store with the remote collection starting where
// start says, then runs the exporter once. A page fetch, store, or export
// failure aborts the run; work committed at earlier checkpoints survives.
//
// An update whose stored data already reaches past the horizon has nothing
// to fetch; it skips the sync and still exports.
func (p *Pipeline) Run(ctx context.Context, start StartStrategy) (Stats, error) {
	from, err := start.FromDate(ctx, p.store)
	if err != nil {
		return Stats{}, fmt.Errorf("determining start date: %w", err)
	}
	filter := openalex.Filter{ConceptID: p.conceptID, FromDate: from, ToDate: p.cfg.ToDate}
	pastHorizon := start.Mode() == ModeUpdate && from > p.cfg.ToDate
	if !pastHorizon {
		if err := filter.Validate(); err != nil {
			return Stats{}, err
		}
	}

	r := &run{
		resolver: resolve.New(p.source),
		start:    time.Now(),
		stats:    Stats{Mode: start.Mode(), FromDate: from, ToDate: p.cfg.ToDate},
	}
	logger := log.WithField("mode", r.stats.Mode).WithField("from", from).WithField("to", p.cfg.ToDate)

	if pastHorizon {
		logger.Info("Store is already past the horizon, nothing to fetch")
	} else {
		logger.Info("Sync starting")
		if err := p.sync(ctx, r, filter, logger); err != nil {
			return r.finish(), err
		}
	}

	stats := r.finish()
	fmt.Fprintf(p.out, "Done. Total papers %d, skipped geo %d, elapsed %.1fs\n",
		stats.Papers, stats.SkippedGeo, stats.Elapsed.Seconds())

	res, err := p.exporter.Run(ctx)
	if err != nil {
		return stats, fmt.Errorf("export: %w", err)
	}
	stats.Export = res
	fmt.Fprintf(p.out, "Exported %d institutions to %v\n", len(res.Institutions), res.Files)
	return stats, nil
}

// sync pages through the collection inside one write session, committing
// at every checkpoint and once at the end.
func (p *Pipeline) sync(ctx context.Context, r *run, filter openalex.Filter, logger *log.Entry) error {
	session, err := p.store.Begin(ctx)
	if err != nil {
		return err
	}
	r.session = session
	defer session.Rollback()

	cursor := ""
	for {
		page, err := p.source.FetchWorks(ctx, filter, cursor)
		if err != nil {
			return fmt.Errorf("page %d: %w", r.stats.Pages+1, err)
		}
		if r.stats.Pages == 0 {
			logger.WithField("total", page.Count).Info("Works matching filter")
		}
		r.stats.Pages++

		for _, work := range page.Works {
			ok, err := p.ingestWork(ctx, r, work)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			r.stats.Papers++
			if r.stats.Papers%p.cfg.CheckpointEvery == 0 {
				if err := p.checkpoint(ctx, r); err != nil {
					return err
				}
			}
		}

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return session.Commit()
}

func (p *Pipeline) checkpoint(ctx context.Context, r *run) error {
	if err := r.session.Checkpoint(ctx); err != nil {
		return fmt.Errorf("checkpoint after %d papers: %w", r.stats.Papers, err)
	}
	r.stats.Checkpoints++
	elapsed := time.Since(r.start)
	log.WithFields(log.Fields{
		"papers":       r.stats.Papers,
		"new-papers":   r.stats.PapersInserted,
		"skipped-geo":  r.stats.SkippedGeo,
		"institutions": r.stats.InstitutionsInserted,
		"elapsed":      elapsed.Round(100 * time.Millisecond),
	}).Info("Checkpoint committed")
	fmt.Fprintf(p.out, "Fetched %d papers, skipped (no geo) %d, elapsed %.1fs\n",
		r.stats.Papers, r.stats.SkippedGeo, elapsed.Seconds())
	return nil
}

// ingestWork stores one work and its institution links. It reports false
// for malformed works, which are counted and skipped.
func (p *Pipeline) ingestWork(ctx context.Context, r *run, work openalex.Work) (bool, error) {
	paper := work.Paper()
	if paper.ID == "" {
		r.stats.SkippedMalformed++
		log.WithField("title", paper.Title).Debug("Skipping work without id")
		return false, nil
	}

	created, err := r.session.InsertPaper(ctx, paper)
	if err != nil {
		return false, err
	}
	if created {
		r.stats.PapersInserted++
	}

	linked := make(map[string]bool)
	for _, authorship := range work.Authorships {
		for _, ref := range authorship.Institutions {
			if ref == nil {
				continue
			}
			res, err := r.resolver.Resolve(ctx, r.session, *ref)
			if err != nil {
				return false, err
			}
			switch {
			case res.Reason == resolve.ReasonMalformed:
				continue
			case !res.Resolved():
				r.stats.SkippedGeo++
				log.WithField("paper", paper.ID).WithField("institution", ref.ID).
					Debugf("Skipping institution: %s", res.Reason)
				continue
			}

			inst := res.Institution
			created, err := r.session.InsertInstitution(ctx, inst)
			if err != nil {
				return false, err
			}
			if created {
				r.stats.InstitutionsInserted++
			}

			if linked[inst.ID] {
				continue
			}
			linked[inst.ID] = true
			created, err = r.session.LinkInstitution(ctx, types.PaperInstitution{PaperID: paper.ID, InstitutionID: inst.ID})
			if err != nil {
				return false, err
			}
			if created {
				r.stats.LinksInserted++
			}
		}
	}
	return true, nil
}

func (r *run) finish() Stats {
	r.stats.Resolver = r.resolver.Stats()
	r.stats.Elapsed = time.Since(r.start)
	return r.stats
}
