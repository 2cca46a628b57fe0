// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubmap/internal/export"
	"github.com/pdiddy/pubmap/internal/openalex"
	"github.com/pdiddy/pubmap/internal/store"
	"github.com/pdiddy/pubmap/pkg/types"
)

// --- fakes ---

// fakeSource serves pages keyed by cursor. The first page has key "".
type fakeSource struct {
	pages        map[string]openalex.Page
	failAt       string
	institutions map[string]openalex.InstitutionRecord
	lookupErrs   map[string]error

	filters []openalex.Filter
	cursors []string
	lookups map[string]int
}

func newFakeSource(pages ...[]openalex.Work) *fakeSource {
	f := &fakeSource{
		pages:        map[string]openalex.Page{},
		institutions: map[string]openalex.InstitutionRecord{},
		lookupErrs:   map[string]error{},
		lookups:      map[string]int{},
	}
	for i, works := range pages {
		key := ""
		if i > 0 {
			key = fmt.Sprintf("c%d", i)
		}
		next := ""
		if i < len(pages)-1 {
			next = fmt.Sprintf("c%d", i+1)
		}
		f.pages[key] = openalex.Page{Works: works, NextCursor: next}
	}
	return f
}

func (f *fakeSource) FetchWorks(_ context.Context, filter openalex.Filter, cursor string) (openalex.Page, error) {
	f.filters = append(f.filters, filter)
	f.cursors = append(f.cursors, cursor)
	if f.failAt != "" && cursor == f.failAt {
		return openalex.Page{}, errors.New("OpenAlex API returned HTTP 500")
	}
	page, ok := f.pages[cursor]
	if !ok {
		return openalex.Page{}, fmt.Errorf("unexpected cursor %q", cursor)
	}
	return page, nil
}

func (f *fakeSource) FetchInstitution(_ context.Context, id string) (openalex.InstitutionRecord, error) {
	f.lookups[id]++
	if err, ok := f.lookupErrs[id]; ok {
		return openalex.InstitutionRecord{}, err
	}
	rec, ok := f.institutions[id]
	if !ok {
		return openalex.InstitutionRecord{}, openalex.ErrNotFound
	}
	return rec, nil
}

type countingExporter struct {
	calls int
	err   error
}

func (e *countingExporter) Run(context.Context) (export.Result, error) {
	e.calls++
	return export.Result{}, e.err
}

// --- builders ---

func ptr(f float64) *float64 { return &f }

func geoRef(id string, lat, lng float64, country string) *openalex.InstitutionRef {
	return &openalex.InstitutionRef{
		ID:          "https://openalex.org/" + id,
		DisplayName: "Institution " + id,
		CountryCode: country,
		Geo:         &openalex.Geo{Latitude: ptr(lat), Longitude: ptr(lng)},
	}
}

func bareRef(id string) *openalex.InstitutionRef {
	return &openalex.InstitutionRef{ID: "https://openalex.org/" + id, DisplayName: "Institution " + id}
}

func work(id, date string, authorships ...[]*openalex.InstitutionRef) openalex.Work {
	w := openalex.Work{
		ID:              "https://openalex.org/" + id,
		DisplayName:     "Work " + id,
		PublicationDate: date,
	}
	for _, insts := range authorships {
		w.Authorships = append(w.Authorships, openalex.Authorship{Institutions: insts})
	}
	return w
}

func refs(r ...*openalex.InstitutionRef) []*openalex.InstitutionRef { return r }

// --- harness ---

type harness struct {
	store    *store.Store
	source   *fakeSource
	exporter *countingExporter
	out      *bytes.Buffer
	pipeline *Pipeline
}

func newHarness(t *testing.T, source *fakeSource, every int) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "publications.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{store: st, source: source, exporter: &countingExporter{}, out: &bytes.Buffer{}}
	h.pipeline = New(source, st, h.exporter, "C18903297", types.SyncConfig{
		FromDate:        "2018-01-01",
		ToDate:          "2026-01-01",
		CheckpointEvery: every,
	}, h.out)
	return h
}

func (h *harness) counts(t *testing.T) store.Counts {
	t.Helper()
	c, err := h.store.Counts(context.Background())
	require.NoError(t, err)
	return c
}

var backfill = FixedStart{Date: "2018-01-01"}

// --- tests ---

func TestRunSingleWorkExample(t *testing.T) {
	src := newFakeSource([]openalex.Work{
		work("W1", "2023-05-01",
			refs(geoRef("I1", 40.0, -74.0, "US")),
			refs(geoRef("I1", 40.0, -74.0, "US")),
		),
	})
	h := newHarness(t, src, 1000)

	stats, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)

	assert.Equal(t, store.Counts{Papers: 1, Institutions: 1, Links: 1}, h.counts(t))
	assert.Equal(t, 1, stats.Papers)
	assert.Equal(t, 0, stats.SkippedGeo)
	assert.Equal(t, 1, h.exporter.calls)

	inst, ok, err := h.store.Institution(context.Background(), "I1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Institution{ID: "I1", Name: "Institution I1", Lat: 40.0, Lng: -74.0, CountryCode: "US"}, inst)
}

func TestRunEndToEndExport(t *testing.T) {
	src := newFakeSource([]openalex.Work{
		work("W1", "2023-05-01", refs(geoRef("I1", 40.0, -74.0, "US"))),
	})
	st, err := store.Open(filepath.Join(t.TempDir(), "publications.db"))
	require.NoError(t, err)
	defer st.Close()
	dir := t.TempDir()

	p := New(src, st, export.New(st, types.ExportConfig{DataDir: dir}), "C18903297", types.SyncConfig{}, nil)
	stats, err := p.Run(context.Background(), backfill)
	require.NoError(t, err)
	require.Len(t, stats.Export.Institutions, 1)
	assert.Equal(t, 1, stats.Export.Institutions[0].PaperCount)

	data, err := os.ReadFile(filepath.Join(dir, "institutions.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"I1","name":"Institution I1","lat":40,"lng":-74,"country_code":"US","paper_count":1}]`, string(data))
}

func TestRunMissingGeoFailedLookup(t *testing.T) {
	src := newFakeSource([]openalex.Work{
		work("W1", "2023-05-01", refs(bareRef("I2"))),
	})
	src.lookupErrs["I2"] = errors.New("dial tcp: connection refused")
	h := newHarness(t, src, 1000)

	stats, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)

	assert.Equal(t, store.Counts{Papers: 1}, h.counts(t))
	assert.Equal(t, 1, stats.SkippedGeo)
	assert.Equal(t, 1, stats.Resolver.RemoteFailures)
}

func TestRunGeographyGating(t *testing.T) {
	partial := bareRef("I3")
	partial.Geo = &openalex.Geo{Latitude: ptr(10)}

	src := newFakeSource([]openalex.Work{
		work("W1", "2020-01-01", refs(partial)),
		work("W2", "2020-01-02", refs(partial), refs(bareRef("I4"))),
	})
	src.institutions["I3"] = openalex.InstitutionRecord{DisplayName: "Half", Geo: &openalex.Geo{Longitude: ptr(5)}}
	h := newHarness(t, src, 1000)

	stats, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)

	assert.Equal(t, store.Counts{Papers: 2}, h.counts(t))
	assert.Equal(t, 3, stats.SkippedGeo, "one increment per occurrence")
	assert.Equal(t, 1, src.lookups["I3"], "negative outcome cached for the run")
	assert.Equal(t, 1, src.lookups["I4"])
}

func TestRunRemoteBackfillsGeography(t *testing.T) {
	src := newFakeSource([]openalex.Work{
		work("W1", "2021-06-01", refs(bareRef("I5"))),
		work("W2", "2021-06-02", refs(bareRef("I5"))),
	})
	src.institutions["I5"] = openalex.InstitutionRecord{
		DisplayName: "TU Munich",
		Geo:         &openalex.Geo{Latitude: ptr(48.1), Longitude: ptr(11.6), CountryCode: "DE"},
	}
	h := newHarness(t, src, 1000)

	stats, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)

	assert.Equal(t, store.Counts{Papers: 2, Institutions: 1, Links: 2}, h.counts(t))
	assert.Equal(t, 1, src.lookups["I5"])
	assert.Equal(t, 1, stats.Resolver.CacheHits)
}

func TestRunAssociationDedup(t *testing.T) {
	i := geoRef("I6", 1, 2, "GB")
	src := newFakeSource([]openalex.Work{
		work("W1", "2022-01-01", refs(i), refs(i), refs(i, nil)),
	})
	h := newHarness(t, src, 1000)

	stats, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)
	assert.Equal(t, store.Counts{Papers: 1, Institutions: 1, Links: 1}, h.counts(t))
	assert.Equal(t, 1, stats.LinksInserted)
}

func TestRunSkipsMalformedWorks(t *testing.T) {
	malformed := work("", "2020-01-01", refs(geoRef("I7", 1, 1, "US")))
	malformed.ID = ""
	src := newFakeSource([]openalex.Work{malformed, work("W2", "2020-01-01")})
	h := newHarness(t, src, 1000)

	stats, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedMalformed)
	assert.Equal(t, 1, stats.Papers)
	assert.Equal(t, store.Counts{Papers: 1}, h.counts(t))
}

func TestRunIsIdempotent(t *testing.T) {
	pages := [][]openalex.Work{
		{
			work("W1", "2019-01-01", refs(geoRef("I1", 1, 2, "US"), geoRef("I2", 3, 4, "FR"))),
			work("W2", "2019-02-01", refs(bareRef("I9"))),
		},
		{
			work("W3", "2019-03-01", refs(geoRef("I2", 3, 4, "FR"))),
		},
	}
	h := newHarness(t, newFakeSource(pages...), 2)

	first, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)
	after1 := h.counts(t)

	h.pipeline.source = newFakeSource(pages...)
	second, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)

	assert.Equal(t, after1, h.counts(t))
	assert.Equal(t, store.Counts{Papers: 3, Institutions: 2, Links: 3}, after1)
	assert.Equal(t, 3, first.PapersInserted)
	assert.Equal(t, 0, second.PapersInserted)
	assert.Equal(t, 0, second.InstitutionsInserted)
	assert.Equal(t, 0, second.LinksInserted)
	assert.Equal(t, 2, second.Resolver.StoreHits, "second run resolves from the store")
}

func TestRunPaginatesAndCheckpoints(t *testing.T) {
	src := newFakeSource(
		[]openalex.Work{work("W1", "2020-01-01"), work("W2", "2020-01-02")},
		[]openalex.Work{work("W3", "2020-01-03")},
		[]openalex.Work{work("W4", "2020-01-04"), work("W5", "2020-01-05")},
	)
	h := newHarness(t, src, 2)

	stats, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "c1", "c2"}, src.cursors)
	assert.Equal(t, 3, stats.Pages)
	assert.Equal(t, 5, stats.Papers)
	assert.Equal(t, 2, stats.Checkpoints)
	assert.Contains(t, h.out.String(), "Fetched 2 papers")
	assert.Contains(t, h.out.String(), "Fetched 4 papers")
	assert.Contains(t, h.out.String(), "Done. Total papers 5")
}

func TestRunPageFailureKeepsCheckpoints(t *testing.T) {
	src := newFakeSource(
		[]openalex.Work{work("W1", "2020-01-01"), work("W2", "2020-01-02"), work("W3", "2020-01-03")},
		[]openalex.Work{work("W4", "2020-01-04")},
	)
	src.failAt = "c1"
	h := newHarness(t, src, 2)

	stats, err := h.pipeline.Run(context.Background(), backfill)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page 2")

	assert.Equal(t, 3, stats.Papers)
	assert.Equal(t, 2, h.counts(t).Papers, "uncommitted interval is rolled back")
	assert.Equal(t, 0, h.exporter.calls, "export does not run after a fatal fetch")
}

func TestRunEmptyCollectionCommitsAndExports(t *testing.T) {
	h := newHarness(t, newFakeSource([]openalex.Work{}), 1000)

	stats, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 0, stats.Papers)
	assert.Equal(t, 1, h.exporter.calls)
}

func TestRunExportFailureFailsRun(t *testing.T) {
	h := newHarness(t, newFakeSource([]openalex.Work{work("W1", "2020-01-01")}), 1000)
	h.exporter.err = errors.New("read-only file system")

	_, err := h.pipeline.Run(context.Background(), backfill)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export")
	assert.Equal(t, 1, h.counts(t).Papers, "sync work is committed before export")
}

func TestRunUpdateStartsFromLatestDate(t *testing.T) {
	src := newFakeSource([]openalex.Work{work("W1", "2024-03-15"), work("W2", "2022-01-01")})
	h := newHarness(t, src, 1000)
	update := LatestInStore{Default: "2018-01-01"}

	stats, err := h.pipeline.Run(context.Background(), update)
	require.NoError(t, err)
	assert.Equal(t, ModeUpdate, stats.Mode)
	assert.Equal(t, "2018-01-01", src.filters[0].FromDate, "empty store falls back to the historical start")

	h.pipeline.source = newFakeSource([]openalex.Work{work("W1", "2024-03-15"), work("W3", "2024-03-16")})
	stats, err = h.pipeline.Run(context.Background(), update)
	require.NoError(t, err)

	f := h.pipeline.source.(*fakeSource).filters[0]
	assert.Equal(t, openalex.Filter{ConceptID: "C18903297", FromDate: "2024-03-15", ToDate: "2026-01-01"}, f)
	assert.Equal(t, 1, stats.PapersInserted, "overlapping day is absorbed by insert-if-absent")
	assert.Equal(t, 3, h.counts(t).Papers)
}

func TestRunUpdatePastHorizonStillExports(t *testing.T) {
	h := newHarness(t, newFakeSource([]openalex.Work{work("W1", "2026-03-01")}), 1000)
	_, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)

	src := newFakeSource([]openalex.Work{work("W2", "2026-04-01")})
	h.pipeline.source = src
	stats, err := h.pipeline.Run(context.Background(), LatestInStore{Default: "2018-01-01"})
	require.NoError(t, err)

	assert.Empty(t, src.cursors, "nothing to fetch beyond the horizon")
	assert.Equal(t, "2026-03-01", stats.FromDate)
	assert.Equal(t, 0, stats.Pages)
	assert.Equal(t, 2, h.exporter.calls)
	assert.Equal(t, 1, h.counts(t).Papers)
}

func TestRunStripsForeignURLIDs(t *testing.T) {
	w := work("W1", "2023-05-01", refs(geoRef("I1", 40.0, -74.0, "US")))
	w.ID = "https://api.example.org/works/W1"
	h := newHarness(t, newFakeSource([]openalex.Work{w}), 1000)

	_, err := h.pipeline.Run(context.Background(), backfill)
	require.NoError(t, err)

	date, err := h.store.MaxPublicationDate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2023-05-01", date)
	summaries, err := h.store.InstitutionSummaries(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	w2, err := h.store.Begin(context.Background())
	require.NoError(t, err)
	defer w2.Rollback()
	created, err := w2.InsertPaper(context.Background(), types.Paper{ID: "W1"})
	require.NoError(t, err)
	assert.False(t, created, "paper is stored under its stripped id")
}

func TestRunRejectsInvalidWindow(t *testing.T) {
	h := newHarness(t, newFakeSource([]openalex.Work{}), 1000)
	_, err := h.pipeline.Run(context.Background(), FixedStart{Date: "2030-01-01"})
	assert.ErrorIs(t, err, openalex.ErrInvalidFilter)
	assert.Empty(t, h.source.cursors)
}

func TestStrategyFor(t *testing.T) {
	s, err := StrategyFor(ModeBackfill, "2018-01-01")
	require.NoError(t, err)
	assert.Equal(t, FixedStart{Date: "2018-01-01"}, s)

	s, err = StrategyFor(ModeUpdate, "2018-01-01")
	require.NoError(t, err)
	assert.Equal(t, LatestInStore{Default: "2018-01-01"}, s)

	_, err = StrategyFor("sideways", "2018-01-01")
	assert.Error(t, err)
}
