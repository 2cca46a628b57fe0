// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export derives the static artifacts the map frontend reads:
// institutions.json (one row per linked institution, most papers first)
// and meta.json (dataset totals, date range, and papers per country).
// It only reads from the store.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pubmap/internal/store"
	"github.com/pdiddy/pubmap/pkg/types"
)

const (
	institutionsName = "institutions"
	metaName         = "meta"
)

// DefaultDataDir is where artifacts are written unless configured otherwise.
const DefaultDataDir = "data"

// Source is the read-only view of the store the exporter needs.
// store.Store satisfies it.
type Source interface {
	InstitutionSummaries(ctx context.Context) ([]types.InstitutionSummary, error)
	CountryCounts(ctx context.Context) ([]types.CountryCount, error)
	DateRange(ctx context.Context) (types.DateRange, error)
	MaxPublicationDate(ctx context.Context) (string, error)
	Counts(ctx context.Context) (store.Counts, error)
}

// Result describes one export run.
type Result struct {
	Institutions []types.InstitutionSummary
	Meta         types.Meta
	Files        []string
}

// Exporter writes the artifacts for a store.
type Exporter struct {
	src Source
	cfg types.ExportConfig
}

// New returns an exporter reading from src. Unset config fields get defaults.
func New(src Source, cfg types.ExportConfig) *Exporter {
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = []types.ExportFormat{types.FormatJSON}
	}
	return &Exporter{src: src, cfg: cfg}
}

// Build computes both artifacts without writing anything.
func (e *Exporter) Build(ctx context.Context) (Result, error) {
	insts, err := e.src.InstitutionSummaries(ctx)
	if err != nil {
		return Result{}, err
	}
	meta, err := e.meta(ctx)
	if err != nil {
		return Result{}, err
	}
	if insts == nil {
		insts = []types.InstitutionSummary{}
	}
	return Result{Institutions: insts, Meta: meta}, nil
}

func (e *Exporter) meta(ctx context.Context) (types.Meta, error) {
	counts, err := e.src.Counts(ctx)
	if err != nil {
		return types.Meta{}, err
	}
	dr, err := e.src.DateRange(ctx)
	if err != nil {
		return types.Meta{}, err
	}
	last, err := e.src.MaxPublicationDate(ctx)
	if err != nil {
		return types.Meta{}, err
	}
	byCountry, err := e.src.CountryCounts(ctx)
	if err != nil {
		return types.Meta{}, err
	}
	if byCountry == nil {
		byCountry = []types.CountryCount{}
	}
	return types.Meta{
		LastUpdated:       last,
		TotalPapers:       counts.Papers,
		TotalInstitutions: counts.Institutions,
		DateRange:         dr,
		PapersByCountry:   byCountry,
	}, nil
}

// Run builds both artifacts and writes them in every configured format.
func (e *Exporter) Run(ctx context.Context) (Result, error) {
	res, err := e.Build(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("building export: %w", err)
	}

	if err := os.MkdirAll(e.cfg.DataDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating data directory: %w", err)
	}

	artifacts := []struct {
		name string
		v    any
	}{
		{institutionsName, res.Institutions},
		{metaName, res.Meta},
	}
	for _, format := range e.cfg.Formats {
		for _, a := range artifacts {
			path, err := e.write(a.name, format, a.v)
			if err != nil {
				return Result{}, err
			}
			res.Files = append(res.Files, path)
		}
	}
	return res, nil
}

func (e *Exporter) write(name string, format types.ExportFormat, v any) (string, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case types.FormatJSON:
		data, err = json.MarshalIndent(v, "", "  ")
	case types.FormatYAML:
		data, err = yaml.Marshal(v)
	default:
		return "", fmt.Errorf("unsupported export format %q: use json or yaml", format)
	}
	if err != nil {
		return "", fmt.Errorf("marshaling %s as %s: %w", name, format, err)
	}

	path := filepath.Join(e.cfg.DataDir, name+"."+string(format))
	if err := writeFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// writeFileAtomic writes to a temp file in the same directory and renames
// it over path, so the frontend never reads a half-written artifact.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
