// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"fmt"
)

// Mode names a pipeline entry point.
type Mode string

const (
	// ModeBackfill pages through the whole historical window.
	ModeBackfill Mode = "backfill"
	// ModeUpdate resumes from the latest publication date in the store.
	ModeUpdate Mode = "update"
)

// StartStrategy chooses the lower publication-date bound of a run. Both
// strategies start from a null cursor and share the same upper bound.
type StartStrategy interface {
	Mode() Mode
	FromDate(ctx context.Context, st Store) (string, error)
}

// FixedStart always starts at Date.
type FixedStart struct {
	Date string
}

func (FixedStart) Mode() Mode { return ModeBackfill }

func (s FixedStart) FromDate(context.Context, Store) (string, error) {
	return s.Date, nil
}

// LatestInStore starts at the latest stored publication date, or Default
// when the store has none. The latest day is re-fetched; insert-if-absent
// absorbs the overlap.
type LatestInStore struct {
	Default string
}

func (LatestInStore) Mode() Mode { return ModeUpdate }

func (s LatestInStore) FromDate(ctx context.Context, st Store) (string, error) {
	latest, err := st.MaxPublicationDate(ctx)
	if err != nil {
		return "", err
	}
	if latest == "" {
		return s.Default, nil
	}
	return latest, nil
}

// StrategyFor returns the strategy for mode, using historicalStart as the
// fixed start date and as the empty-store default.
func StrategyFor(mode Mode, historicalStart string) (StartStrategy, error) {
	switch mode {
	case ModeBackfill:
		return FixedStart{Date: historicalStart}, nil
	case ModeUpdate:
		return LatestInStore{Default: historicalStart}, nil
	default:
		return nil, fmt.Errorf("unknown sync mode %q: use backfill or update", mode)
	}
}
