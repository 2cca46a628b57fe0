// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve backfills institution geography for the sync pipeline.
// A Resolver consults, in order, its per-run memory cache, the store, the
// geography embedded in the works payload, and finally the OpenAlex
// single-institution endpoint. Negative outcomes are cached as well, so no
// institution is looked up twice in one run.
package resolve

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/pubmap/internal/openalex"
	"github.com/pdiddy/pubmap/pkg/types"
)

// Reason explains why an institution could not be resolved.
type Reason int

const (
	// ReasonNone marks a resolved result.
	ReasonNone Reason = iota
	// ReasonMalformed marks a reference without an identifier.
	ReasonMalformed
	// ReasonNoGeography marks an institution known to lack coordinates.
	ReasonNoGeography
	// ReasonNotFound marks an institution the API does not know.
	ReasonNotFound
	// ReasonLookupFailed marks a lookup that failed after retries
	// (network, timeout, unexpected status, undecodable body).
	ReasonLookupFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "resolved"
	case ReasonMalformed:
		return "malformed"
	case ReasonNoGeography:
		return "no-geography"
	case ReasonNotFound:
		return "not-found"
	case ReasonLookupFailed:
		return "lookup-failed"
	default:
		return "unknown"
	}
}

// Result is either a resolved institution or an unresolved marker with a
// reason. Callers branch on Resolved, never on an error.
type Result struct {
	Institution types.Institution
	Reason      Reason
}

// Resolved reports whether the institution has both coordinates.
func (r Result) Resolved() bool { return r.Reason == ReasonNone }

func resolved(inst types.Institution) Result { return Result{Institution: inst} }

func unresolved(reason Reason) Result { return Result{Reason: reason} }

// Lookup reads persisted institutions. store.Session satisfies it.
type Lookup interface {
	Institution(ctx context.Context, id string) (types.Institution, bool, error)
}

// Fetcher performs the remote single-institution lookup. openalex.Client
// satisfies it.
type Fetcher interface {
	FetchInstitution(ctx context.Context, id string) (openalex.InstitutionRecord, error)
}

// Stats counts where answers came from during one run.
type Stats struct {
	CacheHits      int
	StoreHits      int
	PayloadHits    int
	RemoteLookups  int
	RemoteFailures int
}

// Resolver resolves institutions for the lifetime of one pipeline run.
// It is not safe for concurrent use.
type Resolver struct {
	remote Fetcher
	cache  map[string]Result
	stats  Stats
}

// New returns a Resolver with an empty cache.
func New(remote Fetcher) *Resolver {
	return &Resolver{
		remote: remote,
		cache:  make(map[string]Result),
	}
}

// Stats returns the counters accumulated so far.
func (r *Resolver) Stats() Stats { return r.stats }

// Resolve returns the geography for ref. The cache is keyed by the raw
// reference ID. A store read error is returned as an error because it
// signals a broken store rather than a missing institution.
func (r *Resolver) Resolve(ctx context.Context, lookup Lookup, ref openalex.InstitutionRef) (Result, error) {
	key := ref.ID
	id := openalex.StripID(key)
	if id == "" {
		return unresolved(ReasonMalformed), nil
	}

	if res, ok := r.cache[key]; ok {
		r.stats.CacheHits++
		return res, nil
	}

	inst, ok, err := lookup.Institution(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("resolving institution %s: %w", id, err)
	}
	if ok {
		r.stats.StoreHits++
		return r.remember(key, resolved(inst)), nil
	}

	if inst, ok := ref.Institution(); ok {
		r.stats.PayloadHits++
		return r.remember(key, resolved(inst)), nil
	}

	return r.remember(key, r.fetch(ctx, id, ref)), nil
}

func (r *Resolver) fetch(ctx context.Context, id string, ref openalex.InstitutionRef) Result {
	if r.remote == nil {
		return unresolved(ReasonLookupFailed)
	}

	r.stats.RemoteLookups++
	rec, err := r.remote.FetchInstitution(ctx, id)
	switch {
	case errors.Is(err, openalex.ErrNotFound):
		return unresolved(ReasonNotFound)
	case err != nil:
		r.stats.RemoteFailures++
		log.WithField("institution", id).Debugf("Institution lookup failed: %s", err)
		return unresolved(ReasonLookupFailed)
	}

	if rec.DisplayName == "" {
		rec.DisplayName = ref.DisplayName
	}
	inst, ok := rec.Institution(id)
	if !ok {
		return unresolved(ReasonNoGeography)
	}
	return resolved(inst)
}

func (r *Resolver) remember(key string, res Result) Result {
	r.cache[key] = res
	return res
}
