// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openalex is a client for the two OpenAlex endpoints the sync
// pipeline consumes: the filtered, cursor-paginated works collection and
// the single-institution lookup.
package openalex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/pubmap/internal/httputil"
	"github.com/pdiddy/pubmap/pkg/types"
)

// DefaultBaseURL is the OpenAlex API root. Tests substitute an httptest server
// through OpenAlexConfig.BaseURL.
const DefaultBaseURL = "https://api.openalex.org"

const (
	doiPrefix = "https://doi.org/"
	dateFmt   = "2006-01-02"
	maxPage   = 200

	// startCursor asks the API to begin cursor pagination.
	startCursor = "*"
)

var (
	// ErrNotFound is returned by FetchInstitution when the API answers 404.
	ErrNotFound = errors.New("openalex: not found")

	// ErrInvalidFilter is returned when a works filter is incomplete.
	ErrInvalidFilter = errors.New("openalex: invalid filter")
)

// StripID reduces a URL-form entity ID such as https://openalex.org/W1 or
// https://api.openalex.org/works/W1 to its last path segment. IDs that are
// not URLs are returned trimmed.
func StripID(id string) string {
	id = strings.TrimSpace(id)
	if !strings.Contains(id, "://") {
		return id
	}
	return id[strings.LastIndex(id, "/")+1:]
}

// StripDOI removes the https://doi.org/ namespace from a DOI URL.
func StripDOI(doi string) string {
	return strings.TrimPrefix(strings.TrimSpace(doi), doiPrefix)
}

// Filter selects the works to page through.
type Filter struct {
	ConceptID string
	FromDate  string
	// ToDate may be empty for a half-open range.
	ToDate string
}

// Validate checks that the filter names a concept and a well-formed range.
func (f Filter) Validate() error {
	if strings.TrimSpace(f.ConceptID) == "" {
		return fmt.Errorf("%w: concept id is required", ErrInvalidFilter)
	}
	from, err := time.Parse(dateFmt, f.FromDate)
	if err != nil {
		return fmt.Errorf("%w: from date %q: %v", ErrInvalidFilter, f.FromDate, err)
	}
	if f.ToDate == "" {
		return nil
	}
	to, err := time.Parse(dateFmt, f.ToDate)
	if err != nil {
		return fmt.Errorf("%w: to date %q: %v", ErrInvalidFilter, f.ToDate, err)
	}
	if from.After(to) {
		return fmt.Errorf("%w: from date %s is after to date %s", ErrInvalidFilter, f.FromDate, f.ToDate)
	}
	return nil
}

func (f Filter) String() string {
	parts := []string{
		"concepts.id:" + f.ConceptID,
		"from_publication_date:" + f.FromDate,
	}
	if f.ToDate != "" {
		parts = append(parts, "to_publication_date:"+f.ToDate)
	}
	return strings.Join(parts, ",")
}

// Page is one page of the works collection.
type Page struct {
	Works []Work
	// NextCursor is empty when the collection is exhausted.
	NextCursor string
	// Count is the total number of works matching the filter.
	Count int
}

// Client talks to the OpenAlex API.
type Client struct {
	HTTP *http.Client
	cfg  types.OpenAlexConfig
}

// NewClient returns a client for cfg, filling unset fields with defaults.
// Per-request timeouts come from cfg, so httpClient should not set its own.
func NewClient(httpClient *http.Client, cfg types.OpenAlexConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PerPage <= 0 || cfg.PerPage > maxPage {
		cfg.PerPage = types.DefaultPerPage
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = types.DefaultPageTimeout
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = types.DefaultLookupTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.DefaultUserAgent
	}
	return &Client{HTTP: httpClient, cfg: cfg}
}

// FetchWorks returns one page of works matching filter. An empty cursor
// requests the first page. Any transport failure, non-200 status, or
// undecodable body is an error: a skipped page would corrupt pagination.
func (c *Client) FetchWorks(ctx context.Context, filter Filter, cursor string) (Page, error) {
	if err := filter.Validate(); err != nil {
		return Page{}, err
	}
	if cursor == "" {
		cursor = startCursor
	}

	params := url.Values{
		"filter":   {filter.String()},
		"per_page": {strconv.Itoa(c.cfg.PerPage)},
		"cursor":   {cursor},
	}
	if c.cfg.Mailto != "" {
		params.Set("mailto", c.cfg.Mailto)
	}

	var wr worksResponse
	if err := c.getJSON(ctx, c.cfg.PageTimeout, c.cfg.BaseURL+"/works?"+params.Encode(), &wr); err != nil {
		return Page{}, fmt.Errorf("fetching works page: %w", err)
	}

	var next string
	if wr.Meta.NextCursor != nil {
		next = *wr.Meta.NextCursor
	}
	return Page{Works: wr.Results, NextCursor: next, Count: wr.Meta.Count}, nil
}

// FetchInstitution looks up a single institution by ID (URL-form or
// stripped). It returns ErrNotFound when the API has no such entity.
func (c *Client) FetchInstitution(ctx context.Context, id string) (InstitutionRecord, error) {
	short := StripID(id)
	if short == "" {
		return InstitutionRecord{}, fmt.Errorf("empty institution id")
	}

	params := url.Values{}
	if c.cfg.Mailto != "" {
		params.Set("mailto", c.cfg.Mailto)
	}
	reqURL := c.cfg.BaseURL + "/institutions/" + url.PathEscape(short)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var rec InstitutionRecord
	if err := c.getJSON(ctx, c.cfg.LookupTimeout, reqURL, &rec); err != nil {
		return InstitutionRecord{}, fmt.Errorf("fetching institution %s: %w", short, err)
	}
	if rec.CountryCode == "" && rec.Geo != nil {
		rec.CountryCode = rec.Geo.CountryCode
	}
	return rec, nil
}

// getJSON applies timeout to each attempt, so retry waits do not eat into
// the request budget.
func (c *Client) getJSON(ctx context.Context, timeout time.Duration, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.cfg.MaxRetries, timeout)
	if err != nil {
		return fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("OpenAlex API returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	return nil
}
