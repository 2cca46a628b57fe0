// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Defaults for the robotics dataset. The concept is OpenAlex's "Robotics"
// concept; the window matches the historical backfill.
const (
	DefaultConceptID       = "C18903297"
	DefaultFromDate        = "2018-01-01"
	DefaultToDate          = "2026-01-01"
	DefaultPerPage         = 200
	DefaultCheckpointEvery = 1000
	DefaultPageTimeout     = 60 * time.Second
	DefaultLookupTimeout   = 15 * time.Second
	DefaultUserAgent       = "pubmap/0.1"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "pubmap/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on 429 and 5xx gateway responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// OpenAlexConfig holds settings for the OpenAlex client.
type OpenAlexConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the API root (default https://api.openalex.org).
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Mailto identifies the caller for the polite pool.
	Mailto string `json:"mailto" yaml:"mailto" mapstructure:"mailto"`

	// ConceptID is the concept tag every works query is filtered by.
	ConceptID string `json:"concept_id" yaml:"concept_id" mapstructure:"concept_id"`

	// PerPage is the page size for works queries (1-200, default 200).
	PerPage int `json:"per_page" yaml:"per_page" mapstructure:"per_page"`

	// PageTimeout bounds a single works page request (default 60s).
	PageTimeout time.Duration `json:"page_timeout" yaml:"page_timeout" mapstructure:"page_timeout"`

	// LookupTimeout bounds a single institution lookup (default 15s).
	LookupTimeout time.Duration `json:"lookup_timeout" yaml:"lookup_timeout" mapstructure:"lookup_timeout"`
}

// SyncConfig holds settings for the sync pipeline.
type SyncConfig struct {
	// FromDate is the historical start used by backfill, and by update
	// when the store is empty.
	FromDate string `json:"from_date" yaml:"from_date" mapstructure:"from_date"`

	// ToDate is the fixed horizon for both modes.
	ToDate string `json:"to_date" yaml:"to_date" mapstructure:"to_date"`

	// CheckpointEvery is the number of processed papers between commits (default 1000).
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every" mapstructure:"checkpoint_every"`
}

// ExportFormat selects an artifact encoding.
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatYAML ExportFormat = "yaml"
)

// ExportConfig holds settings for the aggregation/export stage.
type ExportConfig struct {
	// DataDir is where institutions.json and meta.json are written.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// Formats lists the encodings to write. JSON is what the frontend reads;
	// YAML is a mirror for inspection. Empty means JSON only.
	Formats []ExportFormat `json:"formats" yaml:"formats" mapstructure:"formats"`
}

// Config groups all stage configurations.
type Config struct {
	DBPath   string         `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
	OpenAlex OpenAlexConfig `json:"openalex" yaml:"openalex" mapstructure:"openalex"`
	Sync     SyncConfig     `json:"sync" yaml:"sync" mapstructure:"sync"`
	Export   ExportConfig   `json:"export" yaml:"export" mapstructure:"export"`
}
