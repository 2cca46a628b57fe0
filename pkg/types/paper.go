// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the pubmap pipeline:
// the normalized records persisted by the store, the artifacts written by
// the exporter, and the configuration of each stage.
package types

// Paper is a scholarly work as persisted in the papers table.
// A paper is written once; re-observing the same ID is a no-op.
type Paper struct {
	// ID is the OpenAlex work ID with its namespace prefix stripped (e.g. "W2741809807").
	ID string `json:"id" yaml:"id"`

	// Title is the display title. It may be empty but is never NULL.
	Title string `json:"title" yaml:"title"`

	// PublicationDate is the day-precision ISO date, or "" when the source omits it.
	PublicationDate string `json:"publication_date" yaml:"publication_date"`

	// DOI is the bare DOI without the https://doi.org/ prefix, or "".
	DOI string `json:"doi" yaml:"doi"`

	// OpenAlexURL is the canonical URL-form identifier from the API.
	OpenAlexURL string `json:"openalex_url" yaml:"openalex_url"`
}

// Institution is an organizational affiliation with known geocoordinates.
// Rows exist only when both Lat and Lng were resolved.
type Institution struct {
	// ID is the OpenAlex institution ID with its namespace prefix stripped (e.g. "I136199984").
	ID string `json:"id" yaml:"id"`

	Name string  `json:"name" yaml:"name"`
	Lat  float64 `json:"lat" yaml:"lat"`
	Lng  float64 `json:"lng" yaml:"lng"`

	// CountryCode is the ISO 3166-1 alpha-2 code, or "" when unknown.
	CountryCode string `json:"country_code" yaml:"country_code"`
}

// PaperInstitution records that at least one author of a paper is
// affiliated with an institution. At most one edge exists per pair.
type PaperInstitution struct {
	PaperID       string `json:"paper_id" yaml:"paper_id"`
	InstitutionID string `json:"institution_id" yaml:"institution_id"`
}
