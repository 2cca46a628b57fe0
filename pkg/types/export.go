// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// InstitutionSummary is one row of institutions.json: an institution with
// the number of papers linked to it.
type InstitutionSummary struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Lat         float64 `json:"lat" yaml:"lat"`
	Lng         float64 `json:"lng" yaml:"lng"`
	CountryCode string  `json:"country_code" yaml:"country_code"`
	PaperCount  int     `json:"paper_count" yaml:"paper_count"`
}

// DateRange is the span of publication dates in the store. Both ends are
// empty strings when the store holds no papers.
type DateRange struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// CountryCount is the number of distinct papers with at least one
// institution in a country. A paper counts once for every country it
// touches; counts are not apportioned.
type CountryCount struct {
	CountryCode string `json:"country_code" yaml:"country_code"`
	PaperCount  int    `json:"paper_count" yaml:"paper_count"`
}

// Meta is the dataset-level summary written to meta.json.
type Meta struct {
	LastUpdated       string         `json:"last_updated" yaml:"last_updated"`
	TotalPapers       int            `json:"total_papers" yaml:"total_papers"`
	TotalInstitutions int            `json:"total_institutions" yaml:"total_institutions"`
	DateRange         DateRange      `json:"date_range" yaml:"date_range"`
	PapersByCountry   []CountryCount `json:"papers_by_country" yaml:"papers_by_country"`
}
