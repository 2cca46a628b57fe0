// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package openalex

import "github.com/pdiddy/pubmap/pkg/types"

// OpenAlex API JSON structures. Nullable fields the pipeline branches on
// are pointers so a JSON null is distinguishable from a zero value.

type worksResponse struct {
	Meta    worksMeta `json:"meta"`
	Results []Work    `json:"results"`
}

type worksMeta struct {
	Count      int     `json:"count"`
	PerPage    int     `json:"per_page"`
	NextCursor *string `json:"next_cursor"`
}

// Work is a work record as returned by the works collection.
type Work struct {
	ID              string       `json:"id"`
	DisplayName     string       `json:"display_name"`
	Title           string       `json:"title"`
	DOI             string       `json:"doi"`
	PublicationDate string       `json:"publication_date"`
	Authorships     []Authorship `json:"authorships"`
}

// Authorship links one author of a work to their institutions.
type Authorship struct {
	Institutions []*InstitutionRef `json:"institutions"`
}

// Geo is the nested geography of an institution.
type Geo struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	CountryCode string   `json:"country_code"`
	City        string   `json:"city"`
}

// Complete reports whether both coordinates are present.
func (g *Geo) Complete() bool {
	return g != nil && g.Latitude != nil && g.Longitude != nil
}

// InstitutionRef is an institution as embedded in an authorship. The works
// endpoint usually omits Geo; the pipeline backfills it by lookup.
type InstitutionRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
	Geo         *Geo   `json:"geo"`
}

// InstitutionRecord is the single-entity institution response.
type InstitutionRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
	Geo         *Geo   `json:"geo"`
}

// Paper normalizes a work into the stored paper shape. The returned ID is
// empty for malformed records.
func (w Work) Paper() types.Paper {
	title := w.DisplayName
	if title == "" {
		title = w.Title
	}
	date := w.PublicationDate
	if len(date) > 10 {
		date = date[:10]
	}
	return types.Paper{
		ID:              StripID(w.ID),
		Title:           title,
		PublicationDate: date,
		DOI:             StripDOI(w.DOI),
		OpenAlexURL:     w.ID,
	}
}

// institution converts a geocoded record into the stored shape. The
// second result is false when either coordinate is missing.
func institution(id, name, country string, geo *Geo) (types.Institution, bool) {
	if !geo.Complete() {
		return types.Institution{}, false
	}
	if country == "" {
		country = geo.CountryCode
	}
	return types.Institution{
		ID:          StripID(id),
		Name:        name,
		Lat:         *geo.Latitude,
		Lng:         *geo.Longitude,
		CountryCode: country,
	}, true
}

// Institution returns the stored shape when the ref carries full geography.
func (r InstitutionRef) Institution() (types.Institution, bool) {
	return institution(r.ID, r.DisplayName, r.CountryCode, r.Geo)
}

// Institution returns the stored shape for id when the record carries full
// geography. The record's own ID is not trusted to be present.
func (r InstitutionRecord) Institution(id string) (types.Institution, bool) {
	return institution(id, r.DisplayName, r.CountryCode, r.Geo)
}
