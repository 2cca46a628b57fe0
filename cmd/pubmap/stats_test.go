// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pubmap/internal/store"
	"github.com/pdiddy/pubmap/pkg/types"
)

func TestBuildReport(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	defer st.Close()

	w, err := st.Begin(ctx)
	require.NoError(t, err)
	for _, p := range []types.Paper{
		{ID: "W1", Title: "Grasping", PublicationDate: "2021-03-04"},
		{ID: "W2", Title: "Walking", PublicationDate: "2023-09-10"},
	} {
		_, err := w.InsertPaper(ctx, p)
		require.NoError(t, err)
	}
	for _, inst := range []types.Institution{
		{ID: "I1", Name: "MIT", Lat: 42.36, Lng: -71.09, CountryCode: "US"},
		{ID: "I2", Name: "ETH Zurich", Lat: 47.38, Lng: 8.55, CountryCode: "CH"},
	} {
		_, err := w.InsertInstitution(ctx, inst)
		require.NoError(t, err)
	}
	for _, l := range [][2]string{{"W1", "I1"}, {"W2", "I1"}, {"W2", "I2"}} {
		_, err := w.LinkInstitution(ctx, types.PaperInstitution{PaperID: l[0], InstitutionID: l[1]})
		require.NoError(t, err)
	}
	require.NoError(t, w.Commit())

	report, err := buildReport(ctx, st, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Papers)
	assert.Equal(t, 2, report.Institutions)
	assert.Equal(t, 3, report.Links)
	assert.Equal(t, types.DateRange{From: "2021-03-04", To: "2023-09-10"}, report.DateRange)
	require.Len(t, report.Top, 1)
	assert.Equal(t, "I1", report.Top[0].ID)
	assert.Equal(t, 2, report.Top[0].PaperCount)
	require.Len(t, report.Countries, 1)
	assert.Equal(t, "US", report.Countries[0].CountryCode)

	var buf bytes.Buffer
	printReport(&buf, report)
	assert.Contains(t, buf.String(), "Papers:        2")
	assert.Contains(t, buf.String(), "2021-03-04 to 2023-09-10")
	assert.Contains(t, buf.String(), "MIT")
}

func TestPrintReportEmptyStore(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, storeReport{})
	assert.Contains(t, buf.String(), "Date range:    (empty)")
	assert.NotContains(t, buf.String(), "Country")
}
