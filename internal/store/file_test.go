package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
	"github.com/lucasfdcampos/gastro-leads/internal/normalize"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(t.TempDir(), ConsolidatedName, normalize.NewDefault())
}

func TestLoad_MissingStoreIsEmpty(t *testing.T) {
	s := newTestStore(t)

	recs, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = s.Save(context.Background(), append(recs, domain.BusinessRecord{Title: "La Cabrera", ExternalID: "a"}))
	require.NoError(t, err)

	recs, err = s.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"only bom", utf8BOM + "\n"},
		{"bad quoting", "title,external_id\n\"La Cabrera,a\n"},
		{"missing required column", "title,phone\nLa Cabrera,123\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			require.NoError(t, os.WriteFile(s.CSVPath, []byte(tt.content), 0o644))

			_, err := s.Load(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestLoad_BadCellsDegrade(t *testing.T) {
	s := newTestStore(t)
	content := utf8BOM +
		"title,external_id,rating,review_count,latitude,is_verified,emails,extracted_at,is_chain\n" +
		"Starbucks Palermo,a,9.5,-4,north,maybe,\"x@lacabrera.com.ar, y@lacabrera.com.ar\",yesterday,false\n" +
		"La Cabrera,b,4.6,2100.0,nan,True,,2025-03-01 12:00:00,true\n" +
		"Short Row\n"
	require.NoError(t, os.WriteFile(s.CSVPath, []byte(content), 0o644))

	recs, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 3)

	a := recs[0]
	assert.Nil(t, a.Rating)
	assert.Zero(t, a.ReviewCount)
	assert.Nil(t, a.Latitude)
	assert.False(t, a.IsVerified)
	assert.Equal(t, domain.EmailList{"x@lacabrera.com.ar", "y@lacabrera.com.ar"}, a.Emails)
	assert.True(t, a.ExtractedAt.IsZero())
	assert.True(t, a.IsChain, "derived flags are recomputed on load")

	b := recs[1]
	require.NotNil(t, b.Rating)
	assert.InDelta(t, 4.6, *b.Rating, 1e-9)
	assert.Equal(t, 2100, b.ReviewCount)
	assert.True(t, b.IsVerified)
	assert.False(t, b.IsChain)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), b.ExtractedAt)

	assert.Equal(t, "Short Row", recs[2].Title)
	assert.Empty(t, recs[2].ExternalID)
}

func TestSave_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	r := 4.6
	lat := -34.5889
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	in := []domain.BusinessRecord{{
		Title:         "La Cabrera, Palermo",
		Category:      "restaurant",
		Phone:         "011 4832-5754",
		Address:       "José A. Cabrera 5099",
		City:          "Buenos Aires",
		PostalCode:    "C1414",
		Country:       "AR",
		Latitude:      &lat,
		Rating:        &r,
		ReviewCount:   2100,
		URL:           "https://lacabrera.com.ar",
		Domain:        "lacabrera.com.ar",
		ExternalID:    "ChIJ-a",
		SecondaryID:   "123",
		IsVerified:    true,
		Emails:        domain.EmailList{"info@lacabrera.com.ar", "eventos@lacabrera.com.ar"},
		WhatsApp:      "+5491148325754",
		HasOwnWebsite: true,
		ExtractedAt:   at,
	}}

	_, err := s.Save(context.Background(), in)
	require.NoError(t, err)

	out, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, out)

	raw, err := os.ReadFile(s.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, utf8BOM, string(raw[:3]))

	var mirror []map[string]any
	data, err := os.ReadFile(s.JSONPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &mirror))
	require.Len(t, mirror, 1)
	assert.Equal(t, "info@lacabrera.com.ar, eventos@lacabrera.com.ar", mirror[0]["emails"])
	assert.Equal(t, "ChIJ-a", mirror[0]["external_id"])
}

func TestSave_ZeroTimeMatchesCSV(t *testing.T) {
	s := newTestStore(t)
	in := []domain.BusinessRecord{{Title: "El Preferido", ExternalID: "p4"}}

	_, err := s.Save(context.Background(), in)
	require.NoError(t, err)

	raw, err := os.ReadFile(s.CSVPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), ",p4,")
	assert.True(t, len(raw) > 0 && string(raw[len(raw)-2:]) == ",\n", "extracted_at cell is empty")

	var mirror []map[string]any
	data, err := os.ReadFile(s.JSONPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &mirror))
	require.Len(t, mirror, 1)
	assert.Equal(t, "", mirror[0]["extracted_at"])

	var back []domain.BusinessRecord
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 1)
	assert.True(t, back[0].ExtractedAt.IsZero())
	assert.Equal(t, "p4", back[0].ExternalID)
}

func TestSave_JSONMirrorKeepsExtractedAt(t *testing.T) {
	s := newTestStore(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.Save(context.Background(), []domain.BusinessRecord{{Title: "Don Julio", ExternalID: "p3", ExtractedAt: at}})
	require.NoError(t, err)

	data, err := os.ReadFile(s.JSONPath)
	require.NoError(t, err)
	var back []domain.BusinessRecord
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back, 1)
	assert.True(t, at.Equal(back[0].ExtractedAt))
}

func TestSave_EmptyWritesBothFiles(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.EmailPct())

	data, err := os.ReadFile(s.JSONPath)
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))

	recs, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Save(context.Background(), []domain.BusinessRecord{{Title: "Don Julio", ExternalID: "b"}})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(s.CSVPath))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{ConsolidatedName + ".csv", ConsolidatedName + ".json"}, names)
}

func TestSave_Stats(t *testing.T) {
	s := newTestStore(t)
	recs := []domain.BusinessRecord{
		{ExternalID: "1", Emails: domain.EmailList{"a@lacabrera.com.ar"}, WhatsApp: "+5491111111111"},
		{ExternalID: "2", Emails: domain.EmailList{"b@donjulio.com.ar"}, WhatsApp: "+5491122222222"},
		{ExternalID: "3", Emails: domain.EmailList{"c@gmail.com"}},
		{ExternalID: "4"},
		{ExternalID: "5"},
	}

	stats, err := s.Save(context.Background(), recs)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Total)
	assert.InDelta(t, 60.0, stats.EmailPct(), 1e-9)
	assert.InDelta(t, 40.0, stats.WhatsAppPct(), 1e-9)
}

func TestComputeStats_Means(t *testing.T) {
	r1, r2 := 4.0, 5.0
	stats := ComputeStats([]domain.BusinessRecord{
		{Rating: &r1, ReviewCount: 10, IsChain: true},
		{Rating: &r2, ReviewCount: 30, HasOwnWebsite: true},
		{ReviewCount: 20},
	})

	assert.Equal(t, 2, stats.Rated)
	assert.InDelta(t, 4.5, stats.MeanRating, 1e-9)
	assert.InDelta(t, 20.0, stats.MeanReviews, 1e-9)
	assert.Equal(t, 1, stats.Chains)
	assert.Equal(t, 1, stats.WithOwnWebsite)
}

func TestTopEmailDomains(t *testing.T) {
	recs := []domain.BusinessRecord{
		{Emails: domain.EmailList{"a@gmail.com", "b@lacabrera.com.ar"}},
		{Emails: domain.EmailList{"c@Gmail.com"}},
		{Emails: domain.EmailList{"d@hotmail.com"}},
	}

	got := TopEmailDomains(recs, 2)

	assert.Equal(t, []DomainCount{{"gmail.com", 2}, {"hotmail.com", 1}}, got)
}
