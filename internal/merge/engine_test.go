package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
	"github.com/lucasfdcampos/gastro-leads/internal/normalize"
)

func rating(v float64) *float64 { return &v }

func rec(id, title, phone string, r *float64, reviews int) domain.BusinessRecord {
	return domain.BusinessRecord{
		ExternalID:  id,
		Title:       title,
		Phone:       phone,
		WhatsApp:    phone,
		Rating:      r,
		ReviewCount: reviews,
	}
}

func titles(recs []domain.BusinessRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Title
	}
	return out
}

func newEngine(mode Mode) *Engine {
	return New(normalize.NewDefault(), mode)
}

func TestMerge_Empty(t *testing.T) {
	out, report := newEngine(ModeSnapshot).Merge(nil, nil)

	assert.Empty(t, out)
	assert.Equal(t, domain.MergeReport{}, report)
}

func TestMerge_Idempotent(t *testing.T) {
	store := []domain.BusinessRecord{
		rec("a", "La Cabrera", "011 4832-5754", rating(4.6), 2100),
		rec("b", "Don Julio", "011 4831-9564", rating(4.8), 5400),
		rec("c", "El Preferido de Palermo", "", nil, 0),
	}
	batch := append([]domain.BusinessRecord(nil), store...)

	e := newEngine(ModeAccumulate)
	first, _ := e.Merge(nil, store)
	out, report := e.Merge(first, batch)

	assert.Equal(t, first, out)
	assert.Equal(t, 3, report.ByExternalID)
	assert.Equal(t, 3, report.Output)
}

func TestMerge_ExternalIDLastSeenWins(t *testing.T) {
	old := rec("a", "La Cabrera", "011 4832-5754", rating(4.5), 1900)
	old.Emails = domain.EmailList{"viejo@lacabrera.com.ar"}
	fresh := rec("a", "La Cabrera", "011 4832-5754", rating(4.6), 2100)

	out, report := newEngine(ModeAccumulate).Merge([]domain.BusinessRecord{old}, []domain.BusinessRecord{fresh})

	require.Len(t, out, 1)
	assert.Equal(t, fresh, out[0], "incoming record replaces the stored one wholesale")
	assert.Equal(t, 1, report.ByExternalID)
}

func TestMerge_EmptyExternalIDsPassThrough(t *testing.T) {
	batch := []domain.BusinessRecord{
		rec("", "La Cabrera", "", nil, 0),
		rec("", "Don Julio", "", nil, 0),
	}

	out, report := newEngine(ModeAccumulate).Merge(nil, batch)

	assert.Len(t, out, 2)
	assert.Zero(t, report.ByExternalID)
}

func TestMerge_ChainCollapse(t *testing.T) {
	batch := []domain.BusinessRecord{
		rec("1", "Starbucks Palermo", "1111111111", rating(4.1), 300),
		rec("2", "Starbucks Belgrano", "2222222222", rating(4.5), 120),
		rec("3", "Starbucks Recoleta", "3333333333", rating(4.5), 800),
		rec("4", "Starbucks", "4444444444", nil, 5000),
	}
	for i := range batch {
		batch[i].IsChain = true
	}

	out, report := newEngine(ModeAccumulate).Merge(nil, batch)

	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0].ExternalID)
	assert.Equal(t, 3, report.ByChain)
}

func TestMerge_ChainPassIgnoresNonChain(t *testing.T) {
	batch := []domain.BusinessRecord{
		rec("1", "La Cabrera Palermo", "1111111111", rating(4.6), 2000),
		rec("2", "La Cabrera Belgrano", "2222222222", rating(4.4), 900),
	}

	out, report := newEngine(ModeAccumulate).Merge(nil, batch)

	assert.Len(t, out, 2)
	assert.Zero(t, report.ByChain)
}

func TestMerge_NonChainIndependence(t *testing.T) {
	batch := []domain.BusinessRecord{
		rec("1", "La Cabrera", "011 4832-5754", rating(4.6), 2000),
		rec("2", "Don Julio", "011 4832-5754", rating(4.8), 5000),
	}

	out, report := newEngine(ModeAccumulate).Merge(nil, batch)

	assert.Equal(t, []string{"Don Julio", "La Cabrera"}, titles(out))
	assert.Zero(t, report.ByChain)
	assert.Zero(t, report.ByNamePhone)
}

func TestMerge_NamePhoneKeepsBestRanked(t *testing.T) {
	batch := []domain.BusinessRecord{
		rec("1", "Don Julio", "011 4831-9564", rating(4.5), 300),
		rec("2", "Don Julio Parrilla", "011 4831-9564", rating(4.8), 5000),
		rec("3", "DON JULIO", "011 4831-9564", nil, 9000),
	}

	out, report := newEngine(ModeAccumulate).Merge(nil, batch)

	require.Len(t, out, 1)
	assert.Equal(t, "2", out[0].ExternalID)
	assert.Equal(t, 2, report.ByNamePhone)
}

func TestMerge_NamePhoneSkipsMissingFields(t *testing.T) {
	batch := []domain.BusinessRecord{
		rec("1", "Don Julio", "", rating(4.5), 300),
		rec("2", "Don Julio", "", rating(4.8), 5000),
		rec("3", "Bar 24", "011 4831-9564", nil, 10),
		rec("4", "Café 7", "011 4831-9564", nil, 10),
	}

	out, report := newEngine(ModeAccumulate).Merge(nil, batch)

	assert.Len(t, out, 4)
	assert.Zero(t, report.ByNamePhone)
}

func TestMerge_StableTieBreak(t *testing.T) {
	existing := []domain.BusinessRecord{rec("1", "Don Julio", "011 4831-9564", rating(4.8), 5000)}
	batch := []domain.BusinessRecord{rec("2", "Don Julio", "011 4831-9564", rating(4.8), 5000)}

	e := newEngine(ModeAccumulate)
	for i := 0; i < 5; i++ {
		out, _ := e.Merge(existing, batch)
		require.Len(t, out, 1)
		assert.Equal(t, "1", out[0].ExternalID)
	}
}

func TestMerge_EmailPassOnlyInSnapshotMode(t *testing.T) {
	a := rec("1", "Gran Dabbang", "1111111111", rating(4.7), 900)
	a.Emails = domain.EmailList{"Hola@Dabbang.com.ar"}
	b := rec("2", "Dabbang Cocina", "2222222222", rating(4.9), 100)
	b.Emails = domain.EmailList{"hola@dabbang.com.ar", "otro@dabbang.com.ar"}
	c := rec("3", "Sin Correo", "3333333333", rating(5.0), 10)
	d := rec("4", "Correo Basura", "4444444444", rating(3.0), 10)
	d.Emails = domain.EmailList{"noreply@dabbang.com.ar"}
	batch := []domain.BusinessRecord{a, b, c, d}

	out, report := newEngine(ModeAccumulate).Merge(nil, batch)
	assert.Len(t, out, 4)
	assert.Zero(t, report.ByEmail)

	out, report = newEngine(ModeSnapshot).Merge(nil, batch)
	assert.Equal(t, []string{"Sin Correo", "Dabbang Cocina", "Correo Basura"}, titles(out))
	assert.Equal(t, 1, report.ByEmail)
	assert.Equal(t, 4, report.Input)
	assert.Equal(t, 3, report.Output)
	assert.Equal(t, 1, report.Removed())
}

func TestMerge_OutputRanked(t *testing.T) {
	batch := []domain.BusinessRecord{
		rec("1", "Sin Rating", "", nil, 9999),
		rec("2", "Pocas Reseñas", "", rating(4.5), 10),
		rec("3", "Muchas Reseñas", "", rating(4.5), 2000),
		rec("4", "Mejor", "", rating(4.9), 1),
	}

	out, _ := newEngine(ModeAccumulate).Merge(nil, batch)

	assert.Equal(t, []string{"Mejor", "Muchas Reseñas", "Pocas Reseñas", "Sin Rating"}, titles(out))
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	existing := []domain.BusinessRecord{
		rec("1", "B", "", rating(3.0), 1),
		rec("2", "A", "", rating(4.0), 1),
	}
	before := append([]domain.BusinessRecord(nil), existing...)

	newEngine(ModeAccumulate).Merge(existing, nil)

	assert.Equal(t, before, existing)
}
