package enrichment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
	"github.com/lucasfdcampos/gastro-leads/internal/normalize"
)

const homePage = `<!doctype html>
<html><head>
<script>var tracker = "pixel@sentry.io";</script>
<style>.x{background:url(logo@2x.png)}</style>
</head><body>
<header><img src="/img/logo@2x.png"></header>
<p>Reservas</p><p>Reservas@ElBodegon.com.ar</p>
<footer>
  <a href="mailto:eventos@elbodegon.com.ar?subject=Hola">Eventos</a>
  <a href="mailto:noreply@elbodegon.com.ar">x</a>
  <a href="https://wa.me/5491147724911?text=Hola">WhatsApp</a>
</footer>
</body></html>`

func extractor() *Extractor { return NewExtractor(normalize.NewDefault()) }

func TestExtractor_Emails(t *testing.T) {
	got := extractor().Emails(homePage)

	assert.Equal(t, domain.EmailList{"eventos@elbodegon.com.ar", "reservas@elbodegon.com.ar"}, got)
}

func TestExtractor_EmailsNone(t *testing.T) {
	assert.Nil(t, extractor().Emails(`<html><body><p>Sin contacto</p></body></html>`))
}

func TestExtractor_WhatsApp(t *testing.T) {
	x := extractor()

	tests := []struct {
		name string
		html string
		want string
	}{
		{"wa.me link", homePage, "+5491147724911"},
		{"api send link", `<a href="https://api.whatsapp.com/send?phone=541147724911">chat</a>`, "+5491147724911"},
		{"labelled text", `<p>WhatsApp: 11 4772-4911</p>`, "+5491147724911"},
		{"international text", `<span>Llamanos al +54 9 11 4772 4911</span>`, "+5491147724911"},
		{"too short", `<a href="https://wa.me/123">chat</a>`, ""},
		{"none", `<p>Hola</p>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, x.WhatsApp(tt.html))
		})
	}
}

func TestHTTPFetcher(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(homePage))
	})
	mux.HandleFunc("/menu.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF"))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)

	html, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, html, "ElBodegon")

	_, err = f.Fetch(context.Background(), srv.URL+"/menu.pdf")
	assert.ErrorIs(t, err, ErrNotHTML)

	_, err = f.Fetch(context.Background(), srv.URL+"/gone")
	assert.Error(t, err)
}

// ─── Enricher ─────────────────────────────────────────────────────────────────

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	html, ok := f.pages[url]
	if !ok {
		return "", errors.New("connection refused")
	}
	return html, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string]domain.Contacts
}

func newMemCache() *memCache { return &memCache{data: map[string]domain.Contacts{}} }

func (m *memCache) GetContacts(_ context.Context, key string) (*domain.Contacts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memCache) SetContacts(_ context.Context, key string, c domain.Contacts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = c
	return nil
}

func site(title, url string) domain.BusinessRecord {
	return domain.BusinessRecord{Title: title, URL: url, HasOwnWebsite: url != ""}
}

func TestEnrich(t *testing.T) {
	page := &fakeFetcher{pages: map[string]string{
		"https://elbodegon.com.ar": homePage,
		"https://donjulio.com.ar":  `<a href="mailto:info@donjulio.com.ar">mail</a>`,
		"https://starbucks.com.ar": `<a href="mailto:hola@starbucks.com.ar">mail</a>`,
		"https://sincontacto.com":  `<p>nada</p>`,
	}}
	chain := site("Starbucks", "https://starbucks.com.ar")
	chain.IsChain = true
	withPhone := site("Don Julio", "https://donjulio.com.ar")
	withPhone.Phone = "011 4831-9564"
	withPhone.WhatsApp = withPhone.Phone

	recs := []domain.BusinessRecord{
		site("El Bodegón", "https://elbodegon.com.ar"),
		chain,
		withPhone,
		site("Sin Web", ""),
		site("Caído", "https://caido.com.ar"),
		site("Sin Contacto", "https://sincontacto.com"),
	}

	e := New(page, extractor(), Options{Workers: 3, WhatsApp: true})
	n := e.Enrich(context.Background(), recs)

	assert.Equal(t, 2, n)
	assert.Equal(t, domain.EmailList{"eventos@elbodegon.com.ar", "reservas@elbodegon.com.ar"}, recs[0].Emails)
	assert.Equal(t, "+5491147724911", recs[0].WhatsApp)
	assert.Empty(t, recs[1].Emails, "chains are not fetched")
	assert.Equal(t, domain.EmailList{"info@donjulio.com.ar"}, recs[2].Emails)
	assert.Equal(t, "011 4831-9564", recs[2].WhatsApp, "phone stays the messaging number")
	assert.Empty(t, recs[3].Emails)
	assert.Empty(t, recs[4].Emails)
	assert.Empty(t, recs[5].Emails)

	assert.NotContains(t, page.calls, "https://starbucks.com.ar")
	assert.Len(t, page.calls, 4)
}

func TestEnrich_EmailsOnly(t *testing.T) {
	page := &fakeFetcher{pages: map[string]string{"https://elbodegon.com.ar": homePage}}
	recs := []domain.BusinessRecord{site("El Bodegón", "https://elbodegon.com.ar")}

	New(page, extractor(), Options{}).Enrich(context.Background(), recs)

	assert.Len(t, recs[0].Emails, 2)
	assert.Empty(t, recs[0].WhatsApp)
}

func TestEnrich_BrowserFallback(t *testing.T) {
	page := &fakeFetcher{pages: map[string]string{"https://elbodegon.com.ar": `<p>cargando…</p>`}}
	browser := &fakeFetcher{pages: map[string]string{"https://elbodegon.com.ar": `<a href="https://wa.me/5491147724911">chat</a>`}}
	recs := []domain.BusinessRecord{site("El Bodegón", "https://elbodegon.com.ar")}

	New(page, extractor(), Options{WhatsApp: true}).WithBrowser(browser).Enrich(context.Background(), recs)

	assert.Equal(t, "+5491147724911", recs[0].WhatsApp)
	assert.Len(t, browser.calls, 1)
}

func TestLookup_UsesCaches(t *testing.T) {
	page := &fakeFetcher{pages: map[string]string{"https://elbodegon.com.ar": homePage}}
	l1 := newMemCache()
	e := New(page, extractor(), Options{WhatsApp: true}).WithCache(l1, nil)

	first, err := e.Lookup(context.Background(), "https://elbodegon.com.ar")
	require.NoError(t, err)
	second, err := e.Lookup(context.Background(), "https://www.elbodegon.com.ar/")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, page.calls, 1)
}

func TestEnrich_DelayPerWorker(t *testing.T) {
	page := &fakeFetcher{pages: map[string]string{
		"https://a.com.ar": `<p>a</p>`,
		"https://b.com.ar": `<p>b</p>`,
	}}
	recs := []domain.BusinessRecord{site("A", "https://a.com.ar"), site("B", "https://b.com.ar")}

	start := time.Now()
	New(page, extractor(), Options{Workers: 1, Delay: 20 * time.Millisecond}).Enrich(context.Background(), recs)

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}
