package enrichment

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/lucasfdcampos/gastro-leads/internal/cache"
	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// ContactCache is the L1 cache (*cache.Client).
type ContactCache interface {
	GetContacts(ctx context.Context, key string) (*domain.Contacts, error)
	SetContacts(ctx context.Context, key string, c domain.Contacts) error
}

// ContactStore is the L2 cache (*store.MongoStore).
type ContactStore interface {
	GetContacts(ctx context.Context, key string) (*domain.Contacts, error)
	SaveContacts(ctx context.Context, key, url string, c domain.Contacts) error
}

// Options configures an Enricher.
type Options struct {
	// Workers bounds concurrent website fetches (default 1, i.e. sequential).
	Workers int
	// Delay is the pause each worker takes after every live fetch.
	Delay time.Duration
	// WhatsApp enables number extraction; with it off only emails are looked for.
	WhatsApp bool
}

// Enricher fills in record contacts from their websites.
type Enricher struct {
	page    Fetcher
	browser Fetcher
	x       *Extractor
	l1      ContactCache
	l2      ContactStore
	opts    Options
}

// New creates an Enricher. page is required; the browser fetcher and caches
// are attached with the With* methods.
func New(page Fetcher, x *Extractor, opts Options) *Enricher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Enricher{page: page, x: x, opts: opts}
}

// WithBrowser sets the fallback fetcher used for WhatsApp widgets.
func (e *Enricher) WithBrowser(b Fetcher) *Enricher {
	e.browser = b
	return e
}

// WithCache attaches the L1/L2 caches. Either may be nil.
func (e *Enricher) WithCache(l1 ContactCache, l2 ContactStore) *Enricher {
	e.l1 = l1
	e.l2 = l2
	return e
}

// ─── Batch ────────────────────────────────────────────────────────────────────

type outcome struct {
	contacts domain.Contacts
	ok       bool
}

// Enrich looks up contacts for every record with its own website, in place.
// Chains and records without a website are skipped. Results are applied
// after all workers finish so the output order never depends on timing.
// It returns the number of records that gained contact data.
func (e *Enricher) Enrich(ctx context.Context, recs []domain.BusinessRecord) int {
	results := make([]outcome, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := range recs {
		i := i
		r := recs[i]
		if r.IsChain || !r.HasOwnWebsite {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			c, live, err := e.lookup(gctx, r.URL, r.Phone == "")
			if err != nil {
				log.Debug().Str("title", r.Title).Str("url", r.URL).Err(err).Msg("enrichment failed")
			} else {
				results[i] = outcome{contacts: c, ok: true}
			}
			if live && e.opts.Delay > 0 {
				select {
				case <-gctx.Done():
				case <-time.After(e.opts.Delay):
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	enriched := 0
	for i, res := range results {
		if !res.ok || res.contacts.Empty() {
			continue
		}
		if len(res.contacts.Emails) > 0 {
			recs[i].Emails = res.contacts.Emails
		}
		if res.contacts.WhatsApp != "" {
			recs[i].WhatsApp = res.contacts.WhatsApp
		}
		enriched++
		log.Info().
			Str("title", recs[i].Title).
			Int("emails", len(res.contacts.Emails)).
			Bool("whatsapp", res.contacts.WhatsApp != "").
			Msg("contacts found")
	}
	return enriched
}

// ─── Single website ───────────────────────────────────────────────────────────

// Lookup returns the contacts of one website, consulting the caches first.
func (e *Enricher) Lookup(ctx context.Context, url string) (domain.Contacts, error) {
	c, _, err := e.lookup(ctx, url, true)
	return c, err
}

// lookup reports live=true when a network fetch was made. The browser is
// only used when wantBrowser is set and plain HTML had no number.
func (e *Enricher) lookup(ctx context.Context, url string, wantBrowser bool) (domain.Contacts, bool, error) {
	key := cache.ContactKey(url)

	// L1 – Redis
	if e.l1 != nil {
		if c, err := e.l1.GetContacts(ctx, key); err == nil && c != nil {
			return *c, false, nil
		}
	}

	// L2 – MongoDB
	if e.l2 != nil {
		if c, err := e.l2.GetContacts(ctx, key); err == nil && c != nil {
			if e.l1 != nil {
				_ = e.l1.SetContacts(ctx, key, *c)
			}
			return *c, false, nil
		}
	}

	// Live
	var c domain.Contacts
	html, err := e.page.Fetch(ctx, url)
	if err != nil && (!e.opts.WhatsApp || e.browser == nil || !wantBrowser) {
		return c, true, err
	}
	if err == nil {
		c.Emails = e.x.Emails(html)
		if e.opts.WhatsApp {
			c.WhatsApp = e.x.WhatsApp(html)
		}
	}
	if e.opts.WhatsApp && c.WhatsApp == "" && e.browser != nil && wantBrowser {
		rendered, berr := e.browser.Fetch(ctx, url)
		if berr != nil && err != nil {
			return c, true, berr
		}
		if berr == nil {
			c.WhatsApp = e.x.WhatsApp(rendered)
			if len(c.Emails) == 0 {
				c.Emails = e.x.Emails(rendered)
			}
		}
	}

	// Persist to caches
	if e.l1 != nil {
		_ = e.l1.SetContacts(ctx, key, c)
	}
	if e.l2 != nil {
		_ = e.l2.SaveContacts(ctx, key, url, c)
	}
	return c, true, nil
}
