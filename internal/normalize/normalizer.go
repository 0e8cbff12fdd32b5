// Package normalize turns noisy listing fields into comparison keys.
//
// Keys are used only for identity comparison; display fields on a record are
// never rewritten. All word lists are injected through Lists so callers (and
// tests) can swap them without touching package state.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/lucasfdcampos/gastro-leads/internal/contact"
	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

var (
	nonWordRe  = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	digitRunRe = regexp.MustCompile(`\d+`)
)

// Lists holds every configurable word list the normalizer consults.
type Lists struct {
	// StopWords are generic business-type and branch terms dropped from titles.
	StopWords []string `yaml:"stop_words"`
	// Neighborhoods are sub-neighborhood names dropped from titles so branches
	// of the same place in different barrios share a key.
	Neighborhoods []string `yaml:"neighborhoods"`
	// ChainBrands are large multi-location brands.
	ChainBrands []string `yaml:"chain_brands"`
	// ExcludedPlatforms are hosts that do not count as an own website
	// (social networks, delivery aggregators, link-in-bio services).
	ExcludedPlatforms []string `yaml:"excluded_platforms"`
}

// DefaultLists returns the lists tuned for CABA gastronomy.
func DefaultLists() Lists {
	return Lists{
		StopWords: []string{
			"sucursal", "local", "branch", "store", "tienda",
			"restaurant", "bar", "cafe", "coffee", "parrilla", "grill",
		},
		Neighborhoods: []string{
			"palermo", "belgrano", "recoleta", "san telmo",
			"puerto madero", "villa crespo", "barracas",
		},
		ChainBrands: []string{
			"starbucks", "mcdonalds",
			"cafe martinez", "café martinez", "cafemartinez",
			"havanna", "burger king",
			"bonafide", "freddo", "grido", "subway", "kentucky", "kfc", "pani",
			"la panera rosa", "mostaza", "wendys", "pizza hut", "dominos",
			"dunkin", "costa coffee", "le pain quotidien", "papa johns",
		},
		ExcludedPlatforms: []string{
			"instagram.com", "facebook.com", "twitter.com", "tiktok.com",
			"pedidosya.com", "rappi.com", "ubereats.com", "linktr.ee",
		},
	}
}

// Normalizer builds identity keys and derived flags. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	dropWordsRe *regexp.Regexp
	chains      []string
	platforms   []string
	phones      PhonePlan
	emails      *contact.Filter
}

// New builds a Normalizer from lists, a phone plan and the email filter used
// to validate email keys.
func New(l Lists, plan PhonePlan, emails *contact.Filter) *Normalizer {
	n := &Normalizer{
		phones: plan,
		emails: emails,
	}
	n.dropWordsRe = wordsRegexp(append(append([]string{}, l.StopWords...), l.Neighborhoods...))
	for _, c := range l.ChainBrands {
		if c = Fold(c); c != "" {
			n.chains = append(n.chains, c)
		}
	}
	for _, p := range l.ExcludedPlatforms {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			n.platforms = append(n.platforms, p)
		}
	}
	return n
}

// NewDefault wires DefaultLists, the AR phone plan and the default email filter.
func NewDefault() *Normalizer {
	return New(DefaultLists(), ArgentinaPlan, contact.NewFilter(contact.DefaultLists()))
}

// ─── Keys ─────────────────────────────────────────────────────────────────────

// Title returns the comparison key for a display title. Returns "" when
// nothing distinctive is left (e.g. "Bar 123").
func (n *Normalizer) Title(title string) string {
	s := stripAccents(strings.ToLower(title))
	s = nonWordRe.ReplaceAllString(s, "")
	s = digitRunRe.ReplaceAllString(s, "")
	if n.dropWordsRe != nil {
		s = n.dropWordsRe.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

// PrimaryEmail returns the lowercased first address of emails when it passes
// the contact filter, "" otherwise.
func (n *Normalizer) PrimaryEmail(emails []string) string {
	if len(emails) == 0 {
		return ""
	}
	first := strings.ToLower(strings.TrimSpace(emails[0]))
	// a single entry may still hold a joined list
	first, _, _ = strings.Cut(first, ",")
	first = strings.TrimSpace(first)
	if n.emails != nil && !n.emails.IsPlausible(first) {
		return ""
	}
	return first
}

// WhatsAppNumber canonicalizes raw with the configured phone plan.
func (n *Normalizer) WhatsAppNumber(raw string) (string, bool) {
	return n.phones.Canonical(raw)
}

// PlausibleEmail exposes the contact filter used for keys.
func (n *Normalizer) PlausibleEmail(email string) bool {
	return n.emails == nil || n.emails.IsPlausible(email)
}

// ─── Derived flags ────────────────────────────────────────────────────────────

// IsChain reports whether title+domain mention a configured chain brand,
// ignoring accents, case and whitespace.
func (n *Normalizer) IsChain(title, domain string) bool {
	text := Fold(title + " " + domain)
	compact := strings.ReplaceAll(text, " ", "")
	for _, c := range n.chains {
		if strings.Contains(text, c) {
			return true
		}
		if strings.Contains(compact, strings.ReplaceAll(c, " ", "")) {
			return true
		}
	}
	return false
}

// HasOwnWebsite reports whether url is present and not hosted on an excluded
// platform.
func (n *Normalizer) HasOwnWebsite(url, domain string) bool {
	if strings.TrimSpace(url) == "" {
		return false
	}
	text := strings.ToLower(url + " " + domain)
	for _, p := range n.platforms {
		if strings.Contains(text, p) {
			return false
		}
	}
	return true
}

// Derive recomputes the derived flags of rec in place.
func (n *Normalizer) Derive(rec *domain.BusinessRecord) {
	rec.IsChain = n.IsChain(rec.Title, rec.Domain)
	rec.HasOwnWebsite = n.HasOwnWebsite(rec.URL, rec.Domain)
}

// FromListing builds a record from a raw listing. WhatsApp defaults to the
// listing phone until enrichment finds a better number.
func (n *Normalizer) FromListing(l domain.Listing, at time.Time) domain.BusinessRecord {
	rec := domain.BusinessRecord{
		Title:       l.Title,
		Category:    l.Category,
		Phone:       l.Phone,
		Address:     l.Address,
		City:        l.AddressInfo.City,
		PostalCode:  l.AddressInfo.Zip,
		Country:     l.AddressInfo.CountryCode,
		Latitude:    l.Latitude,
		Longitude:   l.Longitude,
		Rating:      ValidRating(l.RatingValue()),
		ReviewCount: max(l.Votes(), 0),
		URL:         l.URL,
		Domain:      l.Domain,
		ExternalID:  l.PlaceID,
		SecondaryID: l.CID,
		IsVerified:  l.IsClaimed,
		WhatsApp:    l.Phone,
		ExtractedAt: at,
	}
	n.Derive(&rec)
	return rec
}

// ValidRating returns r when it lies in [0,5], nil otherwise.
func ValidRating(r *float64) *float64 {
	if r == nil || *r < 0 || *r > 5 {
		return nil
	}
	v := *r
	return &v
}

// ─── helpers ──────────────────────────────────────────────────────────────────

// Fold lowercases s, strips diacritics and collapses whitespace.
func Fold(s string) string {
	return strings.Join(strings.Fields(stripAccents(strings.ToLower(s))), " ")
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// wordsRegexp matches any of words as whole words. Multi-word entries match
// across any run of whitespace; longer entries win.
func wordsRegexp(words []string) *regexp.Regexp {
	var alts []string
	for _, w := range words {
		f := Fold(w)
		if f == "" {
			continue
		}
		parts := strings.Fields(f)
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		alts = append(alts, strings.Join(parts, `\s+`))
	}
	if len(alts) == 0 {
		return nil
	}
	sort.SliceStable(alts, func(i, j int) bool { return len(alts[i]) > len(alts[j]) })
	return regexp.MustCompile(`\b(?:` + strings.Join(alts, "|") + `)\b`)
}
