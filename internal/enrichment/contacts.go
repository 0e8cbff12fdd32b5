package enrichment

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)

	waLinkRe = regexp.MustCompile(`(?:wa\.me/|whatsapp\.com/send/?\?phone=)(\+?\d+)`)

	waTextRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)whatsapp[:\s]+([+\d\s\-()]{10,20})`),
		regexp.MustCompile(`(\+54\s?9?\s?\d{2,4}\s?\d{3,4}\s?\d{3,4})`),
	}
)

// Validator checks and canonicalizes what the extractor finds.
// *normalize.Normalizer satisfies it.
type Validator interface {
	PlausibleEmail(email string) bool
	WhatsAppNumber(raw string) (string, bool)
}

// Extractor pulls contact data out of HTML.
type Extractor struct {
	v Validator
}

// NewExtractor creates an Extractor.
func NewExtractor(v Validator) *Extractor {
	return &Extractor{v: v}
}

// Emails returns the plausible addresses in the visible text and mailto
// links, lowercased and sorted.
func (x *Extractor) Emails(html string) domain.EmailList {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	found := make(map[string]bool)
	add := func(e string) {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" && x.v.PlausibleEmail(e) {
			found[e] = true
		}
	}

	// text nodes one at a time so adjacent blocks do not glue together
	doc.Find("script, style, noscript").Remove()
	doc.Find("*").Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) != "#text" {
			return
		}
		for _, m := range emailRe.FindAllString(s.Text(), -1) {
			add(m)
		}
	})
	doc.Find(`a[href^="mailto:"], a[href^="MAILTO:"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		addr := href[len("mailto:"):]
		addr, _, _ = strings.Cut(addr, "?")
		add(addr)
	})

	if len(found) == 0 {
		return nil
	}
	out := make(domain.EmailList, 0, len(found))
	for e := range found {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// WhatsApp returns the first valid number from click-to-chat links, then from
// "whatsapp: …" or "+54 9 …" text in the page. Returns "" when none.
func (x *Extractor) WhatsApp(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err == nil {
		var number string
		doc.Find(`a[href*="wa.me"], a[href*="whatsapp"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, _ := s.Attr("href")
			m := waLinkRe.FindStringSubmatch(href)
			if m == nil {
				return true
			}
			if n, ok := x.v.WhatsAppNumber(m[1]); ok {
				number = n
				return false
			}
			return true
		})
		if number != "" {
			return number
		}
	}

	for _, re := range waTextRes {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			if n, ok := x.v.WhatsAppNumber(m[1]); ok {
				return n
			}
		}
	}
	return ""
}
