// Package outreach turns raw listings of one neighborhood into WhatsApp
// message drafts and a tracking sheet for manual follow-up.
package outreach

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
)

// Criteria selects which businesses get a draft.
type Criteria struct {
	// Neighborhood names the output file (mensajes_<neighborhood>_…).
	Neighborhood string
	// Keywords are matched case-insensitively against the address and zip.
	Keywords []string
	// Borough is matched against address_info.borough.
	Borough string

	MinRating   float64
	MaxRating   float64
	MinReviews  int
	MinTopics   int
	MinMentions int
}

// PalermoCriteria returns the Palermo (CABA) campaign settings. Places above
// 4.85 are left out: they have little room to improve.
func PalermoCriteria() Criteria {
	return Criteria{
		Neighborhood: "palermo",
		Keywords:     []string{"palermo", "soho", "hollywood", "viejo", "c1414", "c1425", "c1426", "c1427", "c1428"},
		Borough:      "Palermo",
		MinRating:    4.0,
		MaxRating:    4.85,
		MinReviews:   100,
		MinTopics:    3,
		MinMentions:  10,
	}
}

// Batch is a group of listings of one kind (restaurantes, bares, …).
type Batch struct {
	Kind     string
	Listings []domain.Listing
}

// Topic is a place topic with its mention count.
type Topic struct {
	Name     string
	Mentions int
}

func (t Topic) String() string { return fmt.Sprintf("%s (%d)", t.Name, t.Mentions) }

// Draft is one ready-to-send message plus the numbers behind it.
type Draft struct {
	Name            string
	Kind            string
	Phone           string
	Rating          float64
	Reviews         int
	FourStar        int
	PotentialRating float64
	Impact          int
	Topics          []Topic
	Message         string
	URL             string
	PlaceID         string
	Address         string
}

// Phones canonicalizes numbers for WhatsApp. *normalize.Normalizer satisfies it.
type Phones interface {
	WhatsAppNumber(raw string) (string, bool)
}

// Generator builds drafts for one campaign.
type Generator struct {
	c      Criteria
	phones Phones
	tmpl   *template.Template
	p      *message.Printer
}

// NewGenerator creates a Generator.
func NewGenerator(c Criteria, phones Phones) *Generator {
	p := message.NewPrinter(language.English)
	funcs := template.FuncMap{
		"num": func(n int) string { return p.Sprintf("%d", n) },
	}
	return &Generator{
		c:      c,
		phones: phones,
		tmpl:   template.Must(template.New("draft").Funcs(funcs).Parse(draftTemplate)),
		p:      p,
	}
}

type candidate struct {
	kind string
	l    domain.Listing
}

// Generate filters the batches, drops repeated names keeping the most
// reviewed one and renders a draft per remaining business with a valid
// phone. Drafts come out ordered by review count, highest first.
func (g *Generator) Generate(batches []Batch) []Draft {
	var cands []candidate
	for _, b := range batches {
		kept := 0
		for _, l := range b.Listings {
			if g.eligible(l) {
				cands = append(cands, candidate{kind: b.Kind, l: l})
				kept++
			}
		}
		log.Info().Str("kind", b.Kind).Int("listings", len(b.Listings)).Int("eligible", kept).Msg("outreach filter")
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].l.Votes() > cands[j].l.Votes() })

	seen := make(map[string]bool)
	var drafts []Draft
	for _, c := range cands {
		name := strings.ToLower(strings.TrimSpace(c.l.Title))
		if seen[name] {
			log.Debug().Str("title", c.l.Title).Int("reviews", c.l.Votes()).Msg("duplicate name skipped")
			continue
		}
		seen[name] = true

		phone, ok := g.phones.WhatsAppNumber(c.l.Phone)
		if !ok {
			log.Debug().Str("title", c.l.Title).Msg("no valid phone, skipped")
			continue
		}
		d, err := g.draft(c, phone)
		if err != nil {
			log.Warn().Str("title", c.l.Title).Err(err).Msg("draft render failed")
			continue
		}
		drafts = append(drafts, d)
	}
	return drafts
}

func (g *Generator) eligible(l domain.Listing) bool {
	r := l.RatingValue()
	if r == nil || *r < g.c.MinRating || *r > g.c.MaxRating || l.Votes() < g.c.MinReviews {
		return false
	}
	if !g.inArea(l) {
		return false
	}
	strong := 0
	for _, n := range l.PlaceTopics {
		if n >= g.c.MinMentions {
			strong++
		}
	}
	return strong >= g.c.MinTopics
}

func (g *Generator) inArea(l domain.Listing) bool {
	addr := strings.ToLower(l.Address)
	zip := strings.ToLower(l.AddressInfo.Zip)
	for _, kw := range g.c.Keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(addr, kw) || (zip != "" && strings.Contains(zip, kw)) {
			return true
		}
	}
	return g.c.Borough != "" && strings.Contains(l.AddressInfo.Borough, g.c.Borough)
}

func (g *Generator) draft(c candidate, phone string) (Draft, error) {
	rating := *c.l.RatingValue()
	reviews := c.l.Votes()
	potential := PotentialRating(rating)

	d := Draft{
		Name:            c.l.Title,
		Kind:            c.kind,
		Phone:           phone,
		Rating:          rating,
		Reviews:         reviews,
		FourStar:        FourStarReviews(reviews),
		PotentialRating: potential,
		Impact:          CustomerImpact(rating, potential),
		Topics:          TopTopics(c.l.PlaceTopics, 3),
		URL:             c.l.URL,
		PlaceID:         c.l.PlaceID,
		Address:         c.l.Address,
	}
	if len(d.Topics) < 3 {
		return d, fmt.Errorf("outreach: %d topics", len(d.Topics))
	}

	var b strings.Builder
	err := g.tmpl.Execute(&b, view{
		Name:     d.Name,
		Reviews:  reviews,
		Topics:   d.Topics,
		FourStar: g.fourStarLabel(d.FourStar),
		Rating:   strconv.FormatFloat(rating, 'f', -1, 64),
		Target:   fmt.Sprintf("%.1f", rating+0.1),
	})
	if err != nil {
		return d, fmt.Errorf("outreach: render: %w", err)
	}
	d.Message = b.String()
	return d, nil
}

// fourStarLabel rounds down so the figure reads naturally: 1,200+ or 80+.
func (g *Generator) fourStarLabel(n int) string {
	if n > 1000 {
		return g.p.Sprintf("%d+", n/100*100)
	}
	return fmt.Sprintf("%d+", n/10*10)
}

// ─── Estimates ────────────────────────────────────────────────────────────────

// FourStarReviews estimates the 4★ reviews as 20% of the total.
func FourStarReviews(total int) int { return int(float64(total) * 0.20) }

// PotentialRating is the rating reachable by converting part of the 4★
// reviews; the higher the rating, the smaller the step.
func PotentialRating(r float64) float64 {
	switch {
	case r >= 4.7:
		return math.Min(r+0.1, 5.0)
	case r >= 4.4:
		return math.Min(r+0.2, 4.9)
	case r >= 4.0:
		return math.Min(r+0.4, 4.8)
	default:
		return math.Min(r+0.5, 4.7)
	}
}

// Relative click-through by rating, rounded to 0.2 steps.
var ctrByRating = map[float64]float64{
	3.5: 0.50, 3.8: 0.65, 4.0: 1.00, 4.2: 1.20,
	4.4: 1.45, 4.6: 1.75, 4.8: 2.10, 5.0: 2.50,
}

func ctr(r float64) float64 {
	if v, ok := ctrByRating[math.Round(r*5)/5]; ok {
		return v
	}
	return 1.0
}

// CustomerImpact is the estimated percentage gain in customers when moving
// from the current to the potential rating. Never negative.
func CustomerImpact(current, potential float64) int {
	gain := int((ctr(potential)/ctr(current) - 1) * 100)
	return max(gain, 0)
}

// ─── Topics ───────────────────────────────────────────────────────────────────

// First match wins, so longer phrases go before the words they contain.
var topicTranslations = []struct{ en, es string }{
	{"middle eastern food", "comida árabe"},
	{"arabian food", "comida árabe"},
	{"pitcher", "jarras de cerveza"},
	{"slaughterhouse", "parrilla"},
	{"white sauce", "salsa blanca"},
	{"the best pizza", "la mejor pizza"},
	{"food", "comida"},
	{"drinks", "tragos"},
	{"cocktails", "cócteles"},
	{"beer", "cerveza"},
	{"wine", "vino"},
	{"coffee", "café"},
	{"atmosphere", "ambiente"},
	{"service", "servicio"},
	{"music", "música"},
	{"ambiance", "ambiente"},
	{"price", "precio"},
	{"quality", "calidad"},
}

// TranslateTopic maps common English topics to Spanish; others are kept.
func TranslateTopic(topic string) string {
	lower := strings.ToLower(topic)
	for _, t := range topicTranslations {
		if strings.Contains(lower, t.en) {
			return t.es
		}
	}
	return topic
}

// TopTopics returns the n most mentioned topics, translated. Ties are
// broken by name so the result does not depend on map order.
func TopTopics(topics map[string]int, n int) []Topic {
	all := make([]Topic, 0, len(topics))
	for name, count := range topics {
		all = append(all, Topic{Name: name, Mentions: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Mentions != all[j].Mentions {
			return all[i].Mentions > all[j].Mentions
		}
		return all[i].Name < all[j].Name
	})
	if len(all) > n {
		all = all[:n]
	}
	for i := range all {
		all[i].Name = TranslateTopic(all[i].Name)
	}
	return all
}

// ─── Message ──────────────────────────────────────────────────────────────────

type view struct {
	Name     string
	Reviews  int
	Topics   []Topic
	FourStar string
	Rating   string
	Target   string
}

const draftTemplate = `Hola, analicé tus {{num .Reviews}} reviews con IA:

Lo que más destacan de {{.Name}}:
{{- range $i, $t := .Topics}}
→ {{num $t.Mentions}} {{$t.Name}}{{if eq $i 0}} ⭐{{end}}
{{- end}}

Tenés {{.FourStar}} reviews de 4★ que podemos convertir a 5★

También te mostramos:
→ Qué dice la gente de tu equipo
→ Cómo estás vs la competencia
→ Cómo generar más reseñas 5 estrellas

85% de los clientes miran reseñas antes de visitar un lugar y si mejoramos tu clasificación de {{.Rating}}★ a {{.Target}}★ podemos lograr hasta un 10% más de clientes en promedio.

Te gustaría tener una llamada así te cuento más?

Saludos! Justo.`
