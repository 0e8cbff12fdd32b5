package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ─── Listing (raw provider item) ──────────────────────────────────────────────

// Listing is one raw business entry as returned by the DataForSEO
// business_listings search (live API or a saved JSON snapshot).
type Listing struct {
	Title       string         `json:"title"`
	Category    string         `json:"category"`
	URL         string         `json:"url"`
	Domain      string         `json:"domain"`
	Phone       string         `json:"phone"`
	Address     string         `json:"address"`
	AddressInfo AddressInfo    `json:"address_info"`
	Latitude    *float64       `json:"latitude"`
	Longitude   *float64       `json:"longitude"`
	Rating      *ListingRating `json:"rating"`
	PlaceID     string         `json:"place_id"`
	CID         string         `json:"cid"`
	IsClaimed   bool           `json:"is_claimed"`
	PlaceTopics map[string]int `json:"place_topics,omitempty"`
}

// AddressInfo is the nested address block of a Listing.
type AddressInfo struct {
	Borough     string `json:"borough"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Zip         string `json:"zip"`
	Region      string `json:"region"`
	CountryCode string `json:"country_code"`
}

// ListingRating is the nested rating block of a Listing.
type ListingRating struct {
	Value      *float64 `json:"value"`
	VotesCount int      `json:"votes_count"`
}

// RatingValue returns the rating value, or nil when absent.
func (l Listing) RatingValue() *float64 {
	if l.Rating == nil {
		return nil
	}
	return l.Rating.Value
}

// Votes returns the review count, 0 when absent.
func (l Listing) Votes() int {
	if l.Rating == nil {
		return 0
	}
	return l.Rating.VotesCount
}

// ─── BusinessRecord ───────────────────────────────────────────────────────────

// BusinessRecord is one physical business location as known to the store.
// Its json tags are the column names of both persisted formats.
type BusinessRecord struct {
	Title         string    `json:"title"           bson:"title"`
	Category      string    `json:"category"        bson:"category"`
	Phone         string    `json:"phone"           bson:"phone,omitempty"`
	Address       string    `json:"address"         bson:"address"`
	City          string    `json:"city"            bson:"city"`
	PostalCode    string    `json:"postal_code"     bson:"postal_code"`
	Country       string    `json:"country"         bson:"country"`
	Latitude      *float64  `json:"latitude"        bson:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude"       bson:"longitude,omitempty"`
	Rating        *float64  `json:"rating"          bson:"rating,omitempty"`
	ReviewCount   int       `json:"review_count"    bson:"review_count"`
	URL           string    `json:"url"             bson:"url,omitempty"`
	Domain        string    `json:"domain"          bson:"domain,omitempty"`
	ExternalID    string    `json:"external_id"     bson:"external_id"`
	SecondaryID   string    `json:"secondary_id"    bson:"secondary_id,omitempty"`
	IsVerified    bool      `json:"is_verified"     bson:"is_verified"`
	Emails        EmailList `json:"emails"          bson:"emails,omitempty"`
	WhatsApp      string    `json:"whatsapp"        bson:"whatsapp,omitempty"`
	HasOwnWebsite bool      `json:"has_own_website" bson:"has_own_website"`
	IsChain       bool      `json:"is_chain"        bson:"is_chain"`
	ExtractedAt   time.Time `json:"extracted_at"    bson:"extracted_at"`
}

// MarshalJSON writes a zero ExtractedAt as "" so the JSON mirror holds the
// same value as the CSV cell.
func (r BusinessRecord) MarshalJSON() ([]byte, error) {
	type plain BusinessRecord
	at := ""
	if !r.ExtractedAt.IsZero() {
		at = r.ExtractedAt.Format(time.RFC3339Nano)
	}
	return json.Marshal(struct {
		plain
		ExtractedAt string `json:"extracted_at"`
	}{plain(r), at})
}

// UnmarshalJSON reads "" (or a missing field) as a zero ExtractedAt.
func (r *BusinessRecord) UnmarshalJSON(b []byte) error {
	type plain BusinessRecord
	aux := struct {
		*plain
		ExtractedAt string `json:"extracted_at"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.ExtractedAt = time.Time{}
	if aux.ExtractedAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, aux.ExtractedAt)
	if err != nil {
		return fmt.Errorf("domain: extracted_at: %w", err)
	}
	r.ExtractedAt = t
	return nil
}

// HasEmail reports whether at least one contact email is known.
func (r BusinessRecord) HasEmail() bool { return len(r.Emails) > 0 }

// HasWhatsApp reports whether a messaging number is known.
func (r BusinessRecord) HasWhatsApp() bool { return strings.TrimSpace(r.WhatsApp) != "" }

// ─── EmailList ────────────────────────────────────────────────────────────────

// EmailList is an ordered set of addresses. It is persisted comma-joined
// ("a@x.com, b@y.com") in CSV and JSON alike.
type EmailList []string

// ParseEmailList splits a stored field back into addresses, dropping blanks
// and repeated entries while keeping the first-seen order.
func ParseEmailList(field string) EmailList {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	var out EmailList
	seen := make(map[string]bool)
	for _, part := range strings.Split(field, ",") {
		e := strings.TrimSpace(part)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// String returns the storage form.
func (l EmailList) String() string { return strings.Join(l, ", ") }

// MarshalJSON writes the list as its comma-joined storage form.
func (l EmailList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON accepts the comma-joined form and, for hand-written files,
// a JSON array.
func (l *EmailList) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*l = ParseEmailList(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	*l = ParseEmailList(strings.Join(arr, ","))
	return nil
}

// Contacts is what enrichment recovers from one business website.
type Contacts struct {
	Emails   EmailList `json:"emails"   bson:"emails,omitempty"`
	WhatsApp string    `json:"whatsapp" bson:"whatsapp,omitempty"`
}

// Empty reports whether nothing was found.
func (c Contacts) Empty() bool { return len(c.Emails) == 0 && c.WhatsApp == "" }

// ─── Merge / run reporting ────────────────────────────────────────────────────

// MergeReport counts the records removed by each dedup pass.
type MergeReport struct {
	Input        int `json:"input"          bson:"input"`
	ByExternalID int `json:"by_external_id" bson:"by_external_id"`
	ByChain      int `json:"by_chain"       bson:"by_chain"`
	ByNamePhone  int `json:"by_name_phone"  bson:"by_name_phone"`
	ByEmail      int `json:"by_email"       bson:"by_email"`
	Output       int `json:"output"         bson:"output"`
}

// Removed is the total number of records discarded by the cascade.
func (r MergeReport) Removed() int {
	return r.ByExternalID + r.ByChain + r.ByNamePhone + r.ByEmail
}

// Stats summarises a persisted store for operators.
type Stats struct {
	Total          int     `json:"total"            bson:"total"`
	WithEmail      int     `json:"with_email"       bson:"with_email"`
	WithWhatsApp   int     `json:"with_whatsapp"    bson:"with_whatsapp"`
	WithOwnWebsite int     `json:"with_own_website" bson:"with_own_website"`
	Chains         int     `json:"chains"           bson:"chains"`
	Rated          int     `json:"rated"            bson:"rated"`
	MeanRating     float64 `json:"mean_rating"      bson:"mean_rating"`
	MeanReviews    float64 `json:"mean_reviews"     bson:"mean_reviews"`
}

// EmailPct is the share of records with an email, in percent.
func (s Stats) EmailPct() float64 { return pct(s.WithEmail, s.Total) }

// WhatsAppPct is the share of records with a WhatsApp number, in percent.
func (s Stats) WhatsAppPct() float64 { return pct(s.WithWhatsApp, s.Total) }

// ChainPct is the share of records flagged as chain, in percent.
func (s Stats) ChainPct() float64 { return pct(s.Chains, s.Total) }

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

// RunSummary describes one pipeline execution.
type RunSummary struct {
	ID         string      `json:"id"          bson:"_id"`
	Mode       string      `json:"mode"        bson:"mode"`
	StartedAt  time.Time   `json:"started_at"  bson:"started_at"`
	DurationMs int64       `json:"duration_ms" bson:"duration_ms"`
	Listings   int         `json:"listings"    bson:"listings"`
	Enriched   int         `json:"enriched"    bson:"enriched"`
	Report     MergeReport `json:"report"      bson:"report"`
	Stats      Stats       `json:"stats"       bson:"stats"`
	Outputs    []string    `json:"outputs"     bson:"outputs"`
}
