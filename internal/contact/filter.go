// Package contact decides whether a scraped string is a plausible contact
// email for a small business.
//
// The filter is deliberately permissive with personal-provider domains
// (gmail, hotmail, yahoo…): most restaurants and bars publish one of those.
// What it rejects is the noise a regex pulls out of real pages: retina image
// names (logo@2x.png), tracking addresses, placeholders and role mailboxes.
package contact

import (
	"regexp"
	"strings"
)

const (
	minEmailLen = 6
	maxEmailLen = 100
	// minDomainLen is the minimum length of the domain without its last label.
	minDomainLen = 4
)

var (
	emailRe = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

	// Local parts that look like asset names or phone fragments.
	suspiciousLocalRes = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4,}`),
		regexp.MustCompile(`^[0-9.]{5,}$`),
		regexp.MustCompile(`^(?:image|img|photo|pic)\d+`),
		regexp.MustCompile(`^[a-z]$`),
		regexp.MustCompile(`^[a-z]{1,2}\d+$`),
	}

	longDigitRunRe = regexp.MustCompile(`\d{5,}`)
	// info@domain.comarav: text glued after a TLD while scraping.
	gluedTLDRe = regexp.MustCompile(`\.(com|net|org)[a-z]{2,}`)
)

// compoundTLDs are legitimate multi-label suffixes that gluedTLDRe would
// otherwise flag.
var compoundTLDs = []string{
	".com.ar", ".gob.ar", ".org.ar", ".net.ar", ".edu.ar",
	".co.uk", ".co.nz", ".com.mx", ".com.br", ".com.au",
}

// Lists holds the configurable exclusion sets. All entries are matched as
// lowercase substrings.
type Lists struct {
	// Ignored rejects placeholder and role addresses ("noreply@", "@example").
	Ignored []string `yaml:"ignored"`
	// FileExtensions rejects addresses ending like a file name.
	FileExtensions []string `yaml:"file_extensions"`
	// SuspiciousDomains rejects sanitized-test and localhost domains.
	SuspiciousDomains []string `yaml:"suspicious_domains"`
}

// DefaultLists returns the exclusion sets used in production.
func DefaultLists() Lists {
	return Lists{
		Ignored: []string{
			"example@example.com", "test@test.com", "admin@admin.com",
			"info@example.com", "contact@example.com", "noreply@",
			"no-reply@", "webmaster@", "postmaster@", "@sentry.io",
			"@placeholder", "@example", "xxx@", "email@",
			"reservas@reservas", "info@info", "contact@contact",
			"admin@", "root@", "user@", "@localhost", "@127.0.0.1",
		},
		FileExtensions: []string{
			".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico",
			".pdf", ".doc", ".docx", ".xls", ".xlsx", ".zip", ".rar",
			".mp4", ".mp3", ".avi", ".mov", ".css", ".js", ".json",
			".xml", ".txt", ".csv", ".html", ".htm", ".woff", ".ttf",
		},
		SuspiciousDomains: []string{
			"2x.png", "3x.png", "1x.png", "x.png", "x.jpg", "x.svg",
			"localhost", "127.0.0.1", "test.com", "example.com",
		},
	}
}

// Filter validates contact emails against a fixed set of Lists.
// A Filter is immutable and safe for concurrent use.
type Filter struct {
	ignored    []string
	extensions []string
	domains    []string
}

// NewFilter builds a Filter; entries are lowercased and blanks dropped.
func NewFilter(l Lists) *Filter {
	return &Filter{
		ignored:    lowerAll(l.Ignored),
		extensions: lowerAll(l.FileExtensions),
		domains:    lowerAll(l.SuspiciousDomains),
	}
}

// IsPlausible reports whether email looks like a real contact address.
func (f *Filter) IsPlausible(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) < minEmailLen || len(email) > maxEmailLen {
		return false
	}
	lower := strings.ToLower(email)

	if strings.Count(lower, "@") != 1 || strings.ContainsAny(lower, `/\`) {
		return false
	}
	if !emailRe.MatchString(lower) {
		return false
	}
	for _, ig := range f.ignored {
		if strings.Contains(lower, ig) {
			return false
		}
	}
	for _, ext := range f.extensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}

	local, domain, _ := strings.Cut(lower, "@")
	for _, d := range f.domains {
		if strings.Contains(domain, d) {
			return false
		}
	}

	lastDot := strings.LastIndex(domain, ".")
	if lastDot < 0 || len(domain)-lastDot-1 < 2 {
		return false
	}
	domainNoTLD := domain[:lastDot]
	if isDigits(strings.ReplaceAll(domainNoTLD, ".", "")) {
		return false
	}
	if len(domainNoTLD) < minDomainLen {
		return false
	}

	if len(local) < 2 || isDigits(local) {
		return false
	}
	for _, re := range suspiciousLocalRes {
		if re.MatchString(local) {
			return false
		}
	}

	if longDigitRunRe.MatchString(lower) {
		return false
	}
	if !hasCompoundTLD(domain) && gluedTLDRe.MatchString(domain) {
		return false
	}
	return true
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func hasCompoundTLD(domain string) bool {
	for _, t := range compoundTLDs {
		if strings.Contains(domain, t) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
