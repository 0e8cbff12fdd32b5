package normalize

import "strings"

// minPhoneDigits is the shortest national number accepted for messaging.
const minPhoneDigits = 10

// PhonePlan describes the local numbering plan used to build WhatsApp numbers.
type PhonePlan struct {
	CountryCode  string `yaml:"country_code"`
	MobilePrefix string `yaml:"mobile_prefix"`
}

// ArgentinaPlan is +54 with the 9 mobile indicator.
var ArgentinaPlan = PhonePlan{CountryCode: "54", MobilePrefix: "9"}

// Canonical returns raw in full international mobile form ("+5491147724911").
// The second result is false when fewer than ten digits remain.
func (p PhonePlan) Canonical(raw string) (string, bool) {
	cleaned := stripPhone(raw)
	cleaned = strings.TrimPrefix(cleaned, "0")

	digits := strings.TrimPrefix(cleaned, "+")
	if len(digits) < minPhoneDigits {
		return "", false
	}

	cc, mob := p.CountryCode, p.MobilePrefix
	switch {
	case strings.HasPrefix(cleaned, "+"+cc):
		return p.withMobile(cleaned[len(cc)+1:]), true
	case strings.HasPrefix(cleaned, cc):
		return p.withMobile(cleaned[len(cc):]), true
	case mob != "" && strings.HasPrefix(digits, mob):
		return "+" + cc + digits, true
	default:
		return "+" + cc + mob + digits, true
	}
}

func (p PhonePlan) withMobile(rest string) string {
	if strings.HasPrefix(rest, p.MobilePrefix) {
		return "+" + p.CountryCode + rest
	}
	return "+" + p.CountryCode + p.MobilePrefix + rest
}

// stripPhone keeps digits and a leading plus sign.
func stripPhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
