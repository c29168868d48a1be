// Package region names ISO 3166-1 regions in the user's language, orders them
// for display, and holds the allow-list of regions eligible for enrichment.
package region

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"streamscout/internal/media"
)

// DefaultEligible lists the regions with a JustWatch catalog. Watch pages for
// other regions carry no deep link, so they are not enriched.
var DefaultEligible = []string{
	"AD", "AE", "AG", "AL", "AO", "AR", "AT", "AU", "AZ", "BA", "BB", "BE",
	"BF", "BG", "BH", "BM", "BO", "BR", "BS", "BY", "BZ", "CA", "CH", "CI",
	"CL", "CM", "CO", "CR", "CU", "CV", "CY", "CZ", "DE", "DK", "DO", "DZ",
	"EC", "EE", "EG", "ES", "FI", "FJ", "FR", "GB", "GF", "GG", "GH", "GI",
	"GQ", "GR", "GT", "GY", "HK", "HN", "HR", "HU", "ID", "IE", "IL", "IN",
	"IQ", "IS", "IT", "JM", "JO", "JP", "KE", "KR", "KW", "LB", "LC", "LI",
	"LT", "LU", "LV", "LY", "MA", "MC", "MD", "ME", "MG", "MK", "ML", "MT",
	"MU", "MW", "MX", "MY", "MZ", "NE", "NG", "NI", "NL", "NO", "NZ", "OM",
	"PA", "PE", "PF", "PG", "PH", "PK", "PL", "PS", "PT", "PY", "QA", "RO",
	"RS", "RU", "SA", "SC", "SE", "SG", "SI", "SK", "SM", "SN", "SV", "TC",
	"TD", "TH", "TN", "TR", "TT", "TW", "TZ", "UA", "UG", "US", "UY", "VA",
	"VE", "XK", "YE", "ZA", "ZM", "ZW",
}

// Catalog resolves region names for one display language.
type Catalog struct {
	namer    display.Namer
	fallback display.Namer

	mu       sync.Mutex // guards collator, which keeps internal buffers
	collator *collate.Collator

	eligible map[media.CountryCode]bool
	codes    []media.CountryCode
}

// New builds a Catalog for lang (a BCP 47 tag such as "en-US"). An
// unparseable tag falls back to English. eligible restricts enrichment; nil
// means DefaultEligible.
func New(lang string, eligible []string) *Catalog {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		tag = language.English
	}

	c := &Catalog{
		namer:    display.Regions(tag),
		fallback: display.English.Regions(),
		collator: collate.New(tag, collate.IgnoreCase, collate.Loose),
		eligible: make(map[media.CountryCode]bool),
	}

	if eligible == nil {
		eligible = DefaultEligible
	}
	for _, raw := range eligible {
		code := media.NormalizeCountry(raw)
		if len(code) != 2 || c.eligible[code] {
			continue
		}
		c.eligible[code] = true
		c.codes = append(c.codes, code)
	}
	return c
}

// Name returns the display name of code, or the code itself when the region
// is unknown.
func (c *Catalog) Name(code media.CountryCode) string {
	region, err := language.ParseRegion(string(code))
	if err != nil {
		return string(code)
	}
	for _, n := range []display.Namer{c.namer, c.fallback} {
		if n == nil {
			continue
		}
		if name := n.Name(region); name != "" {
			return name
		}
	}
	return string(code)
}

// Compare orders two display names using the catalog language's collation.
func (c *Catalog) Compare(a, b string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collator.CompareString(a, b)
}

// Eligible reports whether code may be enriched.
func (c *Catalog) Eligible(code media.CountryCode) bool {
	return c.eligible[media.NormalizeCountry(string(code))]
}

// All returns the eligible regions sorted by display name.
func (c *Catalog) All() []media.Country {
	out := make([]media.Country, len(c.codes))
	for i, code := range c.codes {
		out[i] = media.Country{Code: code, Name: c.Name(code)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return c.Compare(out[i].Name, out[j].Name) < 0
	})
	return out
}
