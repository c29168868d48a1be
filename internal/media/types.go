// Package media defines shared types for the streamscout application.
package media

import (
	"sort"
	"strings"
	"time"
)

// Kind represents whether a title is a movie or a series.
type Kind int

const (
	Movie Kind = iota
	Series
)

func (k Kind) String() string {
	switch k {
	case Movie:
		return "movie"
	case Series:
		return "series"
	default:
		return "unknown"
	}
}

// PathSegment returns the metadata API path segment for the kind ("movie" or "tv").
func (k Kind) PathSegment() string {
	if k == Series {
		return "tv"
	}
	return "movie"
}

// ParseKind maps "movie", "tv", "series" and "show" to a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return Movie, true
	case "tv", "series", "show", "shows":
		return Series, true
	default:
		return Movie, false
	}
}

// Title is a canonical title resolved from a search result.
// Identity is (ID, Kind).
type Title struct {
	ID   int64  // Metadata API ID
	Kind Kind   // Movie or Series
	Name string // Display title
	Date string // Release or first-air date as reported upstream (YYYY-MM-DD)
	Year int    // Release year, 0 when unknown
}

// CountryCode is an ISO 3166-1 alpha-2 region code, upper-case.
type CountryCode string

// NormalizeCountry trims and upper-cases a region code.
func NormalizeCountry(s string) CountryCode {
	return CountryCode(strings.ToUpper(strings.TrimSpace(s)))
}

// Country pairs a region code with its display name.
type Country struct {
	Code CountryCode `json:"code"`
	Name string      `json:"name"`
}

// Offer is a single subscription offer within one country.
type Offer struct {
	ProviderID   int    `json:"provider_id"`
	ProviderName string `json:"provider_name"`
	LogoRef      string `json:"logo_path"`
}

// CountryOffers holds the subscription offers for one country.
type CountryOffers struct {
	Code     CountryCode
	Link     string  // Per-country watch page, empty when the upstream has none
	Flatrate []Offer // nil when the country has no subscription offers
}

// RawAvailability is the per-country availability of one title, in upstream
// document order. Only subscription (flatrate) offers are kept.
type RawAvailability struct {
	Countries []CountryOffers
}

// ProviderEntry groups the countries in which one provider streams a title.
type ProviderEntry struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	LogoRef   string    `json:"logo"`
	Countries []Country `json:"countries"`
}

// Has reports whether the provider streams the title in the given country.
func (p ProviderEntry) Has(code CountryCode) bool {
	for _, c := range p.Countries {
		if c.Code == code {
			return true
		}
	}
	return false
}

// Quality is a video quality tier.
type Quality string

const (
	SD  Quality = "SD"
	HD  Quality = "HD"
	UHD Quality = "4K"
)

// Rank orders tiers SD < HD < 4K. Unknown tiers sort last.
func (q Quality) Rank() int {
	switch q {
	case SD:
		return 0
	case HD:
		return 1
	case UHD:
		return 2
	default:
		return 3
	}
}

// SortQualities returns the tiers deduplicated and in canonical order.
func SortQualities(qs []Quality) []Quality {
	seen := make(map[Quality]bool, len(qs))
	out := make([]Quality, 0, len(qs))
	for _, q := range qs {
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank() < out[j].Rank() })
	return out
}

// JoinQualities renders tiers as "SD, HD, 4K".
func JoinQualities(qs []Quality) string {
	parts := make([]string, len(qs))
	for i, q := range qs {
		parts[i] = string(q)
	}
	return strings.Join(parts, ", ")
}

// Extraction is the structured data scraped from a watch page.
type Extraction struct {
	DeepLinkURL       string               // Empty when absent
	QualityByProvider map[string][]Quality // Provider name -> tiers, canonical order
}

// CountryDetail is the lazily fetched enrichment for one country.
type CountryDetail struct {
	DeepLinkSupported bool                 `json:"deep_link_supported"`
	JustWatchURL      string               `json:"justwatch_url,omitempty"`
	QualityByProvider map[string][]Quality `json:"quality_by_provider"`
}

// EmptyDetail is the detail recorded when no enrichment is available.
func EmptyDetail() CountryDetail {
	return CountryDetail{QualityByProvider: map[string][]Quality{}}
}

// DetailFromExtraction converts an extraction into a country detail.
func DetailFromExtraction(ex Extraction) CountryDetail {
	d := EmptyDetail()
	if ex.DeepLinkURL != "" {
		d.DeepLinkSupported = true
		d.JustWatchURL = ex.DeepLinkURL
	}
	for name, qs := range ex.QualityByProvider {
		d.QualityByProvider[name] = qs
	}
	return d
}

// HistoryEntry represents a single looked-up title in the history.
type HistoryEntry struct {
	Title      Title
	Query      string    // Query that led to the title
	LookedUpAt time.Time // Last lookup time
}
