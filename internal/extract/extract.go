// Package extract turns scraped watch pages into structured enrichment data:
// a deep link to the external catalog and the quality tiers each
// subscription provider offers.
package extract

import "streamscout/internal/media"

// Extractor parses a watch page. Implementations are total: malformed or
// unrelated markup yields an empty extraction, never an error.
type Extractor interface {
	Extract(html string) media.Extraction
}

// New returns the extractor for TMDB watch pages.
func New() Extractor {
	return &WatchPage{}
}
