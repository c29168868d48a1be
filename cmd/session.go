package cmd

import (
	"fmt"

	"streamscout/internal/extract"
	"streamscout/internal/fetch"
	"streamscout/internal/lookup"
	"streamscout/internal/media"
	"streamscout/internal/provider"
	"streamscout/internal/region"
)

// newRegions builds the region catalog for the configured language and
// allow-list.
func newRegions() *region.Catalog {
	var eligible []string
	if len(cfg.Countries) > 0 {
		eligible = cfg.Countries
	}
	return region.New(cfg.Language, eligible)
}

// newFetcher builds the watch page fetcher from config.
func newFetcher() (*fetch.Selector, error) {
	f, err := fetch.New(fetch.Options{
		Mode:         cfg.FetchMode,
		ProxyURL:     cfg.ProxyURL,
		StageTimeout: cfg.FetchTimeout(),
		Debugf:       debugf,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring fetcher: %w", err)
	}
	return f, nil
}

// newSession wires the lookup orchestrator to the relay, the fetcher and the
// watch page extractor.
func newSession() (*lookup.Orchestrator, error) {
	f, err := newFetcher()
	if err != nil {
		return nil, err
	}

	orch, err := lookup.New(lookup.Options{
		Metadata:      provider.NewRelay(cfg.RelayURL, cfg.Language),
		Fetcher:       f,
		Extractor:     extract.New(),
		Regions:       newRegions(),
		Observer:      debugObserver{},
		EnrichTimeout: cfg.EnrichTimeout(),
		Debugf:        debugf,
	})
	if err != nil {
		return nil, err
	}
	return orch, nil
}

// debugObserver traces session events in debug mode.
type debugObserver struct{}

func (debugObserver) OnResolved(res *lookup.Resolution) {
	debugf("resolved %s: %d providers in %d countries (generation %d)",
		provider.FormatDisplayTitle(res.Title), len(res.Providers), len(res.Countries()), res.Generation)
}

func (debugObserver) OnDetail(gen uint64, code media.CountryCode, d media.CountryDetail) {
	debugf("enriched %s (generation %d): deep link %v, %d providers with quality info",
		code, gen, d.DeepLinkSupported, len(d.QualityByProvider))
}
