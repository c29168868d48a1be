// Package lookup drives one lookup session: search, resolve a title to its
// provider-centric availability, and enrich single countries on demand.
//
// Every Search or Resolve starts a new generation. Work belonging to an older
// generation is cancelled, and its results are dropped instead of applied.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"streamscout/internal/aggregate"
	"streamscout/internal/media"
	"streamscout/internal/provider"
)

const defaultEnrichTimeout = 25 * time.Second

// Fetcher retrieves the HTML of a watch page.
type Fetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
}

// Extractor turns watch-page HTML into enrichment data. It must not fail.
type Extractor interface {
	Extract(html string) media.Extraction
}

// Regions names and orders countries and decides which ones are enriched.
type Regions interface {
	aggregate.Regions
	Eligible(code media.CountryCode) bool
}

// Observer receives results as they become available. Calls are made
// without the orchestrator's lock held.
type Observer interface {
	OnResolved(res *Resolution)
	OnDetail(generation uint64, code media.CountryCode, detail media.CountryDetail)
}

// State is the session state.
type State int

const (
	Idle State = iota
	Searching
	Resolved
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case Resolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// CountryState tracks the enrichment of one country for the current title.
type CountryState int

const (
	Absent CountryState = iota
	Enriching
	Enriched
)

// Resolution is the availability of one title.
type Resolution struct {
	Generation uint64
	Title      media.Title
	Providers  []media.ProviderEntry
	Links      map[media.CountryCode]string // Per-country watch page from the upstream
}

// Empty reports whether the title has no subscription availability.
func (r *Resolution) Empty() bool {
	return r == nil || len(r.Providers) == 0
}

// Countries returns every country that has at least one provider, in the
// order they first appear across providers.
func (r *Resolution) Countries() []media.Country {
	if r == nil {
		return nil
	}
	seen := make(map[media.CountryCode]bool)
	var out []media.Country
	for _, p := range r.Providers {
		for _, c := range p.Countries {
			if !seen[c.Code] {
				seen[c.Code] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// Options configures an Orchestrator. Metadata, Fetcher and Extractor are
// required.
type Options struct {
	Metadata      provider.Provider
	Fetcher       Fetcher
	Extractor     Extractor
	Regions       Regions  // nil: raw codes, every country eligible
	Observer      Observer // optional
	EnrichTimeout time.Duration
	Debugf        func(format string, args ...any)
}

// Orchestrator owns the state of a lookup session. It is safe for concurrent
// use.
type Orchestrator struct {
	metadata      provider.Provider
	fetcher       Fetcher
	extractor     Extractor
	regions       Regions
	observer      Observer
	enrichTimeout time.Duration
	debugf        func(format string, args ...any)

	group singleflight.Group

	mu        sync.Mutex
	gen       uint64
	state     State
	res       *Resolution
	details   map[media.CountryCode]media.CountryDetail
	enriching map[media.CountryCode]bool
	genCtx    context.Context
	genCancel context.CancelFunc
}

// New creates an Orchestrator in the Idle state.
func New(opts Options) (*Orchestrator, error) {
	if opts.Metadata == nil || opts.Fetcher == nil || opts.Extractor == nil {
		return nil, errors.New("lookup: metadata, fetcher and extractor are required")
	}

	o := &Orchestrator{
		metadata:      opts.Metadata,
		fetcher:       opts.Fetcher,
		extractor:     opts.Extractor,
		regions:       opts.Regions,
		observer:      opts.Observer,
		enrichTimeout: opts.EnrichTimeout,
		debugf:        opts.Debugf,
	}
	if o.enrichTimeout <= 0 {
		o.enrichTimeout = defaultEnrichTimeout
	}
	if o.debugf == nil {
		o.debugf = func(string, ...any) {}
	}
	o.genCtx, o.genCancel = context.WithCancel(context.Background())
	o.details = make(map[media.CountryCode]media.CountryDetail)
	o.enriching = make(map[media.CountryCode]bool)
	return o, nil
}

// State returns the current session state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Generation returns the current generation.
func (o *Orchestrator) Generation() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gen
}

// Current returns the current resolution, or nil.
func (o *Orchestrator) Current() *Resolution {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.res
}

// CountryState reports the enrichment state of code for the current title.
func (o *Orchestrator) CountryState(code media.CountryCode) CountryState {
	code = media.NormalizeCountry(string(code))
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.details[code]; ok {
		return Enriched
	}
	if o.enriching[code] {
		return Enriching
	}
	return Absent
}

// Detail returns the cached detail for code, if any.
func (o *Orchestrator) Detail(code media.CountryCode) (media.CountryDetail, bool) {
	code = media.NormalizeCountry(string(code))
	o.mu.Lock()
	defer o.mu.Unlock()
	d, ok := o.details[code]
	return d, ok
}

// Eligible reports whether code can be expanded.
func (o *Orchestrator) Eligible(code media.CountryCode) bool {
	return o.regions == nil || o.regions.Eligible(code)
}

// begin starts a new generation, discarding the previous result and
// cancelling its in-flight enrichments. Callers must hold o.mu.
func (o *Orchestrator) begin() uint64 {
	o.genCancel()
	o.genCtx, o.genCancel = context.WithCancel(context.Background())
	o.gen++
	o.state = Searching
	o.res = nil
	o.details = make(map[media.CountryCode]media.CountryDetail)
	o.enriching = make(map[media.CountryCode]bool)
	return o.gen
}

// Search queries the metadata source for candidate titles. It starts a new
// generation.
func (o *Orchestrator) Search(ctx context.Context, query string) ([]media.Title, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	o.mu.Lock()
	gen := o.begin()
	o.mu.Unlock()

	titles, err := o.metadata.Search(ctx, query)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return nil, ErrStale
	}

	switch {
	case errors.Is(err, provider.ErrNoResults):
		o.state = Idle
		return nil, fmt.Errorf("%w: no titles match %q", ErrNotFound, query)
	case err != nil:
		o.state = Idle
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	case len(titles) == 0:
		o.state = Idle
		return nil, fmt.Errorf("%w: no titles match %q", ErrNotFound, query)
	}

	o.debugf("[lookup] %d candidates for %q (generation %d)", len(titles), query, gen)
	return titles, nil
}

// Resolve fetches and aggregates the availability of t. It starts a new
// generation. An empty Resolution is not an error here; see Lookup.
func (o *Orchestrator) Resolve(ctx context.Context, t media.Title) (*Resolution, error) {
	o.mu.Lock()
	gen := o.begin()
	o.mu.Unlock()

	raw, err := o.metadata.Availability(ctx, t)
	if err != nil {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.gen != gen {
			return nil, ErrStale
		}
		o.state = Idle
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	res := &Resolution{
		Generation: gen,
		Title:      t,
		Providers:  aggregate.Aggregate(raw, o.regions),
		Links:      make(map[media.CountryCode]string),
	}
	for _, co := range raw.Countries {
		if co.Link != "" {
			res.Links[co.Code] = co.Link
		}
	}

	o.mu.Lock()
	if o.gen != gen {
		o.mu.Unlock()
		return nil, ErrStale
	}
	o.res = res
	o.state = Resolved
	o.mu.Unlock()

	o.debugf("[lookup] %s %d: %d providers", t.Kind, t.ID, len(res.Providers))
	if o.observer != nil {
		o.observer.OnResolved(res)
	}
	return res, nil
}

// Lookup searches for query and resolves the best match. A title without
// subscription availability returns its Resolution together with ErrNotFound.
func (o *Orchestrator) Lookup(ctx context.Context, query string) (*Resolution, error) {
	titles, err := o.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	res, err := o.Resolve(ctx, titles[0])
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return res, fmt.Errorf("%w: %s is not on any subscription service", ErrNotFound, provider.FormatDisplayTitle(res.Title))
	}
	return res, nil
}

// Expand returns the enrichment detail for code, fetching it on first use.
// Concurrent calls for the same country share one fetch and later calls are
// served from the cache. Fetch and extraction failures yield an empty detail,
// never an error. Cancelling ctx only stops the wait: the fetch itself is
// bounded by the enrichment timeout and cancelled by a newer generation.
func (o *Orchestrator) Expand(ctx context.Context, code media.CountryCode) (media.CountryDetail, error) {
	code = media.NormalizeCountry(string(code))

	o.mu.Lock()
	if o.res == nil {
		o.mu.Unlock()
		return media.CountryDetail{}, ErrNoTitle
	}
	if !o.Eligible(code) {
		o.mu.Unlock()
		return media.CountryDetail{}, fmt.Errorf("%w: %s", ErrNotEligible, code)
	}
	if d, ok := o.details[code]; ok {
		o.mu.Unlock()
		return d, nil
	}
	gen := o.gen
	target := WatchPageURL(o.res.Title, code, o.res.Links[code])
	genCtx := o.genCtx
	o.enriching[code] = true
	o.mu.Unlock()

	key := fmt.Sprintf("%d/%s", gen, code)
	ch := o.group.DoChan(key, func() (any, error) {
		if d, ok, stale := o.cached(gen, code); ok || stale {
			return d, nil
		}

		ectx, cancel := context.WithTimeout(genCtx, o.enrichTimeout)
		defer cancel()
		detail := o.enrich(ectx, target)

		o.mu.Lock()
		stored := false
		if o.gen == gen {
			if d, ok := o.details[code]; ok {
				detail = d
			} else {
				o.details[code] = detail
				delete(o.enriching, code)
				stored = true
			}
		}
		o.mu.Unlock()

		if stored && o.observer != nil {
			o.observer.OnDetail(gen, code, detail)
		}
		return detail, nil
	})

	var detail media.CountryDetail
	select {
	case r := <-ch:
		detail = r.Val.(media.CountryDetail)
	case <-ctx.Done():
		// The enrichment keeps running and still fills the cache.
		return media.CountryDetail{}, ctx.Err()
	}

	o.mu.Lock()
	stale := o.gen != gen
	o.mu.Unlock()
	if stale {
		return media.CountryDetail{}, ErrStale
	}
	return detail, nil
}

// cached returns the stored detail for code when gen is still current.
func (o *Orchestrator) cached(gen uint64, code media.CountryCode) (media.CountryDetail, bool, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.gen != gen {
		return media.CountryDetail{}, false, true
	}
	d, ok := o.details[code]
	return d, ok, false
}

func (o *Orchestrator) enrich(ctx context.Context, target string) media.CountryDetail {
	html, err := o.fetcher.FetchHTML(ctx, target)
	if err != nil {
		o.debugf("[lookup] enrichment unavailable for %s: %v", target, err)
		return media.EmptyDetail()
	}
	return media.DetailFromExtraction(o.extractor.Extract(html))
}

// WatchPageURL returns the page to enrich code from: link when the upstream
// supplied one, otherwise the TMDB watch page for the title and locale.
func WatchPageURL(t media.Title, code media.CountryCode, link string) string {
	if link != "" {
		return link
	}
	return fmt.Sprintf("https://www.themoviedb.org/%s/%d/watch?locale=%s", t.Kind.PathSegment(), t.ID, code)
}
