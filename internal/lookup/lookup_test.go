package lookup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamscout/internal/extract"
	"streamscout/internal/media"
	"streamscout/internal/provider"
)

const huluPage = `<html><body>
<div class="ott_title"><h2>Where to Watch</h2></div>
<p><a href="https://www.justwatch.com/us/movie/moon-2009">JustWatch</a></p>
<div class="ott_provider"><h3>Stream</h3>
<ul class="providers">
<li class="ott_filter_4k ott_filter_hd"><a title="Watch Moon on Hulu" href="#">Hulu</a></li>
</ul></div>
</body></html>`

var moon = media.Title{ID: 17431, Kind: media.Movie, Name: "Moon", Year: 2009}

type fakeMetadata struct {
	titles    []media.Title
	searchErr error
	raw       map[int64]media.RawAvailability
	availErr  error
}

func (f *fakeMetadata) Search(ctx context.Context, query string) ([]media.Title, error) {
	return f.titles, f.searchErr
}

func (f *fakeMetadata) Availability(ctx context.Context, t media.Title) (media.RawAvailability, error) {
	if f.availErr != nil {
		return media.RawAvailability{}, f.availErr
	}
	return f.raw[t.ID], nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	urls    []string
	ctxErrs []error
	html    string
	err     error
	entered chan struct{} // receives one value per call when non-nil
	release chan struct{} // blocks each call until closed when non-nil
}

func (f *fakeFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.urls = append(f.urls, url)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.html, f.err
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingObserver struct {
	mu       sync.Mutex
	resolved []*Resolution
	details  []media.CountryCode
}

func (r *recordingObserver) OnResolved(res *Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved = append(r.resolved, res)
}

func (r *recordingObserver) OnDetail(gen uint64, code media.CountryCode, d media.CountryDetail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.details = append(r.details, code)
}

// eligibleOnly names codes as themselves and allows a fixed set.
type eligibleOnly map[media.CountryCode]bool

func (e eligibleOnly) Name(code media.CountryCode) string { return string(code) }
func (e eligibleOnly) Compare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
func (e eligibleOnly) Eligible(code media.CountryCode) bool { return e[code] }

func moonAvailability() media.RawAvailability {
	return media.RawAvailability{Countries: []media.CountryOffers{
		{Code: "US", Link: "https://www.themoviedb.org/movie/17431-moon/watch?locale=US", Flatrate: []media.Offer{
			{ProviderID: 8, ProviderName: "Netflix"}, {ProviderID: 15, ProviderName: "Hulu"},
		}},
		{Code: "GB", Flatrate: []media.Offer{{ProviderID: 8, ProviderName: "Netflix"}}},
		{Code: "DE"},
		{Code: "KP", Flatrate: []media.Offer{{ProviderID: 8, ProviderName: "Netflix"}}},
	}}
}

type harness struct {
	orch     *Orchestrator
	meta     *fakeMetadata
	fetcher  *fakeFetcher
	observer *recordingObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		meta: &fakeMetadata{
			titles: []media.Title{moon},
			raw:    map[int64]media.RawAvailability{moon.ID: moonAvailability()},
		},
		fetcher:  &fakeFetcher{html: huluPage},
		observer: &recordingObserver{},
	}
	orch, err := New(Options{
		Metadata:      h.meta,
		Fetcher:       h.fetcher,
		Extractor:     extract.New(),
		Regions:       eligibleOnly{"US": true, "GB": true, "DE": true},
		Observer:      h.observer,
		EnrichTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestLookupResolves(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Idle, h.orch.State())

	res, err := h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)

	assert.Equal(t, Resolved, h.orch.State())
	assert.Equal(t, moon, res.Title)
	require.Len(t, res.Providers, 2)
	assert.Equal(t, "Netflix", res.Providers[0].Name)
	assert.Len(t, res.Providers[0].Countries, 3)
	assert.Equal(t, "Hulu", res.Providers[1].Name)
	assert.False(t, res.Empty())
	assert.Len(t, res.Countries(), 3)
	assert.Contains(t, res.Links, media.CountryCode("US"))
	assert.NotContains(t, res.Links, media.CountryCode("GB"))

	h.observer.mu.Lock()
	assert.Len(t, h.observer.resolved, 1)
	h.observer.mu.Unlock()
	assert.Zero(t, h.fetcher.count(), "resolution must not enrich eagerly")
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name    string
		titles  []media.Title
		err     error
		wantErr error
	}{
		{"no results", nil, provider.ErrNoResults, ErrNotFound},
		{"empty list", []media.Title{}, nil, ErrNotFound},
		{"transport failure", nil, errors.New("connection refused"), ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.meta.titles = tt.titles
			h.meta.searchErr = tt.err

			_, err := h.orch.Search(context.Background(), "nothing")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, Idle, h.orch.State())
			assert.Nil(t, h.orch.Current())
		})
	}
}

func TestSearchRejectsBlankQuery(t *testing.T) {
	h := newHarness(t)
	res, err := h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)
	gen := h.orch.Generation()

	for _, q := range []string{"", "   ", "\t\n"} {
		_, err := h.orch.Search(context.Background(), q)
		assert.ErrorIs(t, err, ErrEmptyQuery, "query %q", q)
		assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	}

	assert.Equal(t, gen, h.orch.Generation(), "a rejected query must not start a generation")
	assert.Equal(t, Resolved, h.orch.State())
	assert.Same(t, res, h.orch.Current())
}

func TestSearchKeepsCandidatesPending(t *testing.T) {
	h := newHarness(t)
	titles, err := h.orch.Search(context.Background(), "moon")
	require.NoError(t, err)
	assert.Equal(t, []media.Title{moon}, titles)
	assert.Equal(t, Searching, h.orch.State())
}

func TestResolveUpstreamFailure(t *testing.T) {
	h := newHarness(t)
	h.meta.availErr = errors.New("HTTP 502")

	_, err := h.orch.Resolve(context.Background(), moon)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, Idle, h.orch.State())
}

func TestLookupNoSubscriptionAvailability(t *testing.T) {
	h := newHarness(t)
	h.meta.raw[moon.ID] = media.RawAvailability{Countries: []media.CountryOffers{{Code: "US"}, {Code: "GB"}}}

	res, err := h.orch.Lookup(context.Background(), "moon")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NotNil(t, res)
	assert.True(t, res.Empty())
	assert.Equal(t, Resolved, h.orch.State())
}

func TestExpandEnrichesOnce(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)
	assert.Equal(t, Absent, h.orch.CountryState("US"))

	first, err := h.orch.Expand(context.Background(), "us")
	require.NoError(t, err)
	second, err := h.orch.Expand(context.Background(), "US")
	require.NoError(t, err)

	assert.Equal(t, 1, h.fetcher.count(), "repeated expansion must not refetch")
	assert.Equal(t, first, second)
	assert.Equal(t, Enriched, h.orch.CountryState("US"))

	assert.True(t, first.DeepLinkSupported)
	assert.Equal(t, "https://www.justwatch.com/us/movie/moon-2009", first.JustWatchURL)
	assert.Equal(t, []media.Quality{media.HD, media.UHD}, first.QualityByProvider["Hulu"])

	// The upstream link is preferred over the constructed URL.
	assert.Equal(t, "https://www.themoviedb.org/movie/17431-moon/watch?locale=US", h.fetcher.urls[0])

	h.observer.mu.Lock()
	assert.Equal(t, []media.CountryCode{"US"}, h.observer.details)
	h.observer.mu.Unlock()
}

func TestExpandFallbackURL(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)

	_, err = h.orch.Expand(context.Background(), "GB")
	require.NoError(t, err)
	assert.Equal(t, "https://www.themoviedb.org/movie/17431/watch?locale=GB", h.fetcher.urls[0])
}

func TestExpandFailureCachesEmptyDetail(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = errors.New("fetch failed: direct: blocked; proxy: HTTP 502")
	_, err := h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)

	d, err := h.orch.Expand(context.Background(), "US")
	require.NoError(t, err, "enrichment failures are never errors")
	assert.Equal(t, media.EmptyDetail(), d)

	_, err = h.orch.Expand(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, 1, h.fetcher.count())
	assert.Equal(t, Enriched, h.orch.CountryState("US"))
}

func TestExpandConcurrentSharesFetch(t *testing.T) {
	h := newHarness(t)
	h.fetcher.entered = make(chan struct{}, 10)
	h.fetcher.release = make(chan struct{})
	_, err := h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)

	const callers = 8
	results := make([]media.CountryDetail, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.orch.Expand(context.Background(), "US")
		}(i)
	}

	<-h.fetcher.entered
	assert.Equal(t, Enriching, h.orch.CountryState("US"))
	close(h.fetcher.release)
	wg.Wait()

	assert.Equal(t, 1, h.fetcher.count())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestExpandIndependentCountries(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, code := range []media.CountryCode{"US", "GB", "DE"} {
		wg.Add(1)
		go func(code media.CountryCode) {
			defer wg.Done()
			_, err := h.orch.Expand(context.Background(), code)
			assert.NoError(t, err)
		}(code)
	}
	wg.Wait()

	assert.Equal(t, 3, h.fetcher.count())
	for _, code := range []media.CountryCode{"US", "GB", "DE"} {
		assert.Equal(t, Enriched, h.orch.CountryState(code))
	}
}

func TestExpandStaleResultDropped(t *testing.T) {
	h := newHarness(t)
	h.fetcher.entered = make(chan struct{}, 10)
	h.fetcher.release = make(chan struct{})
	defer close(h.fetcher.release)

	_, err := h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Expand(context.Background(), "US")
		done <- err
	}()
	<-h.fetcher.entered

	// A new lookup supersedes the first one while its enrichment is in flight.
	_, err = h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight enrichment was not cancelled by the new lookup")
	}

	_, ok := h.orch.Detail("US")
	assert.False(t, ok, "stale detail must not reach the new result")
	assert.Equal(t, Absent, h.orch.CountryState("US"))

	h.observer.mu.Lock()
	assert.Empty(t, h.observer.details)
	h.observer.mu.Unlock()
}

func TestExpandDetachedFromCallerCancellation(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)

	h.fetcher.entered = make(chan struct{}, 1)
	h.fetcher.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Expand(ctx, "US")
		done <- err
	}()
	<-h.fetcher.entered
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// The fetch keeps going and fills the cache for the next caller.
	close(h.fetcher.release)
	assert.Eventually(t, func() bool {
		return h.orch.CountryState("US") == Enriched
	}, 2*time.Second, 10*time.Millisecond)

	d, err := h.orch.Expand(context.Background(), "US")
	require.NoError(t, err)
	assert.True(t, d.DeepLinkSupported)
	assert.Equal(t, 1, h.fetcher.count())
}

func TestExpandPreconditions(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Expand(context.Background(), "US")
	assert.ErrorIs(t, err, ErrNoTitle)

	_, err = h.orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)

	_, err = h.orch.Expand(context.Background(), "KP")
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Zero(t, h.fetcher.count())
}

func TestNilRegionsAllowsEveryCountry(t *testing.T) {
	fetcher := &fakeFetcher{html: huluPage}
	orch, err := New(Options{
		Metadata:  &fakeMetadata{titles: []media.Title{moon}, raw: map[int64]media.RawAvailability{moon.ID: moonAvailability()}},
		Fetcher:   fetcher,
		Extractor: extract.New(),
	})
	require.NoError(t, err)

	_, err = orch.Lookup(context.Background(), "moon")
	require.NoError(t, err)
	_, err = orch.Expand(context.Background(), "KP")
	assert.NoError(t, err)
}

func TestWatchPageURL(t *testing.T) {
	series := media.Title{ID: 1399, Kind: media.Series}
	assert.Equal(t, "https://www.themoviedb.org/tv/1399/watch?locale=DE", WatchPageURL(series, "DE", ""))
	assert.Equal(t, "https://example.test/x", WatchPageURL(series, "DE", "https://example.test/x"))
}
