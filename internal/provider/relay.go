package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"streamscout/internal/httputil"
	"streamscout/internal/media"
)

// maxSearchPages limits how many pages of search results to fetch.
const maxSearchPages = 3

// Relay implements Provider against a TMDB-shaped relay. The relay holds the
// API key, so requests from here carry none.
type Relay struct {
	base     string // e.g. "http://127.0.0.1:8787"
	language string
	client   *http.Client
}

// NewRelay creates a Relay client for base, requesting results in language.
func NewRelay(base, language string) *Relay {
	return &Relay{
		base:     strings.TrimRight(base, "/"),
		language: language,
		client:   httputil.NewClient(),
	}
}

// WithClient replaces the HTTP client. Used by tests.
func (r *Relay) WithClient(c *http.Client) *Relay {
	r.client = c
	return r
}

// Search returns movie and series matches for query, fetching up to
// maxSearchPages pages. A failure after the first page keeps what was found.
func (r *Relay) Search(ctx context.Context, query string) ([]media.Title, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	page, err := r.searchPage(ctx, query, 1)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}

	results := page.titles()
	pages := page.TotalPages
	if pages > maxSearchPages {
		pages = maxSearchPages
	}
	for n := 2; n <= pages; n++ {
		next, err := r.searchPage(ctx, query, n)
		if err != nil {
			break // Stop on error but return what we have
		}
		results = append(results, next.titles()...)
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoResults, query)
	}
	return results, nil
}

func (r *Relay) searchPage(ctx context.Context, query string, page int) (*searchResponse, error) {
	u := fmt.Sprintf("%s/search/multi?query=%s&language=%s&page=%d&include_adult=false",
		r.base, httputil.EncodeQuery(query), url.QueryEscape(r.language), page)

	body, err := httputil.GetJSON(ctx, r.client, u)
	if err != nil {
		return nil, err
	}
	return parseSearchResponse(body)
}

// Availability returns the flatrate offers for t, countries in the order the
// relay listed them.
func (r *Relay) Availability(ctx context.Context, t media.Title) (media.RawAvailability, error) {
	if err := httputil.ValidateTitleID(t.ID); err != nil {
		return media.RawAvailability{}, err
	}

	u := httputil.BuildURL(r.base, t.Kind.PathSegment(), strconv.FormatInt(t.ID, 10), "watch", "providers")
	req, err := httputil.NewRequest(ctx, u, "application/json")
	if err != nil {
		return media.RawAvailability{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return media.RawAvailability{}, fmt.Errorf("fetching availability: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return media.RawAvailability{}, &httputil.StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	raw, err := parseAvailability(io.LimitReader(resp.Body, httputil.MaxJSONBytes))
	if err != nil {
		return media.RawAvailability{}, fmt.Errorf("decoding availability for %s %d: %w", t.Kind, t.ID, err)
	}
	return raw, nil
}
