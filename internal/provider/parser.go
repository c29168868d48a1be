package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"streamscout/internal/media"
)

type searchResponse struct {
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Results    []searchResult `json:"results"`
}

type searchResult struct {
	ID           int64  `json:"id"`
	MediaType    string `json:"media_type"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

func parseSearchResponse(body []byte) (*searchResponse, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return &resp, nil
}

// titles keeps movie and tv results, dropping people and malformed rows.
func (s *searchResponse) titles() []media.Title {
	var out []media.Title
	for _, r := range s.Results {
		if r.ID <= 0 {
			continue
		}

		var t media.Title
		switch r.MediaType {
		case "movie":
			t = media.Title{ID: r.ID, Kind: media.Movie, Name: r.Title, Date: r.ReleaseDate}
		case "tv":
			t = media.Title{ID: r.ID, Kind: media.Series, Name: r.Name, Date: r.FirstAirDate}
		default:
			continue
		}

		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			continue
		}
		t.Year = parseYear(t.Date)
		out = append(out, t)
	}
	return out
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// countryEntry is one region of the watch/providers payload. Only the
// subscription list is decoded.
type countryEntry struct {
	Link     string        `json:"link"`
	Flatrate []media.Offer `json:"flatrate"`
}

// parseAvailability decodes a watch/providers document token by token so
// that regions keep the order they appear in. A map would lose it.
func parseAvailability(r io.Reader) (media.RawAvailability, error) {
	raw := media.RawAvailability{Countries: []media.CountryOffers{}}
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return raw, err
	}

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return raw, err
		}
		if key != "results" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return raw, fmt.Errorf("skipping %q: %w", key, err)
			}
			continue
		}

		tok, err := dec.Token()
		if err != nil {
			return raw, err
		}
		if tok == nil {
			continue // "results": null
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			return raw, fmt.Errorf("results: expected object, got %v", tok)
		}

		for dec.More() {
			code, err := readKey(dec)
			if err != nil {
				return raw, err
			}
			var entry countryEntry
			if err := dec.Decode(&entry); err != nil {
				return raw, fmt.Errorf("region %s: %w", code, err)
			}

			cc := media.NormalizeCountry(code)
			if len(cc) != 2 {
				continue
			}
			raw.Countries = append(raw.Countries, media.CountryOffers{
				Code:     cc,
				Link:     entry.Link,
				Flatrate: validOffers(entry.Flatrate),
			})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return raw, err
		}
	}

	return raw, expectDelim(dec, '}')
}

func validOffers(offers []media.Offer) []media.Offer {
	var out []media.Offer
	for _, o := range offers {
		if o.ProviderID <= 0 || strings.TrimSpace(o.ProviderName) == "" {
			continue
		}
		o.ProviderName = strings.TrimSpace(o.ProviderName)
		out = append(out, o)
	}
	return out
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}
