// Package provider defines the interface for metadata sources and the
// implementation that talks to the streamscout relay.
package provider

import (
	"context"
	"errors"
	"fmt"

	"streamscout/internal/media"
)

// ErrNoResults is returned by Search when no movie or series matched.
var ErrNoResults = errors.New("no results")

// Provider is the interface that metadata sources must implement.
type Provider interface {
	// Search returns candidate titles for a free-text query, best match first.
	Search(ctx context.Context, query string) ([]media.Title, error)

	// Availability returns the per-country subscription offers for a title.
	Availability(ctx context.Context, title media.Title) (media.RawAvailability, error)
}

// FormatDisplayTitle renders a title as "Name (Year) [Movie|TV]".
func FormatDisplayTitle(t media.Title) string {
	label := "Movie"
	if t.Kind == media.Series {
		label = "TV"
	}
	if t.Year > 0 {
		return fmt.Sprintf("%s (%d) [%s]", t.Name, t.Year, label)
	}
	return fmt.Sprintf("%s [%s]", t.Name, label)
}
