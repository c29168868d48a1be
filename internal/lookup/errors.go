package lookup

import "errors"

var (
	// ErrNotFound means the query matched nothing, or the title has no
	// subscription availability anywhere. It is informational.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable wraps metadata transport failures.
	ErrUpstreamUnavailable = errors.New("metadata upstream unavailable")

	// ErrStale is returned when a newer search replaced the result an
	// operation was working on. The result was dropped.
	ErrStale = errors.New("result superseded by a newer lookup")

	// ErrNotEligible is returned by Expand for countries outside the
	// enrichment allow-list.
	ErrNotEligible = errors.New("country not eligible for enrichment")

	// ErrEmptyQuery is returned by Search for a blank query.
	ErrEmptyQuery = errors.New("search query is empty")

	// ErrNoTitle is returned by Expand before any title was resolved.
	ErrNoTitle = errors.New("no resolved title")
)
