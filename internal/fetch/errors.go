package fetch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFetchFailed is matched by every *Failure.
var ErrFetchFailed = errors.New("fetch failed")

// StatusError reports a non-2xx response on one path.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// BlockedError reports that the origin answered with an anti-scraping page
// instead of the requested document.
type BlockedError struct {
	Reason string // e.g. "cf-mitigated: challenge"
}

func (e *BlockedError) Error() string {
	if e == nil || strings.TrimSpace(e.Reason) == "" {
		return "blocked"
	}
	return "blocked: " + e.Reason
}

// Attempt records one retrieval path tried for a URL.
type Attempt struct {
	Path Path
	Err  error
}

// Failure is returned when every path failed.
type Failure struct {
	URL      string
	Attempts []Attempt
}

func (f *Failure) Error() string {
	parts := make([]string, len(f.Attempts))
	for i, a := range f.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Path, a.Err)
	}
	return fmt.Sprintf("fetching %s: %s", f.URL, strings.Join(parts, "; "))
}

// Reason summarises why the fetch failed.
func (f *Failure) Reason() string {
	if len(f.Attempts) == 0 {
		return "no retrieval path configured"
	}
	return f.Attempts[len(f.Attempts)-1].Err.Error()
}

func (f *Failure) Is(target error) bool { return target == ErrFetchFailed }

func (f *Failure) Unwrap() []error {
	errs := make([]error, len(f.Attempts))
	for i, a := range f.Attempts {
		errs[i] = a.Err
	}
	return errs
}
