// Package fetch retrieves raw watch-page HTML for enrichment. A direct GET is
// paired with an indirect path through a third-party relay that fetches the
// page on the caller's behalf; whichever is configured first is tried first
// and the other is the single fallback.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamscout/internal/httputil"
)

// Path names a retrieval path.
type Path string

const (
	Direct Path = "direct"
	Proxy  Path = "proxy"
)

// Modes accepted by Options.Mode.
const (
	DirectFirst = "direct-first"
	ProxyFirst  = "proxy-first"
)

const (
	defaultStageTimeout = 10 * time.Second
	defaultMaxBodyBytes = 5 * 1024 * 1024
	errorBodyPeekBytes  = 64 * 1024
	urlPlaceholder      = "{url}"
)

// Options configures a Selector. Zero values get defaults.
type Options struct {
	Mode         string        // DirectFirst (default) or ProxyFirst
	ProxyURL     string        // Relay URL template containing {url}
	StageTimeout time.Duration // Bound on each path
	MaxBodyBytes int64
	Client       *http.Client
	Debugf       func(format string, args ...any)
}

// Selector fetches HTML trying each configured path once, in order.
type Selector struct {
	order        []Path
	proxyURL     string
	stageTimeout time.Duration
	maxBodyBytes int64
	client       *http.Client
	debugf       func(format string, args ...any)
}

// New builds a Selector from opts.
func New(opts Options) (*Selector, error) {
	s := &Selector{
		proxyURL:     strings.TrimSpace(opts.ProxyURL),
		stageTimeout: opts.StageTimeout,
		maxBodyBytes: opts.MaxBodyBytes,
		client:       opts.Client,
		debugf:       opts.Debugf,
	}

	switch opts.Mode {
	case "", DirectFirst:
		s.order = []Path{Direct, Proxy}
	case ProxyFirst:
		s.order = []Path{Proxy, Direct}
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", opts.Mode)
	}

	if s.proxyURL == "" {
		s.order = []Path{Direct}
	} else if !strings.Contains(s.proxyURL, urlPlaceholder) {
		return nil, fmt.Errorf("proxy URL %q has no %s placeholder", s.proxyURL, urlPlaceholder)
	}

	if s.stageTimeout <= 0 {
		s.stageTimeout = defaultStageTimeout
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = defaultMaxBodyBytes
	}
	if s.client == nil {
		s.client = httputil.NewClient()
	}
	if s.debugf == nil {
		s.debugf = func(string, ...any) {}
	}
	return s, nil
}

// Order returns the paths in the order they are tried.
func (s *Selector) Order() []Path {
	return append([]Path(nil), s.order...)
}

// FetchHTML returns the page at target. When every path fails the error is a
// *Failure and errors.Is(err, ErrFetchFailed) holds.
func (s *Selector) FetchHTML(ctx context.Context, target string) (string, error) {
	if err := httputil.ValidateURL(target); err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	failure := &Failure{URL: target}
	for _, p := range s.order {
		body, err := s.fetchStage(ctx, p, target)
		if err == nil {
			s.debugf("fetch %s via %s: %d bytes", target, p, len(body))
			return body, nil
		}
		s.debugf("fetch %s via %s failed: %v", target, p, err)
		failure.Attempts = append(failure.Attempts, Attempt{Path: p, Err: err})
		if ctx.Err() != nil {
			break
		}
	}
	return "", failure
}

func (s *Selector) fetchStage(ctx context.Context, p Path, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.stageTimeout)
	defer cancel()
	return s.get(ctx, s.pathURL(p, target))
}

func (s *Selector) pathURL(p Path, target string) string {
	if p == Proxy {
		return strings.ReplaceAll(s.proxyURL, urlPlaceholder, url.QueryEscape(target))
	}
	return target
}

func (s *Selector) get(ctx context.Context, u string) (string, error) {
	req, err := httputil.NewRequest(ctx, u, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		peek, _ := readBody(resp, errorBodyPeekBytes)
		if blocked := detectBlocked(resp, peek); blocked != nil {
			return "", blocked
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyPeekBytes))
		return "", &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := readBody(resp, s.maxBodyBytes)
	if err != nil {
		return "", err
	}
	if blocked := detectBlocked(resp, body); blocked != nil {
		return "", blocked
	}
	return string(body), nil
}
