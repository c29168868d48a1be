package relay

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"streamscout/internal/httputil"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("query") == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}
	s.forward(w, r, "/search/multi")
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := httputil.ParseTitleID(vars["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.forward(w, r, fmt.Sprintf("/%s/%d/watch/providers", vars["kind"], id))
}

// forward relays a GET to path on the upstream. Only allow-listed query
// parameters are copied; the API key is always set here.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, path string) {
	if err := s.limiter.Wait(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "rate limited")
		return
	}

	in := r.URL.Query()
	out := url.Values{}
	for _, p := range forwardedParams {
		if v := in.Get(p); v != "" {
			out.Set(p, v)
		}
	}
	out.Set("api_key", s.apiKey)
	target := s.upstream + path + "?" + out.Encode()

	req, err := httputil.NewRequest(r.Context(), target, "application/json")
	if err != nil {
		log.Printf("[relay] %s: building request: %v", requestIDFrom(r.Context()), err)
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.upstreamErrors.Inc()
		log.Printf("[relay] %s: %s: %v", requestIDFrom(r.Context()), httputil.RedactURL(target), stripURL(err))
		writeError(w, http.StatusBadGateway, "upstream request failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		s.metrics.upstreamErrors.Inc()
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, io.LimitReader(resp.Body, httputil.MaxJSONBytes)); err != nil {
		log.Printf("[relay] %s: copying response: %v", requestIDFrom(r.Context()), err)
	}
}

// stripURL drops the request URL from transport errors; it carries the key.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
