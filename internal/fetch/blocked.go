package fetch

import (
	"net/http"
	"strings"
)

// challengeMarkers are substrings of interstitial pages served instead of
// the real document when the origin rejects automated clients.
var challengeMarkers = []string{
	"<title>just a moment...</title>",
	"cf-browser-verification",
	"/cdn-cgi/challenge-platform/",
	"attention required! | cloudflare",
	"enable javascript and cookies to continue",
}

// detectBlocked returns a *BlockedError when the response is an anti-scraping
// interstitial. Only the head of the body is inspected.
func detectBlocked(resp *http.Response, body []byte) error {
	if v := resp.Header.Get("Cf-Mitigated"); strings.EqualFold(v, "challenge") {
		return &BlockedError{Reason: "cf-mitigated: " + v}
	}

	head := body
	if len(head) > 16*1024 {
		head = head[:16*1024]
	}
	lower := strings.ToLower(string(head))
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return &BlockedError{Reason: "challenge page (" + marker + ")"}
		}
	}
	return nil
}
