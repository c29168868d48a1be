package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"streamscout/internal/media"
)

// DefaultDeepLinkHost is the catalog the watch page links out to.
const DefaultDeepLinkHost = "justwatch.com"

const (
	summarySelector  = ".ott_title"
	sectionSelector  = "div.ott_provider"
	headingSelector  = "h3"
	entrySelector    = "ul.providers > li"
	streamSectionKey = "stream"
)

// providerTitlePattern captures the provider name after the last word "on",
// e.g. "Watch Moon on Hulu" -> "Hulu".
var providerTitlePattern = regexp.MustCompile(`^.*\bon\s+(.+)$`)

// qualityMarkers maps class tokens to tiers. Matching is per class token, so
// the order of classes in the attribute is irrelevant.
var qualityMarkers = []struct {
	selector string
	tier     media.Quality
}{
	{".ott_filter_sd", media.SD},
	{".ott_filter_hd", media.HD},
	{".ott_filter_4k", media.UHD},
}

// WatchPage extracts enrichment data from a TMDB watch page.
// The zero value is ready to use.
type WatchPage struct {
	// DeepLinkHost is the outbound catalog host; subdomains match too.
	// Empty means DefaultDeepLinkHost.
	DeepLinkHost string
}

func (w *WatchPage) host() string {
	if h := strings.ToLower(strings.TrimSpace(w.DeepLinkHost)); h != "" {
		return h
	}
	return DefaultDeepLinkHost
}

// Extract parses html and returns the deep link and per-provider quality
// tiers of the "Stream" section. Tiers are in canonical order (SD, HD, 4K).
// Providers listed without any quality marker map to an empty slice.
func (w *WatchPage) Extract(html string) (ex media.Extraction) {
	ex = emptyExtraction()
	defer func() {
		if r := recover(); r != nil {
			ex = emptyExtraction()
		}
	}()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ex
	}

	ex.DeepLinkURL = parseDeepLink(doc, w.host())
	ex.QualityByProvider = parseQualities(doc)
	return ex
}

func emptyExtraction() media.Extraction {
	return media.Extraction{QualityByProvider: map[string][]media.Quality{}}
}

// parseDeepLink returns the first link to host that follows the summary block.
func parseDeepLink(doc *goquery.Document, host string) string {
	summary := doc.Find(summarySelector).First()
	if summary.Length() == 0 {
		return ""
	}

	var link string
	summary.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		anchors := sib.Filter("a[href]").AddSelection(sib.Find("a[href]"))
		anchors.EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href := strings.TrimSpace(a.AttrOr("href", ""))
			if isHostLink(href, host) {
				link = href
				return false
			}
			return true
		})
		return link == ""
	})

	return link
}

func isHostLink(href, host string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	h := strings.ToLower(u.Hostname())
	return h == host || strings.HasSuffix(h, "."+host)
}

// parseQualities collects tiers per provider from the "Stream" sections only;
// rent and buy sections are ignored.
func parseQualities(doc *goquery.Document) map[string][]media.Quality {
	sets := make(map[string]map[media.Quality]bool)

	doc.Find(sectionSelector).Each(func(_ int, section *goquery.Selection) {
		heading := strings.TrimSpace(section.Find(headingSelector).First().Text())
		if !strings.EqualFold(heading, streamSectionKey) {
			return
		}

		section.Find(entrySelector).Each(func(_ int, entry *goquery.Selection) {
			name := entryProvider(entry)
			if name == "" {
				return
			}
			set, ok := sets[name]
			if !ok {
				set = make(map[media.Quality]bool)
				sets[name] = set
			}
			for _, m := range qualityMarkers {
				if entry.Is(m.selector) || entry.Find(m.selector).Length() > 0 {
					set[m.tier] = true
				}
			}
		})
	})

	out := make(map[string][]media.Quality, len(sets))
	for name, set := range sets {
		tiers := make([]media.Quality, 0, len(set))
		for q := range set {
			tiers = append(tiers, q)
		}
		out[name] = media.SortQualities(tiers)
	}
	return out
}

// entryProvider returns the provider named by the first anchor title that
// matches "... on <Provider>".
func entryProvider(entry *goquery.Selection) string {
	var name string
	entry.Find("a[title]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		name = providerFromTitle(a.AttrOr("title", ""))
		return name == ""
	})
	return name
}

func providerFromTitle(title string) string {
	m := providerTitlePattern.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
