package extract

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"streamscout/internal/media"
)

func loadFixture(t *testing.T, filename string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + filename)
	if err != nil {
		t.Fatalf("reading test fixture %s: %v", filename, err)
	}
	return string(data)
}

func TestExtractWatchPage(t *testing.T) {
	ex := New().Extract(loadFixture(t, "watch_page.html"))

	if ex.DeepLinkURL != "https://www.justwatch.com/us/movie/moon-2009" {
		t.Errorf("DeepLinkURL = %q, want the JustWatch title page", ex.DeepLinkURL)
	}

	want := map[string][]media.Quality{
		"Netflix": {media.HD, media.UHD},
		"Hulu":    {media.SD, media.HD},
		"MUBI":    {media.SD},
		"Kanopy":  {},
	}
	if !reflect.DeepEqual(ex.QualityByProvider, want) {
		t.Errorf("QualityByProvider = %v, want %v", ex.QualityByProvider, want)
	}

	// Rent and buy sections must not leak in.
	for _, name := range []string{"Apple TV", "Google Play Movies"} {
		if _, ok := ex.QualityByProvider[name]; ok {
			t.Errorf("provider %q from a rent/buy section should be ignored", name)
		}
	}
}

func TestExtractSingleStreamEntry(t *testing.T) {
	html := `<div class="ott_provider"><h3>Stream</h3><ul class="providers">
		<li class="ott_filter_hd ott_filter_4k"><a href="#" title="Watch Foo on Hulu">Hulu</a></li>
	</ul></div>`

	ex := New().Extract(html)
	want := map[string][]media.Quality{"Hulu": {media.HD, media.UHD}}
	if !reflect.DeepEqual(ex.QualityByProvider, want) {
		t.Errorf("QualityByProvider = %v, want %v", ex.QualityByProvider, want)
	}
	if ex.DeepLinkURL != "" {
		t.Errorf("DeepLinkURL = %q, want empty without a summary block", ex.DeepLinkURL)
	}
}

func TestExtractMarkerOrderIndependent(t *testing.T) {
	variants := []string{
		`<li class="ott_filter_4k ott_filter_hd" data-x="1"><a title="Watch X on Max" href="#"></a></li>`,
		`<li data-x="1" class="ott_filter_hd   ott_filter_4k"><a href="#" title="Watch X on Max"></a></li>`,
		`<li><a title="Watch X on Max" href="#"><i class="ott_filter_4k"></i><i class="q ott_filter_hd"></i></a></li>`,
	}
	want := []media.Quality{media.HD, media.UHD}

	for i, li := range variants {
		html := `<div class="ott_provider"><h3>stream</h3><ul class="providers">` + li + `</ul></div>`
		ex := New().Extract(html)
		if got := ex.QualityByProvider["Max"]; !reflect.DeepEqual(got, want) {
			t.Errorf("variant %d: tiers = %v, want %v", i, got, want)
		}
	}
}

func TestExtractNoStreamSection(t *testing.T) {
	html := `<div class="ott_title"></div>
		<div class="ott_provider"><h3>Buy</h3><ul class="providers">
		<li class="ott_filter_hd"><a title="Buy X on iTunes" href="#"></a></li></ul></div>`

	ex := New().Extract(html)
	if len(ex.QualityByProvider) != 0 {
		t.Errorf("expected empty quality map, got %v", ex.QualityByProvider)
	}
	if ex.QualityByProvider == nil {
		t.Error("quality map should be empty, not nil")
	}
}

func TestExtractHeadingIsH3(t *testing.T) {
	html := `<div class="ott_provider"><h2>Stream</h2><h3>Rent</h3><ul class="providers">
		<li class="ott_filter_hd"><a title="Rent X on iTunes" href="#"></a></li></ul></div>`

	ex := New().Extract(html)
	if len(ex.QualityByProvider) != 0 {
		t.Errorf("section headed by h3 Rent should be ignored, got %v", ex.QualityByProvider)
	}
}

func TestExtractIsTotal(t *testing.T) {
	inputs := map[string]string{
		"empty":          "",
		"binary garbage": string([]byte{0x00, 0xff, 0xfe, '<', 0x01, '>', 0x80}),
		"unrelated html": "<html><body><p>Hello</p><a href='https://example.com'>x</a></body></html>",
		"broken markup":  "<<<div class=ott_provider><h3>Stream<ul><li class='ott_filter_hd'><a title='on'",
		"deep nesting":   strings.Repeat("<div>", 5000),
		"plain text":     "Stream on Netflix in 4K",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			ex := New().Extract(input)
			if ex.QualityByProvider == nil {
				t.Fatal("QualityByProvider must never be nil")
			}
			if ex.DeepLinkURL != "" {
				t.Errorf("DeepLinkURL = %q, want empty", ex.DeepLinkURL)
			}
		})
	}
}

func TestDeepLinkMustFollowSummary(t *testing.T) {
	html := `<div><a href="https://www.justwatch.com/us/movie/early">early</a></div>
		<div class="ott_title">Summary</div>`

	if got := New().Extract(html).DeepLinkURL; got != "" {
		t.Errorf("DeepLinkURL = %q, want empty when the only link precedes the summary", got)
	}
}

func TestDeepLinkHost(t *testing.T) {
	html := `<div class="ott_title"></div>
		<p><a href="javascript:void(0)">noop</a></p>
		<a href="https://justwatch.com.evil.example/x">phish</a>
		<p><a href="https://catalog.example.org/us/title/1">catalog</a></p>`

	if got := New().Extract(html).DeepLinkURL; got != "" {
		t.Errorf("default host: DeepLinkURL = %q, want empty", got)
	}

	w := &WatchPage{DeepLinkHost: "example.org"}
	if got := w.Extract(html).DeepLinkURL; got != "https://catalog.example.org/us/title/1" {
		t.Errorf("custom host: DeepLinkURL = %q", got)
	}
}

func TestProviderFromTitle(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"Watch Foo on Hulu", "Hulu"},
		{"Watch Moon on Netflix", "Netflix"},
		{"Watch Game on on Disney Plus", "Disney Plus"},
		{"Watch Once Upon a Time on Amazon Prime Video ", "Amazon Prime Video"},
		{"on Max", "Max"},
		{"Watch Moon", ""},
		{"Watch Foo on", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := providerFromTitle(tt.title)
			if got != tt.expected {
				t.Errorf("providerFromTitle(%q) = %q, want %q", tt.title, got, tt.expected)
			}
		})
	}
}
