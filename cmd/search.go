package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"streamscout/internal/history"
	"streamscout/internal/lookup"
	"streamscout/internal/media"
	"streamscout/internal/provider"
	"streamscout/internal/ui"
)

// maxConcurrentEnrich bounds the eager --country enrichments.
const maxConcurrentEnrich = 4

// searchRun is the default command: streamscout <query>
func searchRun(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	tty := interactive() && !flagJSON

	if strings.TrimSpace(query) == "" {
		if !tty {
			return fmt.Errorf("no search query provided")
		}
		var err error
		query, err = ui.Input("Search:")
		if err != nil {
			return err
		}
	}

	debugf("searching for: %s", query)

	orch, err := newSession()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	titles, err := orch.Search(ctx, query)
	if errors.Is(err, lookup.ErrNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "No movies or shows found for %q.\n", query)
		return nil
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	title, err := pickTitle(titles, tty)
	if err != nil {
		return err
	}
	debugf("selected: %s (ID: %d, kind: %s)", title.Name, title.ID, title.Kind)

	return resolveAndShow(ctx, cmd.OutOrStdout(), orch, title, query, tty)
}

// pickTitle chooses a candidate: --pick, an interactive prompt, or the best match.
func pickTitle(titles []media.Title, tty bool) (media.Title, error) {
	if flagPick > 0 {
		if flagPick > len(titles) {
			return media.Title{}, fmt.Errorf("--pick %d out of range (%d candidates)", flagPick, len(titles))
		}
		return titles[flagPick-1], nil
	}
	if !tty || len(titles) == 1 {
		return titles[0], nil
	}

	items := make([]string, len(titles))
	for i, t := range titles {
		items[i] = provider.FormatDisplayTitle(t)
	}
	idx, err := ui.Select("Select", items)
	if err != nil {
		return media.Title{}, err
	}
	return titles[idx], nil
}

// resolveAndShow resolves t, records it in the history and presents the result.
func resolveAndShow(ctx context.Context, w io.Writer, orch *lookup.Orchestrator, t media.Title, query string, tty bool) error {
	res, err := orch.Resolve(ctx, t)
	if err != nil {
		return fmt.Errorf("looking up availability: %w", err)
	}

	if cfg.History {
		if err := history.Save(media.HistoryEntry{Title: t, Query: query}); err != nil {
			debugf("saving history: %v", err)
		}
	}

	if tty {
		return ui.Browse(ctx, orch, res)
	}

	details, skipped, err := enrichCountries(ctx, orch, flagCountries)
	if err != nil {
		return err
	}
	for _, code := range skipped {
		fmt.Fprintf(os.Stderr, "%s is not eligible for enrichment, skipped.\n", code)
	}

	if flagJSON {
		return writeJSON(w, newResultJSON(res, details))
	}
	writePlain(w, res, details)
	return nil
}

// enrichCountries expands the requested countries concurrently. Ineligible
// codes are returned in skipped.
func enrichCountries(ctx context.Context, orch *lookup.Orchestrator, codes []string) (map[media.CountryCode]media.CountryDetail, []media.CountryCode, error) {
	details := make(map[media.CountryCode]media.CountryDetail)
	var (
		mu      sync.Mutex
		skipped []media.CountryCode
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEnrich)
	seen := make(map[media.CountryCode]bool)
	for _, raw := range codes {
		code := media.NormalizeCountry(raw)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true

		g.Go(func() error {
			d, err := orch.Expand(gctx, code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, lookup.ErrNotEligible):
				skipped = append(skipped, code)
				return nil
			case err != nil:
				return fmt.Errorf("enriching %s: %w", code, err)
			}
			details[code] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	sort.Slice(skipped, func(i, j int) bool { return skipped[i] < skipped[j] })
	return details, skipped, nil
}

type titleJSON struct {
	ID   int64  `json:"id"`
	Kind string `json:"kind"`
	Name string `json:"name"`
	Year int    `json:"year,omitempty"`
}

type resultJSON struct {
	Title     titleJSON                                   `json:"title"`
	Providers []media.ProviderEntry                       `json:"providers"`
	Details   map[media.CountryCode]media.CountryDetail `json:"details,omitempty"`
}

func newResultJSON(res *lookup.Resolution, details map[media.CountryCode]media.CountryDetail) resultJSON {
	return resultJSON{
		Title: titleJSON{
			ID:   res.Title.ID,
			Kind: res.Title.Kind.String(),
			Name: res.Title.Name,
			Year: res.Title.Year,
		},
		Providers: res.Providers,
		Details:   details,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePlain(w io.Writer, res *lookup.Resolution, details map[media.CountryCode]media.CountryDetail) {
	fmt.Fprintln(w, provider.FormatDisplayTitle(res.Title))
	fmt.Fprintln(w)

	if res.Empty() {
		fmt.Fprintln(w, "Not available on any subscription service.")
		return
	}

	for _, p := range res.Providers {
		noun := "countries"
		if len(p.Countries) == 1 {
			noun = "country"
		}
		fmt.Fprintf(w, "%s (%d %s)\n", p.Name, len(p.Countries), noun)

		names := make([]string, len(p.Countries))
		for i, c := range p.Countries {
			names[i] = c.Name
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(names, ", "))
	}

	if len(details) == 0 {
		return
	}

	codes := make([]media.CountryCode, 0, len(details))
	for code := range details {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	fmt.Fprintln(w)
	for _, code := range codes {
		writeDetail(w, res, code, details[code])
	}
}

func writeDetail(w io.Writer, res *lookup.Resolution, code media.CountryCode, d media.CountryDetail) {
	fmt.Fprintf(w, "%s:\n", code)
	if d.DeepLinkSupported {
		fmt.Fprintf(w, "  JustWatch: %s\n", d.JustWatchURL)
	}

	listed := false
	for _, p := range res.Providers {
		if !p.Has(code) {
			continue
		}
		if tiers, ok := d.QualityByProvider[p.Name]; ok && len(tiers) > 0 {
			fmt.Fprintf(w, "  %s: %s\n", p.Name, media.JoinQualities(tiers))
			listed = true
		}
	}
	if !d.DeepLinkSupported && !listed {
		fmt.Fprintln(w, "  details unavailable")
	}
}
