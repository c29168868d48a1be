package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"streamscout/internal/extract"
	"streamscout/internal/media"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file|url>",
	Short: "Extract the deep link and quality tiers from a watch page",
	Long: `Runs the watch page extractor on a saved HTML file or a URL, fetched the
same way lookups fetch it. Useful for checking the page markup.`,
	Args: cobra.ExactArgs(1),
	RunE: extractRun,
}

func extractRun(cmd *cobra.Command, args []string) error {
	src := args[0]

	var html string
	if strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "http://") {
		f, err := newFetcher()
		if err != nil {
			return err
		}
		html, err = f.FetchHTML(cmd.Context(), src)
		if err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("reading %s: %w", src, err)
		}
		html = string(data)
	}

	detail := media.DetailFromExtraction(extract.New().Extract(html))
	out := cmd.OutOrStdout()
	if flagJSON {
		return writeJSON(out, detail)
	}

	if detail.DeepLinkSupported {
		fmt.Fprintf(out, "JustWatch: %s\n", detail.JustWatchURL)
	} else {
		fmt.Fprintln(out, "JustWatch: none")
	}

	names := make([]string, 0, len(detail.QualityByProvider))
	for name := range detail.QualityByProvider {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tiers := media.JoinQualities(detail.QualityByProvider[name])
		if tiers == "" {
			tiers = "-"
		}
		fmt.Fprintf(out, "%s: %s\n", name, tiers)
	}
	return nil
}
