package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"streamscout/internal/history"
	"streamscout/internal/media"
	"streamscout/internal/provider"
	"streamscout/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Look up a title from the lookup history again",
	Args:  cobra.NoArgs,
	RunE:  historyRun,
}

var historyRemoveCmd = &cobra.Command{
	Use:   "rm <n>",
	Short: "Remove the Nth entry (as listed by history) from the history",
	Args:  cobra.ExactArgs(1),
	RunE:  historyRemoveRun,
}

func init() {
	historyCmd.AddCommand(historyRemoveCmd)
}

func historyRun(cmd *cobra.Command, args []string) error {
	entries, err := history.Load()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No history entries found.")
		return nil
	}

	if flagJSON {
		list := make([]titleJSON, len(entries))
		for i, e := range entries {
			list[i] = titleJSON{ID: e.Title.ID, Kind: e.Title.Kind.String(), Name: e.Title.Name, Year: e.Title.Year}
		}
		return writeJSON(out, list)
	}

	items := history.FormatForDisplay(entries)
	tty := interactive()

	var selected media.HistoryEntry
	switch {
	case flagPick > 0:
		if flagPick > len(entries) {
			return fmt.Errorf("--pick %d out of range (%d entries)", flagPick, len(entries))
		}
		selected = entries[flagPick-1]
	case tty:
		idx, err := ui.Select("History", items)
		if err != nil {
			return err
		}
		selected = entries[idx]
	default:
		for i, item := range items {
			fmt.Fprintf(out, "%3d  %s\n", i+1, item)
		}
		return nil
	}

	debugf("re-resolving: %s (ID: %d)", provider.FormatDisplayTitle(selected.Title), selected.Title.ID)

	orch, err := newSession()
	if err != nil {
		return err
	}
	// Availability is never stored, so the title is always resolved afresh.
	return resolveAndShow(cmd.Context(), out, orch, selected.Title, selected.Query, tty)
}

func historyRemoveRun(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return fmt.Errorf("expected a positive entry number, got %q", args[0])
	}

	entries, err := history.Load()
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if n > len(entries) {
		return fmt.Errorf("entry %d out of range (%d entries)", n, len(entries))
	}

	e := entries[n-1]
	if err := history.Remove(e.Title.ID, e.Title.Kind); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", provider.FormatDisplayTitle(e.Title))
	return nil
}
