package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List the countries eligible for enrichment",
	Args:  cobra.NoArgs,
	RunE:  countriesRun,
}

func countriesRun(cmd *cobra.Command, args []string) error {
	all := newRegions().All()
	out := cmd.OutOrStdout()

	if flagJSON {
		return writeJSON(out, all)
	}
	for _, c := range all {
		fmt.Fprintf(out, "%s  %s\n", c.Code, c.Name)
	}
	return nil
}
