package cmd

import (
	"github.com/spf13/cobra"

	"streamscout/internal/relay"
)

var flagListen string

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the metadata relay that holds the TMDB API key",
	Long: `Serves the two metadata endpoints streamscout uses and forwards them to TMDB
with the API key from TMDB_API_KEY or relay.api_key. Clients never see the key.`,
	Args: cobra.NoArgs,
	RunE: relayRun,
}

func init() {
	relayCmd.Flags().StringVar(&flagListen, "listen", "", "Address to listen on (default from config, 127.0.0.1:8787)")
}

func relayRun(cmd *cobra.Command, args []string) error {
	addr := cfg.Relay.Listen
	if flagListen != "" {
		addr = flagListen
	}

	srv, err := relay.New(relay.Options{
		Upstream:      cfg.Relay.Upstream,
		APIKey:        cfg.Relay.APIKey,
		RatePerSecond: cfg.Relay.RatePerSecond,
		Burst:         cfg.Relay.Burst,
	})
	if err != nil {
		return err
	}
	return srv.ListenAndServe(cmd.Context(), addr)
}
