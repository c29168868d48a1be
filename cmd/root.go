// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"streamscout/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagJSON      bool
	flagCountries []string
	flagPick      int
	flagRelay     string
	flagLanguage  string
	flagFetchMode string
	flagDebug     bool
)

// cfg holds the loaded configuration (merged: defaults < config file < env < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "streamscout [query]",
	Short: "Find where a movie or show is streaming, country by country",
	Long: `streamscout looks up a movie or TV show and lists the subscription services
that stream it, grouped by provider with the countries each one covers.
Expanding a country fetches its watch page for a JustWatch link and the
quality tiers each service offers there.`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: loadConfig,
	RunE:              searchRun,
	SilenceUsage:      true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Output results as JSON")
	rootCmd.PersistentFlags().StringSliceVarP(&flagCountries, "country", "c", nil, "Enrich these countries (repeatable, e.g. -c US -c GB)")
	rootCmd.PersistentFlags().IntVar(&flagPick, "pick", 0, "Pick the Nth search candidate instead of prompting (1-based)")
	rootCmd.PersistentFlags().StringVar(&flagRelay, "relay", "", "Metadata relay base URL")
	rootCmd.PersistentFlags().StringVarP(&flagLanguage, "language", "l", "", "Display language for titles and country names (e.g. de-DE)")
	rootCmd.PersistentFlags().StringVar(&flagFetchMode, "fetch-mode", "", "Watch page fetch order: direct-first | proxy-first")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(countriesCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(relayCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < env < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagRelay != "" {
		cfg.RelayURL = flagRelay
	}
	if flagLanguage != "" {
		cfg.Language = flagLanguage
	}
	if flagFetchMode != "" {
		cfg.FetchMode = flagFetchMode
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return setupLogging()
}

// setupLogging sends log output to stderr and, when log_file is set, to a
// rotated file as well.
func setupLogging() error {
	if cfg.Debug {
		log.SetPrefix("[streamscout] ")
		log.SetFlags(log.LstdFlags)
	} else {
		log.SetFlags(0)
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		path, err := config.ExpandPath(cfg.LogFile)
		if err != nil {
			return fmt.Errorf("log_file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	log.SetOutput(out)
	return nil
}

// debugf logs a message if debug mode is enabled.
func debugf(format string, args ...interface{}) {
	if cfg != nil && cfg.Debug {
		log.Printf(format, args...)
	}
}

// interactive reports whether both stdin and stdout are terminals.
func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "streamscout %s\n", Version)
	},
}
