package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hadichaudhri/trackerscope/internal/rules"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

// Version is set at build time.
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "trackerscope",
	Short: "Trackerscope — tracking detection and blocking engine",
	Long: `Trackerscope consumes browsing-session event streams and decides,
per event, whether to block, modify, log, or allow it using ordered
detection rules and fingerprinting heuristics. Logged decisions feed a
cross-domain tracking graph and a privacy risk assessment.`,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("trackerscope v%s\n", Version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "trackerscope").Logger()
}

// openStores opens the decision database and loads the rule set over it.
func openStores(dsn string, log zerolog.Logger) (*store.Store, *rules.Store, error) {
	db, err := store.Open(dsn, log)
	if err != nil {
		return nil, nil, err
	}
	ruleStore, err := rules.NewStore(db)
	if err != nil {
		return nil, nil, err
	}
	return db, ruleStore, nil
}
