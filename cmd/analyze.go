package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hadichaudhri/trackerscope/internal/report"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

var (
	analyzeDB        string
	analyzeDomain    string
	analyzeType      string
	analyzeThirdOnly bool
	analyzeTop       int
	analyzeMaxChain  int
	analyzeGraphOnly bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the decision log of past sessions",
	Long: `Rebuild the cross-domain tracking graph from the persisted decision
log, rank central trackers, enumerate tracking chains, and score the
privacy risk. The report is printed as JSON.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDB, "db", "trackerscope.db", "Path to the decision database")
	analyzeCmd.Flags().StringVar(&analyzeDomain, "domain", "", "Only records for this domain")
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "Only records of this event kind")
	analyzeCmd.Flags().BoolVar(&analyzeThirdOnly, "third-party-only", false, "Only third-party records")
	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 10, "How many central trackers to report")
	analyzeCmd.Flags().IntVar(&analyzeMaxChain, "max-chain", 4, "Longest tracking chain to enumerate")
	analyzeCmd.Flags().BoolVar(&analyzeGraphOnly, "graph", false, "Print only the node/edge list")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	db, err := store.Open(analyzeDB, logger)
	if err != nil {
		return err
	}

	builder := report.NewBuilder(db)
	builder.TopTrackers = analyzeTop
	builder.MaxChainLength = analyzeMaxChain

	rpt, err := builder.Build(store.Filter{
		Domain:         analyzeDomain,
		RequestType:    analyzeType,
		ThirdPartyOnly: analyzeThirdOnly,
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if analyzeGraphOnly {
		return enc.Encode(rpt.Graph)
	}
	return enc.Encode(rpt)
}
