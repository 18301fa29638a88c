package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hadichaudhri/trackerscope/internal/audit"
	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/ingest"
	"github.com/hadichaudhri/trackerscope/internal/pipeline"
)

var inspectRulesFile string

var inspectCmd = &cobra.Command{
	Use:   "inspect [event JSON]",
	Short: "Evaluate a single event and show the decision",
	Long: `Run one JSON event through the detection engine against an ephemeral
rule set and print the decision. Useful for checking what a rule document
does to a given event before monitoring with it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectRulesFile, "rules", "", "Rules YAML file (default: built-in rule set)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	raw := strings.Join(args, " ")

	db, ruleStore, err := openStores(":memory:", logger)
	if err != nil {
		return err
	}
	if err := loadRules(ruleStore, inspectRulesFile); err != nil {
		return err
	}

	session := pipeline.NewSession("inspect", "", ruleStore, db, audit.NopLogger(), logger)

	var decision pipeline.DecisionEvent
	session.AddObserver(func(de pipeline.DecisionEvent) { decision = de })

	reader := ingest.NewReader(logger)
	err = reader.Read(strings.NewReader(raw), func(e *event.Event) error {
		_, perr := session.Process(e)
		return perr
	})
	if err != nil {
		return err
	}
	if reader.Lines == 0 || reader.Skipped == reader.Lines {
		return fmt.Errorf("no decodable event in input")
	}

	fmt.Fprintf(os.Stderr, "\n=== Decision ===\n\n")
	fmt.Fprintf(os.Stderr, "  Action: %s\n", decision.Decision.Action)
	fmt.Fprintf(os.Stderr, "  Reason: %s\n", decision.Decision.Reason)
	if decision.Decision.RuleID != "" {
		fmt.Fprintf(os.Stderr, "  Rule:   %s\n", decision.Decision.RuleID)
	}
	if decision.Decision.FingerprintKind != "" {
		fmt.Fprintf(os.Stderr, "  Kind:   %s\n", decision.Decision.FingerprintKind)
	}
	fmt.Fprintln(os.Stderr)

	out, _ := json.MarshalIndent(decision, "", "  ")
	fmt.Fprintf(os.Stdout, "%s\n", out)
	return nil
}
