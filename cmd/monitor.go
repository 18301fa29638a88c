package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hadichaudhri/trackerscope/internal/audit"
	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/ingest"
	"github.com/hadichaudhri/trackerscope/internal/pipeline"
	"github.com/hadichaudhri/trackerscope/internal/report"
	"github.com/hadichaudhri/trackerscope/internal/rules"
	"github.com/hadichaudhri/trackerscope/internal/store"
)

var (
	monitorDB         string
	monitorEvents     string
	monitorRulesFile  string
	monitorWatch      bool
	monitorFirstParty string
	monitorAuditFile  string
	monitorTop        int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Process a browsing-session event stream",
	Long: `Read JSONL events from a capture file (or stdin with "-"), run each
through the detection engine, persist the decision log, and print the
session report when the stream ends.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorDB, "db", "trackerscope.db", "Path to the decision database")
	monitorCmd.Flags().StringVar(&monitorEvents, "events", "-", `Event stream file ("-" for stdin)`)
	monitorCmd.Flags().StringVar(&monitorRulesFile, "rules", "", "Rules YAML file to import before processing")
	monitorCmd.Flags().BoolVar(&monitorWatch, "watch", false, "Hot-reload the rules file on change")
	monitorCmd.Flags().StringVar(&monitorFirstParty, "first-party", "", "First-party domain of the session")
	monitorCmd.Flags().StringVar(&monitorAuditFile, "audit-log", "", "Path to the decision stream file (default: stderr)")
	monitorCmd.Flags().IntVar(&monitorTop, "top", 10, "How many central trackers to report")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	db, ruleStore, err := openStores(monitorDB, logger)
	if err != nil {
		return err
	}
	if err := loadRules(ruleStore, monitorRulesFile); err != nil {
		return err
	}

	var decisions *audit.Logger
	if monitorAuditFile != "" {
		decisions = audit.NewRotatingLogger(monitorAuditFile)
		logger.Info().Str("path", monitorAuditFile).Msg("decision stream enabled")
	} else {
		decisions = audit.NewStderrLogger()
	}

	manager := pipeline.NewManager(ruleStore, db, decisions, logger)
	session := manager.Create(monitorFirstParty)

	stats := report.NewStats()
	session.AddObserver(stats.Record)

	recent := report.NewRingBuffer(0)
	session.AddObserver(recent.Add)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if monitorWatch && monitorRulesFile != "" {
		watcher, err := rules.NewWatcher(ruleStore, monitorRulesFile, logger)
		if err != nil {
			return err
		}
		go watcher.Run(ctx)
		logger.Info().Str("path", monitorRulesFile).Msg("watching rules file")
	}

	reader := ingest.NewReader(logger)
	err = reader.ReadFile(monitorEvents, func(e *event.Event) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, perr := session.Process(e)
		return perr
	})
	if err != nil && !store.IsUnrecoverable(err) && ctx.Err() == nil {
		return err
	}
	if store.IsUnrecoverable(err) {
		logger.Error().Err(err).Msg("decision log unavailable, stream aborted")
		return err
	}

	logger.Info().
		Int("lines", reader.Lines).
		Int("skipped", reader.Skipped).
		Msg("stream finished")

	snap := stats.Snapshot(monitorTop)
	builder := report.NewBuilder(db)
	builder.TopTrackers = monitorTop
	rpt, err := builder.Build(store.Filter{}, &snap, recent.All())
	if err != nil {
		return fmt.Errorf("building report: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rpt)
}

// loadRules imports a rules document, or seeds the defaults when the store
// is empty and no document was given.
func loadRules(ruleStore *rules.Store, path string) error {
	if path != "" {
		n, err := ruleStore.ImportFile(path)
		if err != nil {
			return fmt.Errorf("importing rules: %w", err)
		}
		fmt.Fprintf(os.Stderr, "  Imported %d rules from %s\n", n, path)
		return nil
	}
	existing, err := ruleStore.ListAll()
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		if err := ruleStore.SeedDefaults(); err != nil {
			return fmt.Errorf("seeding default rules: %w", err)
		}
	}
	return nil
}
