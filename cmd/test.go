package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hadichaudhri/trackerscope/internal/audit"
	"github.com/hadichaudhri/trackerscope/internal/event"
	"github.com/hadichaudhri/trackerscope/internal/pipeline"
)

var testRulesFile string

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run built-in scenario events against the rule set",
	Long:  "Run a suite of tracking and benign events to verify rule behavior.",
	RunE:  runTest,
}

func init() {
	testCmd.Flags().StringVar(&testRulesFile, "rules", "", "Rules YAML file (default: built-in rule set)")
}

type scenario struct {
	name     string
	events   []event.Event
	expected string // action expected for the last event
}

func scenarios() []scenario {
	now := time.Now().UTC()
	return []scenario{
		// Should be blocked — tracking endpoints
		{
			name: "tracking_pixel_request",
			events: []event.Event{{
				Kind: event.KindRequest, Timestamp: now, Origin: "site.com", IsThirdParty: true,
				Request: &event.NetworkRequest{URL: "https://tracker.example/analytics/collect?id=1", Method: "GET"},
			}},
			expected: "block",
		},
		{
			name: "beacon_request",
			events: []event.Event{{
				Kind: event.KindRequest, Timestamp: now, Origin: "site.com", IsThirdParty: true,
				Request: &event.NetworkRequest{URL: "https://cdn.example/beacon.gif", Method: "GET"},
			}},
			expected: "block",
		},

		// Should be blocked — tracking identifiers
		{
			name: "ga_cookie_write",
			events: []event.Event{{
				Kind: event.KindStorage, Timestamp: now, Origin: "site.com",
				Storage: &event.StorageWrite{Domain: "site.com", Scope: event.ScopeCookie, Key: "_ga", Value: "GA1.2.3"},
			}},
			expected: "block",
		},
		{
			name: "fingerprint_storage_key",
			events: []event.Event{{
				Kind: event.KindStorage, Timestamp: now, Origin: "site.com",
				Storage: &event.StorageWrite{Domain: "site.com", Scope: event.ScopeLocal, Key: "canvas_fp", Value: "abc"},
			}},
			expected: "block",
		},

		// Should be modified — fingerprinting script APIs
		{
			name: "user_agent_read",
			events: []event.Event{{
				Kind: event.KindScript, Timestamp: now, Origin: "site.com",
				Script: &event.ScriptCall{ScriptURL: "https://cdn.example/fp.js", API: "navigator.userAgent"},
			}},
			expected: "modify",
		},

		// Should be blocked — combinatorial fingerprinting burst
		{
			name: "entropy_probe_burst",
			events: []event.Event{
				{
					Kind: event.KindScript, Timestamp: now, Origin: "site.com",
					Script: &event.ScriptCall{ScriptURL: "https://cdn.example/probe.js", API: "navigator.language"},
				},
				{
					Kind: event.KindScript, Timestamp: now.Add(100 * time.Millisecond), Origin: "site.com",
					Script: &event.ScriptCall{ScriptURL: "https://cdn.example/probe.js", API: "screen.width"},
				},
				{
					Kind: event.KindScript, Timestamp: now.Add(200 * time.Millisecond), Origin: "site.com",
					Script: &event.ScriptCall{ScriptURL: "https://cdn.example/probe.js", API: "navigator.platform"},
				},
			},
			expected: "block",
		},

		// Should be allowed — benign traffic
		{
			name: "benign_request",
			events: []event.Event{{
				Kind: event.KindRequest, Timestamp: now, Origin: "site.com",
				Request: &event.NetworkRequest{URL: "https://site.com/api/articles", Method: "GET"},
			}},
			expected: "allow",
		},
		{
			name: "benign_storage_write",
			events: []event.Event{{
				Kind: event.KindStorage, Timestamp: now, Origin: "site.com",
				Storage: &event.StorageWrite{Domain: "site.com", Scope: event.ScopeLocal, Key: "theme", Value: "dark"},
			}},
			expected: "allow",
		},
		{
			name: "benign_script_call",
			events: []event.Event{{
				Kind: event.KindScript, Timestamp: now, Origin: "site.com",
				Script: &event.ScriptCall{ScriptURL: "https://site.com/app.js", API: "document.querySelector", Args: []string{".nav"}},
			}},
			expected: "allow",
		},
	}
}

func runTest(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	db, ruleStore, err := openStores(":memory:", logger)
	if err != nil {
		return err
	}
	if err := loadRules(ruleStore, testRulesFile); err != nil {
		return err
	}

	session := pipeline.NewSession("test", "", ruleStore, db, audit.NopLogger(), logger)

	var last pipeline.DecisionEvent
	session.AddObserver(func(de pipeline.DecisionEvent) { last = de })

	fmt.Fprintf(os.Stderr, "\n=== Trackerscope Rule Tests ===\n\n")

	passed := 0
	failed := 0

	for _, sc := range scenarios() {
		for i := range sc.events {
			if _, err := session.Process(&sc.events[i]); err != nil {
				return err
			}
		}
		actual := string(last.Decision.Action)

		status := "PASS"
		if actual != sc.expected {
			status = "FAIL"
			failed++
		} else {
			passed++
		}

		fmt.Fprintf(os.Stderr, "  [%s] %-28s expected=%-8s got=%-8s",
			status, sc.name, sc.expected, actual)
		if last.Decision.RuleID != "" {
			fmt.Fprintf(os.Stderr, " rule=%s", last.Decision.RuleID)
		} else if last.Decision.Reason != "" {
			fmt.Fprintf(os.Stderr, " reason=%s", last.Decision.Reason)
		}
		fmt.Fprintln(os.Stderr)
	}

	fmt.Fprintf(os.Stderr, "\n  Results: %d passed, %d failed, %d total\n\n",
		passed, failed, len(scenarios()))

	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}
