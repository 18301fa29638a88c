package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hadichaudhri/trackerscope/internal/rules"
)

var (
	rulesDB          string
	addType          string
	addPattern       string
	addAction        string
	addDescription   string
	addPriority      int
	listShowDisabled bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the detection rule set",
}

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a detection rule",
	RunE:  runRulesAdd,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules in evaluation order",
	RunE:  runRulesList,
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable [rule-id]",
	Short: "Disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesDisable,
}

var rulesImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Bulk-import rules from a YAML document",
	Long:  "Import rules atomically: one malformed entry rejects the whole document.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesImport,
}

var rulesDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Seed the default rule set",
	RunE:  runRulesDefaults,
}

func init() {
	rulesCmd.PersistentFlags().StringVar(&rulesDB, "db", "trackerscope.db", "Path to the decision database")
	rulesAddCmd.Flags().StringVar(&addType, "type", "", "Rule category: url, cookie, storage, script")
	rulesAddCmd.Flags().StringVar(&addPattern, "pattern", "", "Regular expression to match")
	rulesAddCmd.Flags().StringVar(&addAction, "action", "block", "Action: block, modify, log")
	rulesAddCmd.Flags().StringVar(&addDescription, "description", "", "Human-readable description")
	rulesAddCmd.Flags().IntVar(&addPriority, "priority", 100, "Evaluation priority (lower runs first)")
	rulesListCmd.Flags().BoolVar(&listShowDisabled, "all", false, "Include disabled rules")

	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rulesCmd.AddCommand(rulesImportCmd)
	rulesCmd.AddCommand(rulesDefaultsCmd)
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	_, ruleStore, err := openStores(rulesDB, newLogger())
	if err != nil {
		return err
	}
	id, err := ruleStore.Add(rules.Rule{
		Category:    rules.Category(addType),
		Pattern:     addPattern,
		Action:      rules.Action(addAction),
		Description: addDescription,
		Priority:    addPriority,
	})
	if err != nil {
		return err
	}
	cmd.Printf("added rule %s\n", id)
	return nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	_, ruleStore, err := openStores(rulesDB, newLogger())
	if err != nil {
		return err
	}
	all, err := ruleStore.ListAll()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPRIORITY\tACTION\tENABLED\tPATTERN\tDESCRIPTION")
	for _, r := range all {
		if !r.Enabled && !listShowDisabled {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\t%s\t%s\n",
			r.ID, r.Category, r.Priority, r.Action, r.Enabled, r.Pattern, r.Description)
	}
	return w.Flush()
}

func runRulesDisable(cmd *cobra.Command, args []string) error {
	_, ruleStore, err := openStores(rulesDB, newLogger())
	if err != nil {
		return err
	}
	if err := ruleStore.Disable(args[0]); err != nil {
		return err
	}
	cmd.Printf("disabled rule %s\n", args[0])
	return nil
}

func runRulesImport(cmd *cobra.Command, args []string) error {
	_, ruleStore, err := openStores(rulesDB, newLogger())
	if err != nil {
		return err
	}
	n, err := ruleStore.ImportFile(args[0])
	if err != nil {
		return err
	}
	cmd.Printf("imported %d rules from %s\n", n, args[0])
	return nil
}

func runRulesDefaults(cmd *cobra.Command, args []string) error {
	_, ruleStore, err := openStores(rulesDB, newLogger())
	if err != nil {
		return err
	}
	if err := ruleStore.SeedDefaults(); err != nil {
		return err
	}
	cmd.Printf("seeded %d default rules\n", len(rules.DefaultRules()))
	return nil
}
