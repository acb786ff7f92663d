package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/registry"
	"github.com/sells-group/audit-engine/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate the rule set",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [rules.yaml]",
	Short: "Validate a rule set file",
	Long:  "Loads the rule set, checks category weights, severities, and check references, and prints a per-category summary. With no argument the built-in rule set is shown.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rs *model.RuleSet
		var err error
		if len(args) == 1 {
			rs, err = registry.Load(args[0])
		} else {
			rs = registry.Default()
			err = registry.Validate(rs)
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "rule set %s: %d rules, %d categories\n\n", rs.Version, len(rs.Rules), len(rs.CategoryWeights))
		formatRuleSummary(os.Stdout, rs)
		return nil
	},
}

var rulesChecksCmd = &cobra.Command{
	Use:   "checks",
	Short: "List the built-in check predicates",
	RunE: func(cmd *cobra.Command, _ []string) error {
		for _, name := range rules.Names() {
			scope := "document"
			if rules.NeedsCorpus(name) {
				scope = "corpus"
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\n", name, scope)
		}
		return nil
	},
}

// formatRuleSummary writes a per-category table of weights and rule counts.
func formatRuleSummary(out io.Writer, rs *model.RuleSet) {
	counts := make(map[model.Category]int)
	for _, r := range rs.Rules {
		counts[r.Category]++
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tWEIGHT\tRULES")
	for _, cat := range model.AllCategories() {
		weight, ok := rs.CategoryWeights[cat]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s\t%.1f\t%d\n", cat, weight, counts[cat])
	}
	_ = w.Flush()
}

func init() {
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesChecksCmd)
	rootCmd.AddCommand(rulesCmd)
}
