package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/scorer"
)

var scoreRulesPath string

var scoreCmd = &cobra.Command{
	Use:   "score <document.json>",
	Short: "Score a single document without corpus context",
	Long:  "Evaluates one pre-normalized document JSON against the rule set. Cross-page rules are skipped; no store is touched.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if scoreRulesPath != "" {
			cfg.Registry.RulesPath = scoreRulesPath
		}
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read document %s", args[0])
		}
		var doc model.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return eris.Wrapf(err, "parse document %s", args[0])
		}

		ruleSet, err := buildRuleSet()
		if err != nil {
			return err
		}

		report, err := scorer.New(ruleSet, cfg.Scorer).Score(cmd.Context(), &doc, nil)
		if err != nil {
			return eris.Wrap(err, "score document")
		}
		return printJSON(report)
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreRulesPath, "rules", "", "rule set YAML path (default: built-in rules)")
	rootCmd.AddCommand(scoreCmd)
}
