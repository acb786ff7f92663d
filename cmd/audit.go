package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/audit-engine/internal/authority"
	"github.com/sells-group/audit-engine/internal/corpus"
	"github.com/sells-group/audit-engine/internal/engine"
	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/registry"
	"github.com/sells-group/audit-engine/internal/resilience"
	"github.com/sells-group/audit-engine/internal/scorer"
)

var (
	auditInputDir  string
	auditOutputDir string
	auditRulesPath string
	auditTargets   string
	auditNoStore   bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit a document corpus end to end",
	Long:  "Scores every document, runs cross-page overlap and anchor analysis, fetches authority signals, and writes reports plus a prioritized roadmap.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		applyAuditFlags()
		if err := cfg.Validate("audit"); err != nil {
			return err
		}

		docs, err := loadDocuments(cfg.Audit.InputDir)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return eris.Errorf("no documents found in %s", cfg.Audit.InputDir)
		}

		ruleSet, err := buildRuleSet()
		if err != nil {
			return err
		}

		targets, err := registry.LoadTargets(cfg.Registry.TargetsPath)
		if err != nil {
			return err
		}

		e, cleanup, err := buildEngine(ctx, ruleSet)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := e.Run(ctx, docs, targets)
		if err != nil {
			return eris.Wrap(err, "audit run")
		}

		if err := writeOutputs(cfg.Audit.OutputDir, result); err != nil {
			return err
		}

		zap.L().Info("audit complete",
			zap.Int("documents", len(docs)),
			zap.Int("scored", result.ScoredCount),
			zap.Int("skipped", result.SkippedCount),
			zap.Int("roadmap_items", len(result.Roadmap)),
		)

		return printJSON(auditSummary(result))
	},
}

func applyAuditFlags() {
	if auditInputDir != "" {
		cfg.Audit.InputDir = auditInputDir
	}
	if auditOutputDir != "" {
		cfg.Audit.OutputDir = auditOutputDir
	}
	if auditRulesPath != "" {
		cfg.Registry.RulesPath = auditRulesPath
	}
	if auditTargets != "" {
		cfg.Registry.TargetsPath = auditTargets
	}
}

// buildRuleSet loads and validates the configured rule set, falling back to
// the built-in rules when no path is configured.
func buildRuleSet() (*model.RuleSet, error) {
	if cfg.Registry.RulesPath == "" {
		return registry.Default(), nil
	}
	return registry.Load(cfg.Registry.RulesPath)
}

// buildEngine assembles the engine from config. The authority aggregator is
// wired only when all three source URLs are configured; the store only when
// auditNoStore is unset.
func buildEngine(ctx context.Context, ruleSet *model.RuleSet) (*engine.Engine, func(), error) {
	sc := scorer.New(ruleSet, cfg.Scorer)
	an := corpus.NewAnalyzer(cfg.Corpus)

	var agg *authority.Aggregator
	if cfg.Authority.KnowledgeBaseURL != "" && cfg.Authority.ReputationURL != "" && cfg.Authority.CoOccurrenceURL != "" {
		agg = authority.New(
			&authority.HTTPKnowledgeBaseSource{BaseURL: cfg.Authority.KnowledgeBaseURL},
			&authority.HTTPReputationSource{BaseURL: cfg.Authority.ReputationURL},
			&authority.HTTPCoOccurrenceSource{BaseURL: cfg.Authority.CoOccurrenceURL},
			cfg.Authority,
		)
	}

	cleanup := func() {}
	if auditNoStore {
		return engine.New(ruleSet, sc, an, agg, nil, cfg.Engine), cleanup, nil
	}

	s, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, nil, eris.Wrap(err, "migrate store")
	}
	cleanup = func() { s.Close() } //nolint:errcheck
	return engine.New(ruleSet, sc, an, agg, s, cfg.Engine), cleanup, nil
}

// loadDocuments reads every *.json file in dir as one pre-normalized
// document. Malformed files are skipped with a warning; the audit continues.
func loadDocuments(dir string) ([]model.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read input dir %s", dir)
	}

	var docs []model.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			zap.L().Warn("skipping unreadable document", zap.Error(&resilience.FetchError{Path: path, Cause: err}))
			continue
		}

		var doc model.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			zap.L().Warn("skipping malformed document", zap.Error(&resilience.FetchError{Path: path, Cause: err}))
			continue
		}
		if doc.ID == "" {
			doc.ID = strings.TrimSuffix(entry.Name(), ".json")
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// writeOutputs persists the run artifacts as JSON files under dir.
func writeOutputs(dir string, result *engine.Result) error {
	reportsDir := filepath.Join(dir, "reports")
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return eris.Wrapf(err, "create output dir %s", reportsDir)
	}

	for _, report := range result.Reports {
		if err := writeJSON(filepath.Join(reportsDir, report.DocumentID+".json"), report); err != nil {
			return err
		}
	}
	if err := writeJSON(filepath.Join(dir, "corpus_report.json"), result.CorpusReport); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, "roadmap.json"), result.Roadmap); err != nil {
		return err
	}
	if len(result.Authority) > 0 {
		if err := writeJSON(filepath.Join(dir, "authority.json"), result.Authority); err != nil {
			return err
		}
	}
	if result.Run != nil {
		if err := writeJSON(filepath.Join(dir, "run.json"), result.Run); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "marshal %s", path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return eris.Wrapf(err, "write %s", path)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// auditSummary is the stdout payload: enough to judge the run without
// opening the output files.
func auditSummary(result *engine.Result) map[string]any {
	belowTarget := 0
	for _, r := range result.Reports {
		if !r.MeetsTarget {
			belowTarget++
		}
	}
	summary := map[string]any{
		"documents":     len(result.Reports),
		"scored":        result.ScoredCount,
		"skipped":       result.SkippedCount,
		"below_target":  belowTarget,
		"overlaps":      len(result.CorpusReport.Overlaps),
		"violations":    len(result.CorpusReport.AnchorViolations),
		"roadmap_items": len(result.Roadmap),
	}
	if result.Run != nil {
		summary["run_id"] = result.Run.ID
	}
	return summary
}

func init() {
	auditCmd.Flags().StringVar(&auditInputDir, "input", "", "directory of document JSON files (overrides config)")
	auditCmd.Flags().StringVar(&auditOutputDir, "output", "", "directory for report output (overrides config)")
	auditCmd.Flags().StringVar(&auditRulesPath, "rules", "", "rule set YAML path (default: built-in rules)")
	auditCmd.Flags().StringVar(&auditTargets, "targets", "", "target facts YAML path")
	auditCmd.Flags().BoolVar(&auditNoStore, "no-store", false, "run without the persistent report cache")
	rootCmd.AddCommand(auditCmd)
}
