package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/audit-engine/internal/model"
	"github.com/sells-group/audit-engine/internal/store"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect stored reports and run history",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored audit reports",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("reports"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		reports, err := st.ListReports(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "reports list")
		}

		if len(reports) == 0 {
			fmt.Fprintln(os.Stderr, "No reports found.")
			return nil
		}
		formatReportsList(os.Stdout, reports)
		return nil
	},
}

var reportsShowCmd = &cobra.Command{
	Use:   "show <document-id>",
	Short: "Show the latest report for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("reports"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		report, err := st.LatestReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "reports show")
		}
		if report == nil {
			return eris.Errorf("no report for document %s", args[0])
		}
		return printJSON(report)
	},
}

var reportsRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List audit run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("reports"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// formatReportsList writes a tabular list of reports to w.
func formatReportsList(out io.Writer, reports []model.AuditReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOCUMENT\tSCORE\tTARGET\tISSUES\tRULES")
	for _, r := range reports {
		target := "met"
		if !r.MeetsTarget {
			target = "below"
		}
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%s\t%d\t%s\n",
			r.DocumentID, r.Aggregate, target, len(r.Issues), r.RuleVersion)
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tDOCS\tSCORED\tSKIPPED\tMEAN\tSTARTED\tDURATION")
	for _, r := range runs {
		duration := "-"
		if r.CompletedAt != nil {
			duration = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%.2f\t%s\t%s\n",
			r.ID, r.Status, r.DocumentCount, r.ScoredCount, r.SkippedCount,
			r.MeanAggregate, r.StartedAt.Format(time.RFC3339), duration)
	}
	_ = w.Flush()
}

func init() {
	reportsListCmd.Flags().Int("limit", 50, "max number of reports to display")
	reportsRunsCmd.Flags().String("status", "", "filter by run status (running, completed, failed, cancelled)")
	reportsRunsCmd.Flags().Int("limit", 50, "max number of runs to display")

	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsShowCmd)
	reportsCmd.AddCommand(reportsRunsCmd)
	rootCmd.AddCommand(reportsCmd)
}
