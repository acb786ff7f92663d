package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/audit-engine/internal/authority"
)

var (
	authorityEntity string
	authorityDomain string
)

var authorityCmd = &cobra.Command{
	Use:   "authority",
	Short: "Fetch authority signals for one entity",
	Long:  "Queries the knowledge-base, reputation, and co-occurrence sources for a single (entity, domain) pair and prints the aggregated record. Unreachable sources degrade confidence instead of failing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("authority"); err != nil {
			return err
		}

		agg := authority.New(
			&authority.HTTPKnowledgeBaseSource{BaseURL: cfg.Authority.KnowledgeBaseURL},
			&authority.HTTPReputationSource{BaseURL: cfg.Authority.ReputationURL},
			&authority.HTTPCoOccurrenceSource{BaseURL: cfg.Authority.CoOccurrenceURL},
			cfg.Authority,
		)

		rec, err := agg.Fetch(cmd.Context(), authorityEntity, authorityDomain)
		if err != nil {
			return eris.Wrapf(err, "authority lookup %s", authorityEntity)
		}
		return printJSON(rec)
	},
}

func init() {
	authorityCmd.Flags().StringVar(&authorityEntity, "entity", "", "central entity name (required)")
	authorityCmd.Flags().StringVar(&authorityDomain, "domain", "", "site domain the entity is audited for")
	_ = authorityCmd.MarkFlagRequired("entity")
	rootCmd.AddCommand(authorityCmd)
}
