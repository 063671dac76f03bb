package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
	"github.com/couchcryptid/osm-data-etl/internal/pipeline"
)

var auditKeysOnly bool

var auditCmd = &cobra.Command{
	Use:   "audit <file.osm>",
	Short: "Inventory attributes, sub-elements, tag values and key classes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := auditDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if auditKeysOnly {
			var keys []string
			for _, set := range report.KeyClasses {
				keys = append(keys, set.Sorted()...)
			}
			unsafe := domain.NewStringSet(domain.CheckKeys(keys)...)
			return printJSON(cmd, unsafe)
		}
		return printJSON(cmd, report)
	},
}

// auditDocument runs one audit pass over the document at path.
func auditDocument(ctx context.Context, path string) (*domain.AuditReport, error) {
	src, closer, err := openDocument(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	report := domain.NewAuditReport()
	n, err := pipeline.Audit(ctx, src, report, cfg.BatchSize, metrics())
	if err != nil {
		return nil, err
	}
	logger.Info("audit complete", "input", path, "elements", n)
	return report, nil
}

func init() {
	auditCmd.Flags().BoolVar(&auditKeysOnly, "keys", false, "print only tag keys containing problem characters")
	rootCmd.AddCommand(auditCmd)
}
