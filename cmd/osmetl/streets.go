package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
)

var streetsRewrite bool

// rewriteReport pairs each rewritable street name with its new form. Names
// whose suffix has no mapping are listed separately.
type rewriteReport struct {
	Rewrites map[string]string `json:"rewrites"`
	Unmapped domain.StringSet  `json:"unmapped"`
}

var streetsCmd = &cobra.Command{
	Use:   "streets <file.osm>",
	Short: "List street names whose type suffix is not in the expected vocabulary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vocab, err := cfg.StreetVocabulary()
		if err != nil {
			return err
		}

		report, err := auditDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		index := vocab.AuditSuffixes(report.StreetNames().Sorted())

		if !streetsRewrite {
			return printJSON(cmd, index)
		}

		out := rewriteReport{Rewrites: make(map[string]string), Unmapped: make(domain.StringSet)}
		for _, names := range index {
			for name := range names {
				better, err := vocab.Rewrite(name)
				switch {
				case errors.Is(err, domain.ErrUnmappedSuffix):
					out.Unmapped.Add(name)
				case err != nil:
					return err
				default:
					out.Rewrites[name] = better
				}
			}
		}
		logger.Info("street rewrite planned", "rewrites", len(out.Rewrites), "unmapped", len(out.Unmapped))
		return printJSON(cmd, out)
	},
}

func init() {
	streetsCmd.Flags().BoolVar(&streetsRewrite, "rewrite", false, "print the rewritten form of each mappable name")
	rootCmd.AddCommand(streetsCmd)
}
