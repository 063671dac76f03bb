package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/osm-data-etl/internal/domain"
)

var postcodesCmd = &cobra.Command{
	Use:   "postcodes <file.osm>",
	Short: "Check addr:postcode values against POSTCODE_PATTERN",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := auditDocument(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		result := domain.AuditPostcodes(report.Postcodes().Sorted(), cfg.PostcodeRegexp())
		return printJSON(cmd, result)
	},
}

func init() {
	rootCmd.AddCommand(postcodesCmd)
}
