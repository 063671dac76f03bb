// Command osmetl shapes OpenStreetMap XML extracts into flat JSON records and
// audits their tag quality.
//
// Usage:
//
//	osmetl shape map.osm --sink sqlite
//	osmetl audit map.osm
//	osmetl streets map.osm --rewrite
//	osmetl postcodes map.osm
//	osmetl verify map.osm.json --source map.osm
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/osm-data-etl/internal/config"
	"github.com/couchcryptid/osm-data-etl/internal/observability"
	"github.com/couchcryptid/osm-data-etl/internal/osmxml"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	// Registered once per process; tests run several commands.
	metrics = sync.OnceValue(observability.NewMetrics)
)

var rootCmd = &cobra.Command{
	Use:   "osmetl",
	Short: "Shape and audit OpenStreetMap XML extracts",
	Long: "Streams an OSM XML document element by element, normalizes nodes, ways and " +
		"relations into flat JSON records, and reports on tag keys, street names and postcodes.",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		logger = observability.NewLogger(cfg)
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openDocument opens an OSM XML file for streaming.
func openDocument(path string) (*osmxml.Walker, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open document: %w", err)
	}
	return osmxml.NewWalker(f), f, nil
}

// printJSON writes v to the command's output, indented.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
