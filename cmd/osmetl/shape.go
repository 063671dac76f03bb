package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/osm-data-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/osm-data-etl/internal/adapter/jsonl"
	kafkaadapter "github.com/couchcryptid/osm-data-etl/internal/adapter/kafka"
	"github.com/couchcryptid/osm-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/osm-data-etl/internal/config"
	"github.com/couchcryptid/osm-data-etl/internal/pipeline"
)

var (
	shapeSink   string
	shapeOut    string
	shapePretty bool
)

var shapeCmd = &cobra.Command{
	Use:   "shape <file.osm>",
	Short: "Normalize every element into a JSON record and write it to a sink",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		input := args[0]

		if cmd.Flags().Changed("sink") {
			cfg.Sink = shapeSink
		}
		if cmd.Flags().Changed("out") {
			cfg.OutputPath = shapeOut
		}
		if cmd.Flags().Changed("pretty") {
			cfg.PrettyOutput = shapePretty
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		src, closer, err := openDocument(input)
		if err != nil {
			return err
		}
		defer closer.Close()

		sink, err := openSink(ctx, cfg, input, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		m := metrics()
		normalizer := pipeline.NewNormalizer(logger, m)
		p := pipeline.New(src, normalizer, sink, logger, m, cfg.BatchSize)

		var srv *httpadapter.Server
		if cfg.HTTPAddr != "" {
			srv = httpadapter.NewServer(cfg.HTTPAddr, p, logger)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server error", "error", err)
				}
			}()
		}

		sum, runErr := p.Run(ctx)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}
		if err := sink.Close(); err != nil {
			logger.Error("sink close error", "sink", cfg.Sink, "error", err)
			runErr = errors.Join(runErr, fmt.Errorf("close %s sink: %w", cfg.Sink, err))
		}

		logger.Info("shape complete",
			"input", input,
			"sink", cfg.Sink,
			"read", sum.Read,
			"produced", sum.Produced,
			"skipped", sum.Skipped,
			"failed", sum.Failed,
			"unsafe_keys_dropped", normalizer.UnsafeKeysDropped(),
			"duration", sum.Duration,
		)
		return runErr
	},
}

// loadCloser is a BatchLoader that must be closed to flush its output.
type loadCloser interface {
	pipeline.BatchLoader
	Close() error
}

// stdout keeps jsonl.Writer from closing the process's standard output.
type stdout struct{ io.Writer }

func openSink(ctx context.Context, cfg *config.Config, input string, out io.Writer) (loadCloser, error) {
	switch cfg.Sink {
	case config.SinkKafka:
		return kafkaadapter.NewWriter(cfg, clockwork.NewRealClock(), logger), nil
	case config.SinkSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath, clockwork.NewRealClock())
	default:
		switch cfg.OutputPath {
		case "-":
			return jsonl.NewWriter(stdout{out}, cfg.PrettyOutput), nil
		case "":
			return jsonl.Create(jsonl.DefaultPath(input), cfg.PrettyOutput)
		default:
			return jsonl.Create(cfg.OutputPath, cfg.PrettyOutput)
		}
	}
}

func init() {
	shapeCmd.Flags().StringVar(&shapeSink, "sink", config.SinkJSONL, "output sink: jsonl, kafka, or sqlite (overrides SINK)")
	shapeCmd.Flags().StringVar(&shapeOut, "out", "", `jsonl output path, "-" for stdout (default "<input>.json")`)
	shapeCmd.Flags().BoolVar(&shapePretty, "pretty", false, "indent jsonl output by four spaces")
	rootCmd.AddCommand(shapeCmd)
}
