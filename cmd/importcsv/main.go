package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"ctsales/internal/config"
	"ctsales/internal/dataset"
	"ctsales/internal/exporter"
	"ctsales/internal/infrastructure"
)

// importcsv validates a raw sales CSV offline. It loads the file
// through the same cleaning pipeline the server uses, reports the
// row accounting, and optionally writes the cleaned rows back out.
func main() {
	in := flag.String("in", "", "input csv file path (defaults to the configured dataset file)")
	out := flag.String("out", "", "optional output path for the cleaned csv")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	if *in == "" {
		*in = cfg.DatasetFile()
	}

	logger.Info("Starting dataset import",
		slog.String("input_file", *in),
		slog.String("output_file", *out))

	table, summary, err := dataset.Load(*in, logger)
	if err != nil {
		logger.Error("Dataset load failed",
			slog.String("path", *in),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	min, max := table.AmountBounds()
	logger.Info("Dataset loaded",
		slog.Int("total_rows", summary.TotalRows),
		slog.Int("kept", summary.Kept),
		slog.Int("dropped", summary.Dropped()),
		slog.Int("dropped_bad_row", summary.DroppedBadRow),
		slog.Int("dropped_bad_date", summary.DroppedBadDate),
		slog.Int("dropped_bad_amount", summary.DroppedBadAmount),
		slog.Int("dropped_no_town", summary.DroppedNoTown),
		slog.Int("towns", len(table.Towns())),
		slog.Int("years", len(table.Years())),
		slog.String("amount_min", min.String()),
		slog.String("amount_max", max.String()))

	if *out == "" {
		return
	}

	outDir := filepath.Dir(*out)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		logger.Error("Cannot create output directory",
			slog.String("path", outDir),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		logger.Error("Cannot create output file",
			slog.String("path", *out),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer f.Close()

	if err := exporter.WriteCSV(f, table.Records(), exporter.CSVOptions{}); err != nil {
		logger.Error("Failed to write cleaned csv",
			slog.String("path", *out),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Cleaned csv written",
		slog.String("path", *out),
		slog.Int("rows", table.Len()))
}
