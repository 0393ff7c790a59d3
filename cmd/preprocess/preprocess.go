package main

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/assets"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/config"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/logging"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/pipeline"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/sequence"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/tables"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vbauerster/mpb"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	FlagConfig      = "config"
	FlagDataDir     = "data-dir"
	FlagAssetDir    = "asset-dir"
	FlagOut         = "out"
	FlagTable       = "table"
	FlagMetricsFile = "metrics-file"
	FlagSplit       = "split"
	FlagSplitOut    = "split-out"
	FlagSeed        = "seed"
	FlagDebug       = "debug"
)

// defaultWidth is the progress bar width when stderr is not a terminal.
const defaultWidth = 80

func init() {
	cmd.Flags().String(FlagConfig, "", "YAML configuration file")
	cmd.Flags().String(FlagDataDir, "", "directory holding input tables (overrides config)")
	cmd.Flags().String(FlagAssetDir, "", "directory holding vocabularies (overrides config)")
	cmd.Flags().String(FlagOut, "", "sequences output path (.jsonl or .jsonl.gz)")
	cmd.Flags().String(FlagTable, "", "optional Parquet path for the encoded table")
	cmd.Flags().String(FlagMetricsFile, "", "optional path for Prometheus text metrics")
	cmd.Flags().Float64(FlagSplit, 0, "fraction of sequences written to --out; the rest go to --split-out")
	cmd.Flags().String(FlagSplitOut, "", "output path for the held-out sequences")
	cmd.Flags().Int64(FlagSeed, 0, "random seed for --split (default: config seed, else the clock)")
	cmd.Flags().Bool(FlagDebug, false, "enable debug logging")
	_ = cmd.MarkFlagRequired(FlagOut)
}

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "preprocess [train|val|test] [FILE]",
	Short:   "turns an interaction table into per-entity sequences",
	Long:    "Reads FILE from the data directory (default: the configured file of the mode), encodes it and writes one JSON line per entity.",
	Args:    cobra.RangeArgs(1, 2),
	Version: "0.1.0",
	RunE:    runE,
}

var ErrPreprocess = errors.New("preprocessing")

func runE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	mode, err := config.ParseMode(args[0])
	if err != nil {
		return err
	}

	cfg, err := getConfig(cmd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPreprocess, err)
	}

	fileName := cfg.FileFor(mode)
	if len(args) > 1 {
		fileName = args[1]
	}

	debug, err := cmd.Flags().GetBool(FlagDebug)
	if err != nil {
		return err
	}
	logger := logging.New(debug)
	defer func() {
		_ = logger.Sync()
	}()

	registry := prometheus.NewRegistry()
	p := pipeline.NewPreprocess(cfg, assets.NewFileStore(cfg.AssetDir), logger, pipeline.NewMetrics(registry))
	p.SetProgress(mpb.New(mpb.WithWidth(terminalWidth()), mpb.WithOutput(os.Stderr)))

	start := time.Now()
	result, err := p.LoadDataFromFile(ctx, fileName, mode)
	if err != nil {
		logger.Error("preprocessing failed", zap.Error(err))
		return err
	}

	outPath, err := cmd.Flags().GetString(FlagOut)
	if err != nil {
		return err
	}
	ratio, err := cmd.Flags().GetFloat64(FlagSplit)
	if err != nil {
		return err
	}

	if ratio > 0 {
		err = writeSplit(cmd, cfg, result.Sequences, ratio, outPath)
	} else {
		err = writeSequences(outPath, result.Sequences)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPreprocess, err)
	}

	tablePath, err := cmd.Flags().GetString(FlagTable)
	if err != nil {
		return err
	}
	if tablePath != "" {
		err = tables.WriteParquet(tablePath, result.Table, result.Annotations(),
			fmt.Sprintf("encoded %s interactions from %s", mode, fileName))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrPreprocess, err)
		}
	}

	metricsPath, err := cmd.Flags().GetString(FlagMetricsFile)
	if err != nil {
		return err
	}
	if metricsPath != "" {
		err = prometheus.WriteToTextfile(metricsPath, registry)
		if err != nil {
			return fmt.Errorf("%w: writing metrics: %w", ErrPreprocess, err)
		}
	}

	logger.Info("done", zap.Duration("elapsed", time.Since(start)), zap.String("out", outPath))
	return nil
}

func getConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.DefaultConfig()

	configPath, err := cmd.Flags().GetString(FlagConfig)
	if err != nil {
		return config.Config{}, err
	}
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err != nil {
			return config.Config{}, err
		}
	}

	dataDir, err := cmd.Flags().GetString(FlagDataDir)
	if err != nil {
		return config.Config{}, err
	}
	assetDir, err := cmd.Flags().GetString(FlagAssetDir)
	if err != nil {
		return config.Config{}, err
	}
	cfg = cfg.Merge(config.Config{DataDir: dataDir, AssetDir: assetDir})

	return cfg, cfg.Validate()
}

// getSeed prefers --seed, then a non-zero configured seed, then the clock.
func getSeed(cmd *cobra.Command, configured int64) (int64, error) {
	// Check if the user set the seed manually.
	seedSet := false
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == FlagSeed {
			seedSet = true
		}
	})

	if seedSet {
		return cmd.Flags().GetInt64(FlagSeed)
	}
	if configured != 0 {
		return configured, nil
	}
	return time.Now().UnixNano(), nil
}

func writeSplit(cmd *cobra.Command, cfg config.Config, sequences []sequence.Sequence, ratio float64, outPath string) error {
	if ratio >= 1 {
		return fmt.Errorf("--%s must be below 1, got %v", FlagSplit, ratio)
	}
	splitPath, err := cmd.Flags().GetString(FlagSplitOut)
	if err != nil {
		return err
	}
	if splitPath == "" {
		return fmt.Errorf("--%s requires --%s", FlagSplit, FlagSplitOut)
	}
	seed, err := getSeed(cmd, cfg.Seed)
	if err != nil {
		return fmt.Errorf("getting seed: %w", err)
	}

	kept, heldOut := pipeline.SplitData(sequences, ratio, true, seed)
	err = writeSequences(outPath, kept)
	if err != nil {
		return err
	}
	return writeSequences(splitPath, heldOut)
}

func writeSequences(path string, sequences []sequence.Sequence) error {
	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %q: %w", path, err)
	}
	defer func() {
		err := outFile.Close()
		if err != nil {
			fmt.Println(err)
		}
	}()

	var w io.Writer = outFile
	if strings.HasSuffix(path, ".gz") {
		gzWriter := gzip.NewWriter(outFile)
		defer func() {
			err := gzWriter.Close()
			if err != nil {
				fmt.Println(err)
			}
		}()
		w = gzWriter
	}

	return sequence.WriteJSONL(w, sequences)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}
