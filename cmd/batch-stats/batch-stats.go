package main

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/batch"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/config"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/profile"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/sequence"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
	"github.com/willbeason/bondsmith"
	"github.com/willbeason/bondsmith/fileio"
	"golang.org/x/term"
	"gonum.org/v1/gonum/floats"
)

const (
	FlagConfig    = "config"
	FlagBatchSize = "batch-size"
	FlagMaxSeqLen = "max-seq-len"
	FlagWorkers   = "workers"
	FlagShuffle   = "shuffle"
	FlagSeed      = "seed"
	FlagQuiet     = "quiet"
)

const defaultWidth = 80

func init() {
	cmd.Flags().String(FlagConfig, "", "YAML configuration file")
	cmd.Flags().Int(FlagBatchSize, 0, "examples per batch (overrides config)")
	cmd.Flags().Int(FlagMaxSeqLen, 0, "maximum sequence length (overrides config)")
	cmd.Flags().Int(FlagWorkers, -1, "background workers, 0 for none (overrides config)")
	cmd.Flags().Bool(FlagShuffle, false, "shuffle sequences before batching")
	cmd.Flags().Int64(FlagSeed, 0, "random seed for --shuffle")
	cmd.Flags().Bool(FlagQuiet, false, "print only the summary")
}

func main() {
	err := cmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var cmd = cobra.Command{
	Use:     "batch-stats FILE...",
	Short:   "Batch sequence files and report tensor shapes and mask fill",
	Args:    cobra.MinimumNArgs(1),
	Version: "0.1.0",
	RunE:    runE,
}

var ErrBatchStats = errors.New("getting batch statistics")

func runE(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := getConfig(cmd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBatchStats, err)
	}

	var totalSize int64
	for _, path := range args {
		stat, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: stat %q: %w", ErrBatchStats, path, err)
		}
		totalSize += stat.Size()
	}

	p := mpb.New(mpb.WithWidth(terminalWidth()), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(totalSize,
		mpb.AppendDecorators(decor.AverageETA(decor.ET_STYLE_GO)),
		mpb.PrependDecorators(decor.Name(filepath.Base(args[0]))),
		mpb.BarRemoveOnComplete(),
	)

	countReader := bondsmith.NewCountReader(fileio.NewMultiFileReader(args))
	lastSeen := int64(0)
	start := time.Now()
	var reader io.Reader = &progressReader{
		Reader: countReader,
		update: func() {
			cur := int64(countReader.Count())
			bar.IncrBy(int(cur-lastSeen), time.Since(start))
			lastSeen = cur
		},
	}
	// gzip correctly handles concatenated files.
	if strings.HasSuffix(args[0], ".gz") {
		reader, err = gzip.NewReader(reader)
		if err != nil {
			return fmt.Errorf("%w: starting gzip reader: %w", ErrBatchStats, err)
		}
	}

	sequences, layout, err := sequence.ReadJSONL(reader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBatchStats, err)
	}
	if layout == nil {
		return fmt.Errorf("%w: no sequences in %v", ErrBatchStats, args)
	}

	shuffle, err := cmd.Flags().GetBool(FlagShuffle)
	if err != nil {
		return err
	}
	quiet, err := cmd.Flags().GetBool(FlagQuiet)
	if err != nil {
		return err
	}

	if !quiet {
		for _, column := range profile.Columns(sequences, layout) {
			fmt.Println(column)
		}
	}

	loader := batch.NewLoader(cfg, sequences, layout.ColumnSeq(), shuffle)
	fmt.Printf("%d sequences, %d batches, columns %v, pin_memory=%t\n",
		len(sequences), loader.Len(), layout.ColumnSeq(), loader.PinMemory())

	var filled, cells float64
	var batches int
	for b, err := range loader.Batches(ctx) {
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBatchStats, err)
		}
		mask, ok := b.Tensor(sequence.MaskColumn)
		if !ok {
			return fmt.Errorf("%w: batch %d has no mask", ErrBatchStats, batches)
		}

		rows, cols := mask.Dims()
		batchFilled := floats.Sum(mask.RawMatrix().Data)
		if !quiet {
			fmt.Printf("batch %d: shape (%d, %d), mask fill %.3f\n",
				batches, rows, cols, batchFilled/float64(rows*cols))
		}
		filled += batchFilled
		cells += float64(rows * cols)
		batches++
	}

	if cells > 0 {
		fmt.Printf("%d batches, mask fill %.3f\n", batches, filled/cells)
	}
	return nil
}

// progressReader calls update after every read.
type progressReader struct {
	io.Reader
	update func()
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.update()
	return n, err
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

	batchSize, err := cmd.Flags().GetInt(FlagBatchSize)
	if err != nil {
		return config.Config{}, err
	}
	maxSeqLen, err := cmd.Flags().GetInt(FlagMaxSeqLen)
	if err != nil {
		return config.Config{}, err
	}
	seed, err := cmd.Flags().GetInt64(FlagSeed)
	if err != nil {
		return config.Config{}, err
	}
	cfg = cfg.Merge(config.Config{BatchSize: batchSize, MaxSeqLen: maxSeqLen, Seed: seed})

	// Merge treats zero as unset, so an explicit zero worker count is applied here.
	workers, err := cmd.Flags().GetInt(FlagWorkers)
	if err != nil {
		return config.Config{}, err
	}
	if workers >= 0 {
		cfg.NumWorkers = workers
	}

	return cfg, cfg.Validate()
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}
