// Package pipeline turns raw interaction tables into per-entity sequences
// ready for batching.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/assets"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/config"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/features"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/sequence"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/tables"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/temporal"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/vocab"
	"github.com/vbauerster/mpb"
	"github.com/vbauerster/mpb/decor"
	"github.com/willbeason/bondsmith"
	"go.uber.org/zap"
)

var (
	ErrLoad           = errors.New("loading data")
	ErrColumnMismatch = errors.New("columns differ from training run")
)

// Result is everything one load produced.
type Result struct {
	Sequences []sequence.Sequence
	// ColumnSeq is the canonical column order, ending with "mask".
	ColumnSeq []string
	// Cardinality is the persisted vocabulary length of each categorical
	// column.
	Cardinality map[string]int
	Partition   features.Partition
	// Table is the encoded interaction table, sorted by entity and timestamp.
	Table *tables.Frame
}

// Annotations describes the columns of r.Table for export.
func (r *Result) Annotations() map[string]tables.Annotation {
	annotations := make(map[string]tables.Annotation)
	for _, name := range r.Partition.Categorical {
		annotations[name] = tables.Annotation{
			Kind:    "categorical",
			Comment: fmt.Sprintf("vocabulary of %d classes", r.Cardinality[name]),
		}
	}
	for _, name := range r.Partition.Continuous {
		annotations[name] = tables.Annotation{Kind: "continuous"}
	}
	return annotations
}

// Preprocess loads interaction tables using vocabularies kept in a Store.
type Preprocess struct {
	cfg      config.Config
	store    assets.Store
	logger   *zap.Logger
	metrics  *Metrics
	progress *mpb.Progress

	trainData *Result
	validData *Result
	testData  *Result
}

// NewPreprocess returns a Preprocess. logger and metrics may be nil.
func NewPreprocess(cfg config.Config, store assets.Store, logger *zap.Logger, metrics *Metrics) *Preprocess {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Preprocess{cfg: cfg, store: store, logger: logger, metrics: metrics}
}

// SetProgress makes p report categorical encoding on progress.
func (p *Preprocess) SetProgress(progress *mpb.Progress) {
	p.progress = progress
}

func (p *Preprocess) LoadTrainData(ctx context.Context) error {
	result, err := p.LoadDataFromFile(ctx, p.cfg.TrainData, config.ModeTrain)
	if err != nil {
		return err
	}
	p.trainData = result
	return nil
}

func (p *Preprocess) LoadValidData(ctx context.Context) error {
	result, err := p.LoadDataFromFile(ctx, p.cfg.ValidData, config.ModeValid)
	if err != nil {
		return err
	}
	p.validData = result
	return nil
}

func (p *Preprocess) LoadTestData(ctx context.Context) error {
	result, err := p.LoadDataFromFile(ctx, p.cfg.TestData, config.ModeTest)
	if err != nil {
		return err
	}
	p.testData = result
	return nil
}

func (p *Preprocess) TrainData() *Result { return p.trainData }
func (p *Preprocess) ValidData() *Result { return p.validData }
func (p *Preprocess) TestData() *Result  { return p.testData }

// LoadDataFromFile reads fileName from the data directory and turns it into
// sequences. In train mode every categorical vocabulary is refitted and
// persisted together with the run manifest; other modes reuse them.
func (p *Preprocess) LoadDataFromFile(ctx context.Context, fileName string, mode config.Mode) (*Result, error) {
	path := filepath.Join(p.cfg.DataDir, fileName)
	logger := p.logger.With(zap.String("mode", string(mode)), zap.String("input", path))

	frame, err := p.readTable(ctx, path, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	frame.Drop(tables.UnnamedIndex)
	frame.FillMissing()
	if p.metrics != nil {
		p.metrics.RowsLoaded.WithLabelValues(string(mode)).Add(float64(frame.Rows()))
	}

	spec, err := features.LoadSpec(p.cfg.FeatureSpecPath())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	partition, err := features.NewExpander(p.cfg, spec, logger).Expand(frame, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	var manifest *assets.Manifest
	if mode != config.ModeTrain {
		manifest, err = p.loadManifest(logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
	}
	if manifest != nil {
		partition, err = trainedPartition(frame, partition, manifest)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
	}

	converted, err := temporal.Normalize(frame, p.cfg.TimestampColumn, p.cfg.TimestampLayout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if converted {
		logger.Debug("normalized timestamps", zap.String("column", p.cfg.TimestampColumn))
	}

	err = p.encode(frame, partition.Categorical, mode, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	cardinality := make(map[string]int, len(partition.Categorical))
	fingerprints := make(map[string]string, len(partition.Categorical))
	for _, name := range partition.Categorical {
		classes, err := assets.LoadClasses(p.store, name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
		cardinality[name] = len(classes)
		fingerprints[name] = assets.Fingerprint(classes)
		if p.metrics != nil {
			p.metrics.VocabularySize.WithLabelValues(name).Set(float64(len(classes)))
		}
	}

	if manifest != nil {
		err = p.alignToManifest(frame, manifest, fingerprints, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
	}

	sequences, layout, err := sequence.Group(frame, p.cfg.EntityColumn, p.cfg.TimestampColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if p.metrics != nil {
		p.metrics.Sequences.WithLabelValues(string(mode)).Add(float64(len(sequences)))
	}

	result := &Result{
		Sequences:   sequences,
		ColumnSeq:   layout.ColumnSeq(),
		Cardinality: cardinality,
		Partition:   partition,
		Table:       frame,
	}

	if mode == config.ModeTrain {
		manifest := assets.NewManifest(fileName)
		manifest.ColumnSeq = result.ColumnSeq
		manifest.Cardinality = cardinality
		manifest.Fingerprints = fingerprints
		err = assets.SaveManifest(p.store, manifest)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
		logger.Info("saved manifest", zap.Stringer("run", manifest.RunID))
	}

	logger.Info("loaded sequences",
		zap.Int("rows", frame.Rows()),
		zap.Int("sequences", len(sequences)),
		zap.Strings("columns", result.ColumnSeq))
	return result, nil
}

func (p *Preprocess) readTable(ctx context.Context, path string, logger *zap.Logger) (*tables.Frame, error) {
	if strings.HasSuffix(path, tables.ParquetExt) {
		return tables.ReadParquet(ctx, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %q: %w", path, err)
	}
	defer func() {
		err := file.Close()
		if err != nil {
			fmt.Println(err)
		}
	}()

	countReader := bondsmith.NewCountReader(file)
	frame, err := tables.ReadCSV(countReader)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	logger.Debug("read table", zap.Int64("bytes", int64(countReader.Count())), zap.Int("rows", frame.Rows()))
	return frame, nil
}

func (p *Preprocess) encode(frame *tables.Frame, categorical []string, mode config.Mode, logger *zap.Logger) error {
	var bar *mpb.Bar
	start := time.Now()
	if p.progress != nil && len(categorical) > 0 {
		bar = p.progress.AddBar(int64(len(categorical)),
			mpb.PrependDecorators(decor.Name("preprocessing categorical data")),
			mpb.PrependDecorators(decor.CountersNoUnit("%d/%d", decor.WCSyncSpace)),
			mpb.BarRemoveOnComplete())
	}

	encoder := vocab.NewEncoder(p.store)
	for _, name := range categorical {
		column, err := frame.Column(name)
		if err != nil {
			return err
		}

		var codes []float64
		if mode == config.ModeTrain {
			codes, _, err = encoder.Fit(name, column.Strings)
		} else {
			var unknown int
			codes, unknown, err = encoder.Apply(name, column.Strings)
			if unknown > 0 {
				logger.Debug("unknown categories", zap.String("column", name), zap.Int("count", unknown))
				if p.metrics != nil {
					p.metrics.UnknownCategories.WithLabelValues(string(mode), name).Add(float64(unknown))
				}
			}
		}
		if err != nil {
			return fmt.Errorf("encoding %q: %w", name, err)
		}

		err = frame.Set(tables.NewNumericColumn(name, codes))
		if err != nil {
			return err
		}
		if bar != nil {
			bar.IncrBy(1, time.Since(start))
		}
	}
	return nil
}

// loadManifest returns the training manifest, or nil with a warning when no
// training run has saved one.
func (p *Preprocess) loadManifest(logger *zap.Logger) (*assets.Manifest, error) {
	manifest, err := assets.LoadManifest(p.store)
	if errors.Is(err, assets.ErrNotFound) {
		logger.Warn("no training manifest, keeping derived column order")
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return manifest, nil
}

// trainedPartition re-partitions the feature columns of frame so that exactly
// the columns the training run encoded are categorical, whatever their kind in
// this table. Trained columns missing from frame are left to alignToManifest.
func trainedPartition(frame *tables.Frame, derived features.Partition, manifest *assets.Manifest) (features.Partition, error) {
	var p features.Partition
	for _, column := range frame.Columns() {
		if !derived.IsCategorical(column.Name) && !slices.Contains(derived.Continuous, column.Name) {
			continue
		}
		if _, trained := manifest.Cardinality[column.Name]; trained {
			column.ToText()
			p.Categorical = append(p.Categorical, column.Name)
			continue
		}
		if !slices.Contains(manifest.ColumnSeq, column.Name) {
			// Unknown to training; alignToManifest rejects it.
			if derived.IsCategorical(column.Name) {
				p.Categorical = append(p.Categorical, column.Name)
			} else {
				p.Continuous = append(p.Continuous, column.Name)
			}
			continue
		}
		err := column.ToNumeric()
		if err != nil {
			return features.Partition{}, fmt.Errorf("%q was continuous in training run %s: %w", column.Name, manifest.RunID, err)
		}
		p.Continuous = append(p.Continuous, column.Name)
	}
	return p, nil
}

// alignToManifest puts the sequence columns of frame in the order the training
// run recorded and warns about vocabularies refitted since.
func (p *Preprocess) alignToManifest(frame *tables.Frame, manifest *assets.Manifest, fingerprints map[string]string, logger *zap.Logger) error {
	for name, fingerprint := range fingerprints {
		if want, ok := manifest.Fingerprints[name]; ok && want != fingerprint {
			logger.Warn("vocabulary changed since training run",
				zap.String("column", name),
				zap.Stringer("run", manifest.RunID))
		}
	}

	var want []string
	for _, name := range manifest.ColumnSeq {
		if name != sequence.MaskColumn {
			want = append(want, name)
		}
	}
	var got []string
	for _, name := range frame.Names() {
		if name != p.cfg.EntityColumn && name != p.cfg.TimestampColumn {
			got = append(got, name)
		}
	}
	sortedWant, sortedGot := slices.Sorted(slices.Values(want)), slices.Sorted(slices.Values(got))
	if !slices.Equal(sortedWant, sortedGot) {
		return fmt.Errorf("%w: training run %s has %v, got %v", ErrColumnMismatch, manifest.RunID, want, got)
	}

	return frame.Reorder(append([]string{p.cfg.EntityColumn, p.cfg.TimestampColumn}, want...))
}
