package features

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/config"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/tables"
	"go.uber.org/zap"
)

// ErrMissingSource is returned when a feature's source file does not exist.
var ErrMissingSource = errors.New("missing feature source")

// Partition splits the feature columns of a table by how they are encoded.
// The entity and timestamp columns belong to neither side.
type Partition struct {
	Categorical []string
	Continuous  []string
}

// IsCategorical reports whether name is in p.Categorical.
func (p Partition) IsCategorical(name string) bool {
	for _, c := range p.Categorical {
		if c == name {
			return true
		}
	}
	return false
}

// Expander applies a Spec to tables read in a given mode.
type Expander struct {
	cfg    config.Config
	spec   *Spec
	logger *zap.Logger
}

func NewExpander(cfg config.Config, spec *Spec, logger *zap.Logger) *Expander {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Expander{cfg: cfg, spec: spec, logger: logger}
}

// Expand applies every feature of the spec to frame in declaration order and
// returns the resulting column partition.
//
// A mismatch between the configured input file of mode and the one recorded in
// the spec is logged and otherwise ignored.
func (e *Expander) Expand(frame *tables.Frame, mode config.Mode) (Partition, error) {
	if want, got := e.spec.FileFor(mode), e.cfg.FileFor(mode); want != got {
		e.logger.Warn("input file does not match feature spec",
			zap.String("mode", string(mode)),
			zap.String("input", got),
			zap.String("spec", want))
	}

	for _, feature := range e.spec.Features {
		if feature.Delete {
			if frame.Drop(feature.Name) {
				e.logger.Debug("dropped feature", zap.String("feature", feature.Name))
			}
			continue
		}

		if feature.Column != "" {
			err := e.attach(frame, feature, mode)
			if err != nil {
				return Partition{}, err
			}
		}

		column, err := frame.Column(feature.Name)
		if err != nil {
			return Partition{}, fmt.Errorf("feature %q: %w", feature.Name, err)
		}
		err = cast(column, feature.Categorical())
		if err != nil {
			return Partition{}, fmt.Errorf("feature %q: %w", feature.Name, err)
		}
	}

	return e.partition(frame)
}

// SourcePath returns the file that supplies feature in mode. Relative source
// directories are resolved against the data directory.
func (e *Expander) SourcePath(feature Feature, mode config.Mode) string {
	dir := feature.Column
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(e.cfg.DataDir, dir)
	}
	return filepath.Join(dir, string(mode)+tables.CSVExt)
}

func (e *Expander) attach(frame *tables.Frame, feature Feature, mode config.Mode) error {
	path := e.SourcePath(feature, mode)
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: can't import %q for feature %q, check the feature spec or data directory",
			ErrMissingSource, path, feature.Name)
	} else if err != nil {
		return fmt.Errorf("feature %q: %w", feature.Name, err)
	}

	source, err := tables.ReadCSVFile(path)
	if err != nil {
		return fmt.Errorf("feature %q: %w", feature.Name, err)
	}
	source.Drop(tables.UnnamedIndex)
	source.FillMissing()

	columns := source.Columns()
	if len(columns) == 0 {
		return fmt.Errorf("feature %q: source %q has no columns", feature.Name, path)
	}
	column := columns[0]
	column.Name = feature.Name

	err = frame.Set(column)
	if err != nil {
		return fmt.Errorf("feature %q from %q: %w", feature.Name, path, err)
	}
	e.logger.Debug("attached feature", zap.String("feature", feature.Name), zap.String("source", path))
	return nil
}

func cast(column *tables.Column, categorical bool) error {
	if categorical {
		column.ToText()
		return nil
	}
	return column.ToNumeric()
}

// partition applies the configured column overrides and splits the remaining
// feature columns by kind.
func (e *Expander) partition(frame *tables.Frame) (Partition, error) {
	for _, name := range e.cfg.CategoricalColumns {
		column, err := frame.Column(name)
		if err != nil {
			return Partition{}, fmt.Errorf("categorical override: %w", err)
		}
		column.ToText()
	}
	for _, name := range e.cfg.ContinuousColumns {
		column, err := frame.Column(name)
		if err != nil {
			return Partition{}, fmt.Errorf("continuous override: %w", err)
		}
		err = column.ToNumeric()
		if err != nil {
			return Partition{}, fmt.Errorf("continuous override: %w", err)
		}
	}

	var p Partition
	for _, column := range frame.Columns() {
		if column.Name == e.cfg.EntityColumn || column.Name == e.cfg.TimestampColumn {
			continue
		}
		switch column.Kind {
		case tables.Text:
			p.Categorical = append(p.Categorical, column.Name)
		case tables.Numeric:
			p.Continuous = append(p.Continuous, column.Name)
		}
	}
	return p, nil
}
