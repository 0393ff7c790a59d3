// Package config provides configuration loading for the preprocessing pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Mode selects whether a run fits vocabularies or reuses them.
type Mode string

const (
	ModeTrain Mode = "train"
	ModeValid Mode = "val"
	ModeTest  Mode = "test"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeTrain, ModeValid, ModeTest:
		return m, nil
	default:
		return "", fmt.Errorf("mode must be one of [train|val|test], not %q", s)
	}
}

// Config is the pipeline configuration. It is passed by value and never
// modified by the components that receive it.
type Config struct {
	// DataDir holds the input tables.
	DataDir string `yaml:"data_dir"`
	// AssetDir holds fitted vocabularies and the run manifest.
	AssetDir string `yaml:"asset_dir"`
	// FeatureDir holds feature spec documents; FeatureSet names the one to use.
	FeatureDir string `yaml:"fe_dir"`
	FeatureSet string `yaml:"fe_set"`

	// Input file names per mode, checked against the feature spec.
	TrainData string `yaml:"train_data"`
	ValidData string `yaml:"val_data"`
	TestData  string `yaml:"test_data"`

	EntityColumn    string `yaml:"entity_column"`
	TimestampColumn string `yaml:"timestamp_column"`
	// TimestampLayout is the time.Parse layout of textual timestamps.
	TimestampLayout string `yaml:"timestamp_layout"`

	// CategoricalColumns and ContinuousColumns replace the partition derived
	// from the feature spec when non-empty.
	CategoricalColumns []string `yaml:"categorical_columns"`
	ContinuousColumns  []string `yaml:"continuous_columns"`

	MaxSeqLen  int   `yaml:"max_seq_len"`
	BatchSize  int   `yaml:"batch_size"`
	NumWorkers int   `yaml:"num_workers"`
	PinMemory  bool  `yaml:"pin_memory"`
	Seed       int64 `yaml:"seed"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		DataDir:         "data",
		AssetDir:        "asset",
		FeatureDir:      "fe",
		FeatureSet:      "features.json",
		TrainData:       "train_data.csv",
		ValidData:       "valid_data.csv",
		TestData:        "test_data.csv",
		EntityColumn:    "userID",
		TimestampColumn: "Timestamp",
		TimestampLayout: "2006-01-02 15:04:05",
		MaxSeqLen:       20,
		BatchSize:       64,
		NumWorkers:      1,
		Seed:            0,
	}
}

// FileFor returns the configured input file name of mode.
func (c Config) FileFor(mode Mode) string {
	switch mode {
	case ModeTrain:
		return c.TrainData
	case ModeValid:
		return c.ValidData
	case ModeTest:
		return c.TestData
	default:
		return ""
	}
}

// FeatureSpecPath is the path of the feature spec document.
func (c Config) FeatureSpecPath() string {
	return filepath.Join(c.FeatureDir, c.FeatureSet)
}

// Validate checks that the configuration is valid
func (c Config) Validate() error {
	if c.AssetDir == "" {
		return fmt.Errorf("asset_dir is required")
	}
	if c.EntityColumn == "" {
		return fmt.Errorf("entity_column is required")
	}
	if c.TimestampColumn == "" {
		return fmt.Errorf("timestamp_column is required")
	}
	if c.EntityColumn == c.TimestampColumn {
		return fmt.Errorf("entity_column and timestamp_column must differ")
	}
	if c.TimestampLayout == "" {
		return fmt.Errorf("timestamp_layout is required")
	}
	if c.MaxSeqLen <= 0 {
		return fmt.Errorf("max_seq_len must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("num_workers must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of DefaultConfig.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge returns c with every non-zero field of other applied on top.
func (c Config) Merge(other Config) Config {
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.AssetDir != "" {
		c.AssetDir = other.AssetDir
	}
	if other.FeatureDir != "" {
		c.FeatureDir = other.FeatureDir
	}
	if other.FeatureSet != "" {
		c.FeatureSet = other.FeatureSet
	}
	if other.TrainData != "" {
		c.TrainData = other.TrainData
	}
	if other.ValidData != "" {
		c.ValidData = other.ValidData
	}
	if other.TestData != "" {
		c.TestData = other.TestData
	}
	if other.EntityColumn != "" {
		c.EntityColumn = other.EntityColumn
	}
	if other.TimestampColumn != "" {
		c.TimestampColumn = other.TimestampColumn
	}
	if other.TimestampLayout != "" {
		c.TimestampLayout = other.TimestampLayout
	}
	if len(other.CategoricalColumns) > 0 {
		c.CategoricalColumns = other.CategoricalColumns
	}
	if len(other.ContinuousColumns) > 0 {
		c.ContinuousColumns = other.ContinuousColumns
	}
	if other.MaxSeqLen != 0 {
		c.MaxSeqLen = other.MaxSeqLen
	}
	if other.BatchSize != 0 {
		c.BatchSize = other.BatchSize
	}
	if other.NumWorkers != 0 {
		c.NumWorkers = other.NumWorkers
	}
	if other.PinMemory {
		c.PinMemory = true
	}
	if other.Seed != 0 {
		c.Seed = other.Seed
	}
	return c
}
