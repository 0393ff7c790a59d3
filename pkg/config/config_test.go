package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.EntityColumn != "userID" {
		t.Errorf("expected entity column userID, got %s", cfg.EntityColumn)
	}
	if cfg.TimestampColumn != "Timestamp" {
		t.Errorf("expected timestamp column Timestamp, got %s", cfg.TimestampColumn)
	}
	if cfg.MaxSeqLen != 20 {
		t.Errorf("expected max_seq_len 20, got %d", cfg.MaxSeqLen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing asset dir",
			modify:  func(c *Config) { c.AssetDir = "" },
			wantErr: true,
		},
		{
			name:    "entity equals timestamp",
			modify:  func(c *Config) { c.EntityColumn = c.TimestampColumn },
			wantErr: true,
		},
		{
			name:    "zero max_seq_len",
			modify:  func(c *Config) { c.MaxSeqLen = 0 },
			wantErr: true,
		},
		{
			name:    "zero batch size",
			modify:  func(c *Config) { c.BatchSize = 0 },
			wantErr: true,
		},
		{
			name:    "negative workers",
			modify:  func(c *Config) { c.NumWorkers = -1 },
			wantErr: true,
		},
		{
			name:    "synchronous loading",
			modify:  func(c *Config) { c.NumWorkers = 0 },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
data_dir: /opt/ml/input/data
fe_set: fe_00.json
max_seq_len: 5
categorical_columns: [assessmentItemID, KnowledgeTag]
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.DataDir != "/opt/ml/input/data" {
		t.Errorf("expected data_dir /opt/ml/input/data, got %s", cfg.DataDir)
	}
	if cfg.FeatureSet != "fe_00.json" {
		t.Errorf("expected fe_set fe_00.json, got %s", cfg.FeatureSet)
	}
	if cfg.MaxSeqLen != 5 {
		t.Errorf("expected max_seq_len 5, got %d", cfg.MaxSeqLen)
	}
	if len(cfg.CategoricalColumns) != 2 {
		t.Errorf("expected 2 categorical columns, got %v", cfg.CategoricalColumns)
	}
	// Defaults survive for unset fields.
	if cfg.BatchSize != 64 {
		t.Errorf("expected default batch_size 64, got %d", cfg.BatchSize)
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestSaveToFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.AssetDir = "custom-asset"
	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if loaded.AssetDir != "custom-asset" {
		t.Errorf("expected asset_dir custom-asset, got %s", loaded.AssetDir)
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	merged := base.Merge(Config{MaxSeqLen: 100, PinMemory: true, TestData: "test.parquet"})

	if merged.MaxSeqLen != 100 {
		t.Errorf("expected max_seq_len 100, got %d", merged.MaxSeqLen)
	}
	if !merged.PinMemory {
		t.Error("expected pin_memory to be set")
	}
	if merged.TestData != "test.parquet" {
		t.Errorf("expected test_data test.parquet, got %s", merged.TestData)
	}
	if merged.BatchSize != base.BatchSize {
		t.Errorf("expected batch_size to be kept, got %d", merged.BatchSize)
	}
	if base.MaxSeqLen != 20 {
		t.Error("Merge must not modify the receiver")
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"train", "val", "test"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q) error = %v", s, err)
		}
	}
	if _, err := ParseMode("valid"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
