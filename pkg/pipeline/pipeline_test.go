package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/assets"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/config"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/sequence"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/tables"
	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/vocab"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const featureSpec = `{
    "train_data": "train_data.csv",
    "val_data": "valid_data.csv",
    "test_data": "test_data.csv",
    "features": {
        "testId": "del",
        "assessmentItemID": {"type": "cate"},
        "answerCode": {"type": "int"},
        "KnowledgeTag": {"type": "cate"}
    }
}`

const trainCSV = `,userID,assessmentItemID,testId,answerCode,Timestamp,KnowledgeTag
0,1,A1,T1,1,2020-03-24 00:17:14,7224
1,1,A2,T1,0,2020-03-24 00:17:11,7225
2,2,A1,T1,1,2020-03-25 10:00:00,7224
`

// Columns in a different order than training, with an item never seen before.
const validCSV = `userID,KnowledgeTag,answerCode,assessmentItemID,testId,Timestamp
3,7225,1,A3,T1,2020-04-01 09:00:00
3,7224,0,A1,T1,2020-04-01 08:00:00
`

func setup(t *testing.T, files map[string]string) config.Config {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(root, "data")
	cfg.AssetDir = filepath.Join(root, "asset")
	cfg.FeatureDir = filepath.Join(root, "fe")

	require.NoError(t, os.MkdirAll(cfg.DataDir, os.ModePerm))
	require.NoError(t, os.MkdirAll(cfg.FeatureDir, os.ModePerm))
	require.NoError(t, os.WriteFile(cfg.FeatureSpecPath(), []byte(featureSpec), 0644))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, name), []byte(content), 0644))
	}
	return cfg
}

func TestLoadTrainData(t *testing.T) {
	cfg := setup(t, map[string]string{"train_data.csv": trainCSV})
	store := assets.NewMemoryStore()
	p := NewPreprocess(cfg, store, nil, nil)

	require.NoError(t, p.LoadTrainData(context.Background()))
	result := p.TrainData()
	require.NotNil(t, result)

	assert.Equal(t, []string{"assessmentItemID", "answerCode", "KnowledgeTag", sequence.MaskColumn}, result.ColumnSeq)
	assert.NotContains(t, result.ColumnSeq, "testId")
	assert.NotContains(t, result.ColumnSeq, "userID")
	assert.NotContains(t, result.ColumnSeq, "Timestamp")
	assert.Equal(t, map[string]int{"assessmentItemID": 3, "KnowledgeTag": 3}, result.Cardinality)
	assert.Equal(t, []string{"answerCode"}, result.Partition.Continuous)

	require.Len(t, result.Sequences, 2)
	first := result.Sequences[0]
	assert.Equal(t, "1", first.Entity)
	want := [][]float64{
		{1, 0}, // A2 then A1
		{0, 1},
		{1, 0}, // 7225 then 7224
	}
	if diff := cmp.Diff(want, first.Values); diff != "" {
		t.Errorf("entity 1 (-want +got):\n%s", diff)
	}

	// Continuous columns are never encoded.
	_, err := store.Get(assets.ClassesKey("answerCode"))
	require.ErrorIs(t, err, assets.ErrNotFound)

	classes, err := assets.LoadClasses(store, "assessmentItemID")
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2", vocab.Unknown}, classes)

	manifest, err := assets.LoadManifest(store)
	require.NoError(t, err)
	assert.Equal(t, result.ColumnSeq, manifest.ColumnSeq)
	assert.Equal(t, "train_data.csv", manifest.TrainData)
	assert.Equal(t, assets.Fingerprint(classes), manifest.Fingerprints["assessmentItemID"])
}

func TestLoadTrainData_Deterministic(t *testing.T) {
	cfg := setup(t, map[string]string{"train_data.csv": trainCSV})

	first, second := assets.NewMemoryStore(), assets.NewMemoryStore()
	require.NoError(t, NewPreprocess(cfg, first, nil, nil).LoadTrainData(context.Background()))
	require.NoError(t, NewPreprocess(cfg, second, nil, nil).LoadTrainData(context.Background()))

	for _, column := range []string{"assessmentItemID", "KnowledgeTag"} {
		a, err := first.Get(assets.ClassesKey(column))
		require.NoError(t, err)
		b, err := second.Get(assets.ClassesKey(column))
		require.NoError(t, err)
		assert.Equal(t, a, b, column)
	}
}

func TestLoadValidData_ReusesTraining(t *testing.T) {
	cfg := setup(t, map[string]string{
		"train_data.csv": trainCSV,
		"valid_data.csv": validCSV,
	})
	store := assets.NewMemoryStore()
	metrics := NewMetrics(prometheus.NewRegistry())
	p := NewPreprocess(cfg, store, nil, metrics)

	ctx := context.Background()
	require.NoError(t, p.LoadTrainData(ctx))
	require.NoError(t, p.LoadValidData(ctx))

	result := p.ValidData()
	assert.Equal(t, p.TrainData().ColumnSeq, result.ColumnSeq)
	assert.Equal(t, p.TrainData().Cardinality, result.Cardinality)

	require.Len(t, result.Sequences, 1)
	items, ok := result.Sequences[0].Column("assessmentItemID")
	require.True(t, ok)
	// A1 at 08:00, then the unseen A3.
	assert.Equal(t, []float64{0, 2}, items)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UnknownCategories.WithLabelValues("val", "assessmentItemID")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RowsLoaded.WithLabelValues("train")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.RowsLoaded.WithLabelValues("val")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Sequences.WithLabelValues("val")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.VocabularySize.WithLabelValues("KnowledgeTag")))
}

func TestLoadValidData_MissingVocabulary(t *testing.T) {
	cfg := setup(t, map[string]string{"valid_data.csv": validCSV})

	err := NewPreprocess(cfg, assets.NewMemoryStore(), nil, nil).LoadValidData(context.Background())
	require.ErrorIs(t, err, vocab.ErrMissingVocabulary)
	require.ErrorIs(t, err, assets.ErrNotFound)
}

func TestLoadTestData_ColumnMismatch(t *testing.T) {
	cfg := setup(t, map[string]string{
		"train_data.csv": trainCSV,
		"test_data.csv": `userID,assessmentItemID,answerCode,Timestamp,KnowledgeTag,extra
1,A1,1,2020-03-24 00:17:14,7224,5
`,
	})
	store := assets.NewMemoryStore()
	p := NewPreprocess(cfg, store, nil, nil)

	ctx := context.Background()
	require.NoError(t, p.LoadTrainData(ctx))
	err := p.LoadTestData(ctx)
	require.ErrorIs(t, err, ErrColumnMismatch)
	assert.Nil(t, p.TestData())
}

func TestLoadValidData_WithoutManifest(t *testing.T) {
	cfg := setup(t, map[string]string{
		"train_data.csv": trainCSV,
		"valid_data.csv": validCSV,
	})
	trained := assets.NewMemoryStore()
	require.NoError(t, NewPreprocess(cfg, trained, nil, nil).LoadTrainData(context.Background()))

	store := assets.NewMemoryStore()
	for _, key := range trained.Keys() {
		if key == assets.ManifestKey {
			continue
		}
		data, err := trained.Get(key)
		require.NoError(t, err)
		require.NoError(t, store.Put(key, data))
	}

	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPreprocess(cfg, store, zap.New(core), nil)
	require.NoError(t, p.LoadValidData(context.Background()))

	assert.Equal(t, []string{"KnowledgeTag", "answerCode", "assessmentItemID", sequence.MaskColumn}, p.ValidData().ColumnSeq)
	assert.Equal(t, 1, logs.FilterMessage("no training manifest, keeping derived column order").Len())
}

func TestLoadDataFromFile_Parquet(t *testing.T) {
	cfg := setup(t, map[string]string{"train_data.csv": trainCSV})

	frame, err := tables.ReadCSVFile(filepath.Join(cfg.DataDir, cfg.TrainData))
	require.NoError(t, err)
	require.NoError(t, tables.WriteParquet(filepath.Join(cfg.DataDir, "train"+tables.ParquetExt), frame, nil, ""))

	ctx := context.Background()
	fromCSV, err := NewPreprocess(cfg, assets.NewMemoryStore(), nil, nil).LoadDataFromFile(ctx, cfg.TrainData, config.ModeTrain)
	require.NoError(t, err)
	fromParquet, err := NewPreprocess(cfg, assets.NewMemoryStore(), nil, nil).LoadDataFromFile(ctx, "train"+tables.ParquetExt, config.ModeTrain)
	require.NoError(t, err)

	assert.Equal(t, fromCSV.ColumnSeq, fromParquet.ColumnSeq)
	require.Len(t, fromParquet.Sequences, len(fromCSV.Sequences))
	for i := range fromCSV.Sequences {
		assert.Equal(t, fromCSV.Sequences[i].Values, fromParquet.Sequences[i].Values)
	}
}

func TestResult_Annotations(t *testing.T) {
	cfg := setup(t, map[string]string{"train_data.csv": trainCSV})
	p := NewPreprocess(cfg, assets.NewMemoryStore(), nil, nil)
	require.NoError(t, p.LoadTrainData(context.Background()))

	annotations := p.TrainData().Annotations()
	assert.Equal(t, "categorical", annotations["KnowledgeTag"].Kind)
	assert.Equal(t, "vocabulary of 3 classes", annotations["KnowledgeTag"].Comment)
	assert.Equal(t, "continuous", annotations["answerCode"].Kind)
}

func TestSplitData(t *testing.T) {
	data := make([]sequence.Sequence, 10)
	for i := range data {
		data[i] = sequence.Sequence{Entity: fmt.Sprint(i)}
	}
	entities := func(seqs []sequence.Sequence) []string {
		out := make([]string, len(seqs))
		for i, s := range seqs {
			out[i] = s.Entity
		}
		return out
	}

	train, valid := SplitData(data, 0.7, true, 0)
	assert.Len(t, train, 7)
	assert.Len(t, valid, 3)

	again, _ := SplitData(data, 0.7, true, 0)
	assert.Equal(t, entities(train), entities(again))
	assert.Equal(t, "0", data[0].Entity)
	assert.ElementsMatch(t, entities(data), append(entities(train), entities(valid)...))

	ordered, rest := SplitData(data, 0.7, false, 0)
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6"}, entities(ordered))
	assert.Equal(t, []string{"7", "8", "9"}, entities(rest))
}

func TestLoadValidData_KeepsTrainedCategories(t *testing.T) {
	cfg := setup(t, map[string]string{
		"train_data.csv": `userID,assessmentItemID,testId,answerCode,Timestamp,KnowledgeTag,grade
1,A1,T1,1,2020-03-24 00:17:14,7224,A
2,A2,T1,0,2020-03-24 00:17:11,7225,B
`,
		// Every grade parses as a number here, but training encoded grade.
		"valid_data.csv": `userID,assessmentItemID,testId,answerCode,Timestamp,KnowledgeTag,grade
3,A1,T1,1,2020-04-01 08:00:00,7224,1
3,A2,T1,0,2020-04-01 09:00:00,7225,2
`,
	})
	p := NewPreprocess(cfg, assets.NewMemoryStore(), nil, nil)

	ctx := context.Background()
	require.NoError(t, p.LoadTrainData(ctx))
	require.NoError(t, p.LoadValidData(ctx))

	train, valid := p.TrainData(), p.ValidData()
	assert.Equal(t, []string{"assessmentItemID", "KnowledgeTag", "grade"}, train.Partition.Categorical)
	assert.Equal(t, train.Partition, valid.Partition)
	assert.Equal(t, train.Cardinality, valid.Cardinality)
	assert.Equal(t, 3, valid.Cardinality["grade"])

	require.Len(t, valid.Sequences, 1)
	grades, ok := valid.Sequences[0].Column("grade")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 2}, grades)
}

func TestLoadValidData_WarnsOnVocabularyDrift(t *testing.T) {
	cfg := setup(t, map[string]string{
		"train_data.csv": trainCSV,
		"valid_data.csv": validCSV,
	})
	store := assets.NewMemoryStore()
	require.NoError(t, NewPreprocess(cfg, store, nil, nil).LoadTrainData(context.Background()))
	require.NoError(t, assets.SaveClasses(store, "KnowledgeTag", []string{"7224", "7225", "9999", vocab.Unknown}))

	core, logs := observer.New(zapcore.WarnLevel)
	p := NewPreprocess(cfg, store, zap.New(core), nil)
	require.NoError(t, p.LoadValidData(context.Background()))

	drift := logs.FilterMessage("vocabulary changed since training run")
	require.Equal(t, 1, drift.Len())
	assert.Equal(t, "KnowledgeTag", drift.All()[0].ContextMap()["column"])
	assert.Equal(t, 4, p.ValidData().Cardinality["KnowledgeTag"])
}
