package vocab

import (
	"testing"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/assets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit_Deterministic(t *testing.T) {
	first := assets.NewMemoryStore()
	second := assets.NewMemoryStore()

	codes1, _, err := NewEncoder(first).Fit("item", []string{"C", "A", "B", "A"})
	require.NoError(t, err)
	codes2, _, err := NewEncoder(second).Fit("item", []string{"B", "A", "C", "C"})
	require.NoError(t, err)

	data1, err := first.Get(assets.ClassesKey("item"))
	require.NoError(t, err)
	data2, err := second.Get(assets.ClassesKey("item"))
	require.NoError(t, err)
	assert.Equal(t, data1, data2)

	classes, err := assets.LoadClasses(first, "item")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", Unknown}, classes)

	assert.Equal(t, []float64{2, 0, 1, 0}, codes1)
	assert.Equal(t, []float64{1, 0, 2, 2}, codes2)
}

func TestApply_UnknownValues(t *testing.T) {
	store := assets.NewMemoryStore()
	encoder := NewEncoder(store)

	_, vocabulary, err := encoder.Fit("tag", []string{"7224", "7225"})
	require.NoError(t, err)

	codes, unknown, err := encoder.Apply("tag", []string{"7225", "9999", "7224", "banana"})
	require.NoError(t, err)
	assert.Equal(t, 2, unknown)

	unknownCode := float64(vocabulary.UnknownCode())
	assert.Equal(t, []float64{1, unknownCode, 0, unknownCode}, codes)
}

func TestApply_MissingVocabulary(t *testing.T) {
	_, _, err := NewEncoder(assets.NewMemoryStore()).Apply("tag", []string{"1"})
	require.ErrorIs(t, err, ErrMissingVocabulary)
	require.ErrorIs(t, err, assets.ErrNotFound)
}

func TestRoundTrip(t *testing.T) {
	store := assets.NewMemoryStore()
	encoder := NewEncoder(store)
	values := []string{"A", "B", "C", "B"}

	_, _, err := encoder.Fit("item", values)
	require.NoError(t, err)

	codes, unknown, err := encoder.Apply("item", values)
	require.NoError(t, err)
	require.Zero(t, unknown)

	classes, err := assets.LoadClasses(store, "item")
	require.NoError(t, err)
	for i, code := range codes {
		assert.Equal(t, values[i], classes[int(code)])
	}

	loaded, err := encoder.Load("item")
	require.NoError(t, err)
	label, err := loaded.Decode(int(codes[2]))
	require.NoError(t, err)
	assert.Equal(t, "C", label)

	_, err = loaded.Decode(len(classes))
	require.ErrorIs(t, err, ErrUnknownCode)
}

func TestNewVocabulary_Validates(t *testing.T) {
	_, err := NewVocabulary("item", []string{"B", "A", Unknown})
	require.ErrorIs(t, err, ErrBadVocabulary)

	_, err = NewVocabulary("item", []string{"A", "B"})
	require.ErrorIs(t, err, ErrBadVocabulary)

	v, err := NewVocabulary("item", []string{"A", "B", Unknown})
	require.NoError(t, err)
	assert.Equal(t, 3, v.Len())
	assert.Equal(t, 2, v.UnknownCode())
}
