package profile

import (
	"testing"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/sequence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_DType(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{name: "empty", values: nil, want: "empty"},
		{name: "codes", values: []float64{0, 1, 250}, want: "uint8"},
		{name: "large codes", values: []float64{0, 70000}, want: "uint32"},
		{name: "signed", values: []float64{-3, 100}, want: "int8"},
		{name: "signed wide", values: []float64{-3, 1000}, want: "int16"},
		{name: "halves", values: []float64{0.5, 1.25}, want: "float32"},
		{name: "tenths", values: []float64{0.1}, want: "float64"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := New("x")
			for _, v := range tc.values {
				p.Add(v)
			}
			assert.Equal(t, tc.want, p.DType())
		})
	}
}

func TestProfile_Enum(t *testing.T) {
	p := New("answerCode")
	for _, v := range []float64{1, 0, 1, 1} {
		p.Add(v)
	}
	assert.True(t, p.Enum())
	assert.Equal(t, "answerCode;uint8;0;1;0:1;1:3", p.String())

	wide := New("elapsed")
	for i := range MaxEnum + 5 {
		wide.Add(float64(i))
	}
	assert.False(t, wide.Enum())
	assert.Equal(t, 0.0, wide.Min)
	assert.Equal(t, float64(MaxEnum+4), wide.Max)
	assert.Equal(t, "elapsed;uint8;0;24", wide.String())
}

func TestColumns(t *testing.T) {
	layout := sequence.NewLayout([]string{"item", "answerCode"})
	sequences := []sequence.Sequence{
		{Entity: "1", Layout: layout, Values: [][]float64{{3, 4}, {1, 0}}},
		{Entity: "2", Layout: layout, Values: [][]float64{{7}, {1}}},
	}

	profiles := Columns(sequences, layout)
	require.Len(t, profiles, 2)
	assert.Equal(t, "item", profiles[0].Name)
	assert.Equal(t, 3, profiles[0].Count)
	assert.Equal(t, 7.0, profiles[0].Max)
	assert.Equal(t, map[float64]int{0: 1, 1: 2}, profiles[1].Seen)
}
