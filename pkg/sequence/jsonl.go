package sequence

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/willbeason/bondsmith/jsonio"
)

var ErrJSONL = errors.New("reading sequences")

type record struct {
	Entity  string      `json:"entity"`
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"values"`
}

// WriteJSONL writes one JSON object per sequence.
func WriteJSONL(w io.Writer, sequences []Sequence) error {
	encoder := json.NewEncoder(w)
	for _, s := range sequences {
		err := encoder.Encode(record{
			Entity:  s.Entity,
			Columns: s.Layout.Names(),
			Values:  s.Values,
		})
		if err != nil {
			return fmt.Errorf("writing sequence %q: %w", s.Entity, err)
		}
	}
	return nil
}

// ReadJSONL reads sequences written by WriteJSONL. Every sequence must list the
// same columns; they share one Layout.
func ReadJSONL(r io.Reader) ([]Sequence, *Layout, error) {
	records := jsonio.NewReader(r, func() *record {
		return &record{}
	})

	var layout *Layout
	var sequences []Sequence
	for rec, err := range records.Read() {
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, nil, fmt.Errorf("%w: %w", ErrJSONL, err)
		}

		if layout == nil {
			layout = NewLayout(rec.Columns)
		} else if !layout.Equal(rec.Columns) {
			return nil, nil, fmt.Errorf("%w: %q has %v, expected %v", ErrLayoutMismatch, rec.Entity, rec.Columns, layout.names)
		}
		if len(rec.Values) != layout.Len() {
			return nil, nil, fmt.Errorf("%w: %q has %d arrays for %d columns", ErrJSONL, rec.Entity, len(rec.Values), layout.Len())
		}

		sequences = append(sequences, Sequence{
			Entity: rec.Entity,
			Layout: layout,
			Values: rec.Values,
		})
	}

	return sequences, layout, nil
}
