package vocab

import (
	"errors"
	"fmt"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/assets"
)

// Encoder fits and applies column vocabularies kept in a Store.
type Encoder struct {
	store assets.Store
}

func NewEncoder(store assets.Store) *Encoder {
	return &Encoder{store: store}
}

// Fit fits the vocabulary of values, overwrites the persisted vocabulary of
// column with it, and returns the codes of values. Fitting the same values
// always persists identical bytes.
func (e *Encoder) Fit(column string, values []string) ([]float64, *Vocabulary, error) {
	vocabulary := Fit(column, values)
	err := assets.SaveClasses(e.store, column, vocabulary.Classes)
	if err != nil {
		return nil, nil, err
	}

	codes, _ := vocabulary.Encode(values)
	return codes, vocabulary, nil
}

// Load reads the persisted vocabulary of column.
func (e *Encoder) Load(column string) (*Vocabulary, error) {
	classes, err := assets.LoadClasses(e.store, column)
	if errors.Is(err, assets.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrMissingVocabulary, err)
	} else if err != nil {
		return nil, err
	}
	return NewVocabulary(column, classes)
}

// Apply encodes values with the persisted vocabulary of column. Values not in
// the vocabulary get the code of Unknown; their count is returned.
func (e *Encoder) Apply(column string, values []string) ([]float64, int, error) {
	vocabulary, err := e.Load(column)
	if err != nil {
		return nil, 0, err
	}

	codes, unknown := vocabulary.Encode(values)
	return codes, unknown, nil
}
