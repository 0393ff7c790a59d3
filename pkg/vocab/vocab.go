// Package vocab encodes categorical columns as integer codes using
// vocabularies fitted in training and persisted for later runs.
package vocab

import (
	"errors"
	"fmt"
	"sort"
)

// Unknown is the class every value unseen in training maps to.
const Unknown = "unknown"

var (
	// ErrMissingVocabulary is returned outside training when a column has no
	// persisted vocabulary. It always wraps assets.ErrNotFound.
	ErrMissingVocabulary = errors.New("missing vocabulary")
	ErrBadVocabulary     = errors.New("invalid vocabulary")
	ErrUnknownCode       = errors.New("code out of vocabulary range")
)

// Vocabulary is the sorted class list of one column. A value's code is its
// index in Classes.
type Vocabulary struct {
	Column  string
	Classes []string
	codes   map[string]int
}

// NewVocabulary indexes classes, which must be sorted, unique, and contain
// Unknown.
func NewVocabulary(column string, classes []string) (*Vocabulary, error) {
	codes := make(map[string]int, len(classes))
	for i, class := range classes {
		if i > 0 && classes[i-1] >= class {
			return nil, fmt.Errorf("%w: %q classes are not sorted and unique at %d", ErrBadVocabulary, column, i)
		}
		codes[class] = i
	}
	if _, ok := codes[Unknown]; !ok {
		return nil, fmt.Errorf("%w: %q has no %q class", ErrBadVocabulary, column, Unknown)
	}
	return &Vocabulary{Column: column, Classes: classes, codes: codes}, nil
}

// Fit builds the vocabulary of values: their unique set plus Unknown, sorted.
func Fit(column string, values []string) *Vocabulary {
	seen := map[string]struct{}{Unknown: {}}
	for _, v := range values {
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	codes := make(map[string]int, len(classes))
	for i, class := range classes {
		codes[class] = i
	}
	return &Vocabulary{Column: column, Classes: classes, codes: codes}
}

func (v *Vocabulary) Len() int {
	return len(v.Classes)
}

// Code returns the code of value, and false if value is not a class.
func (v *Vocabulary) Code(value string) (int, bool) {
	code, ok := v.codes[value]
	return code, ok
}

// UnknownCode returns the code of Unknown.
func (v *Vocabulary) UnknownCode() int {
	return v.codes[Unknown]
}

// Encode maps each value to its code, substituting Unknown for values outside
// the vocabulary. It returns the codes and how many values were unknown.
func (v *Vocabulary) Encode(values []string) ([]float64, int) {
	codes := make([]float64, len(values))
	unknown := 0
	for i, value := range values {
		code, ok := v.codes[value]
		if !ok {
			code = v.UnknownCode()
			unknown++
		}
		codes[i] = float64(code)
	}
	return codes, unknown
}

// Decode returns the class of code.
func (v *Vocabulary) Decode(code int) (string, error) {
	if code < 0 || code >= len(v.Classes) {
		return "", fmt.Errorf("%w: %q code %d, %d classes", ErrUnknownCode, v.Column, code, len(v.Classes))
	}
	return v.Classes[code], nil
}
