// Package sequence groups interaction rows into per-entity sequences ordered
// by time.
package sequence

import (
	"errors"
	"fmt"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/tables"
)

// MaskColumn is the name reserved for the attention mask in a column sequence.
const MaskColumn = "mask"

var (
	ErrNotEncoded     = errors.New("column is not numeric")
	ErrLayoutMismatch = errors.New("sequence columns differ")
)

// Layout is the ordered set of column names shared by every sequence of a run.
type Layout struct {
	names []string
	index map[string]int
}

func NewLayout(names []string) *Layout {
	l := &Layout{names: append([]string(nil), names...), index: make(map[string]int, len(names))}
	for i, name := range names {
		l.index[name] = i
	}
	return l
}

// Names returns a copy of the column names in order.
func (l *Layout) Names() []string {
	return append([]string(nil), l.names...)
}

func (l *Layout) Len() int {
	return len(l.names)
}

// Index returns the position of name.
func (l *Layout) Index(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Equal reports whether l and names list the same columns in the same order.
func (l *Layout) Equal(names []string) bool {
	if len(names) != len(l.names) {
		return false
	}
	for i, name := range names {
		if l.names[i] != name {
			return false
		}
	}
	return true
}

// ColumnSeq returns the canonical column order of l followed by MaskColumn.
func (l *Layout) ColumnSeq() []string {
	return append(l.Names(), MaskColumn)
}

// Sequence holds one entity's interactions. Values[i] is the column named
// Layout.Names()[i], ordered by ascending timestamp.
type Sequence struct {
	Entity string
	Layout *Layout
	Values [][]float64
}

// Len is the number of interactions, taken from the first column.
func (s Sequence) Len() int {
	if len(s.Values) == 0 {
		return 0
	}
	return len(s.Values[0])
}

// Column returns the values of the named column.
func (s Sequence) Column(name string) ([]float64, bool) {
	i, ok := s.Layout.Index(name)
	if !ok {
		return nil, false
	}
	return s.Values[i], true
}

// Group sorts frame by (entity, timestamp) and splits it into one Sequence per
// entity, in ascending entity order. Every column other than entity and
// timestamp is kept, in frame order, and must already be Numeric.
func Group(frame *tables.Frame, entity, timestamp string) ([]Sequence, *Layout, error) {
	err := frame.SortBy(entity, timestamp)
	if err != nil {
		return nil, nil, fmt.Errorf("sorting by %q and %q: %w", entity, timestamp, err)
	}
	entities, err := frame.Column(entity)
	if err != nil {
		return nil, nil, err
	}

	var names []string
	var columns [][]float64
	for _, c := range frame.Columns() {
		if c.Name == entity || c.Name == timestamp {
			continue
		}
		if c.Kind != tables.Numeric {
			return nil, nil, fmt.Errorf("%w: %q is %s", ErrNotEncoded, c.Name, c.Kind)
		}
		names = append(names, c.Name)
		columns = append(columns, c.Floats)
	}
	layout := NewLayout(names)

	var sequences []Sequence
	start := 0
	for row := 1; row <= frame.Rows(); row++ {
		if row < frame.Rows() && entities.StringAt(row) == entities.StringAt(start) {
			continue
		}

		values := make([][]float64, len(columns))
		for i, column := range columns {
			values[i] = column[start:row:row]
		}
		sequences = append(sequences, Sequence{
			Entity: entities.StringAt(start),
			Layout: layout,
			Values: values,
		})
		start = row
	}

	return sequences, layout, nil
}
