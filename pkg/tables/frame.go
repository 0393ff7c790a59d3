package tables

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind is the storage representation of a Column.
type Kind int

const (
	// Text columns hold raw strings. Categorical features are Text until encoded.
	Text Kind = iota
	// Numeric columns hold float64 values.
	Numeric
)

func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Numeric:
		return "numeric"
	default:
		return "unknown"
	}
}

// UnnamedIndex is the header given to an index column written without a name.
const UnnamedIndex = "Unnamed: 0"

var (
	ErrNoColumn       = errors.New("column not found")
	ErrLengthMismatch = errors.New("column length does not match table")
	ErrNotNumeric     = errors.New("value is not numeric")
)

// Column is a single named column of a Frame.
//
// Exactly one of Strings or Floats is populated, depending on Kind. Null marks
// missing values until FillMissing is called; a nil Null means no value is missing.
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Floats  []float64
	Null    []bool
}

func NewTextColumn(name string, values []string) *Column {
	return &Column{Name: name, Kind: Text, Strings: values}
}

func NewNumericColumn(name string, values []float64) *Column {
	return &Column{Name: name, Kind: Numeric, Floats: values}
}

func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// IsNull reports whether the value at row i is missing.
func (c *Column) IsNull(i int) bool {
	return c.Null != nil && c.Null[i]
}

// StringAt returns the value at row i formatted as text.
func (c *Column) StringAt(i int) string {
	if c.Kind == Numeric {
		return FormatFloat(c.Floats[i])
	}
	return c.Strings[i]
}

// ToText converts the column to Text in place.
func (c *Column) ToText() {
	if c.Kind == Text {
		return
	}
	values := make([]string, len(c.Floats))
	for i, f := range c.Floats {
		values[i] = FormatFloat(f)
	}
	c.Kind = Text
	c.Strings = values
	c.Floats = nil
}

// ToNumeric converts the column to Numeric in place. Missing values become NaN
// and keep their null flag.
func (c *Column) ToNumeric() error {
	if c.Kind == Numeric {
		return nil
	}
	values := make([]float64, len(c.Strings))
	for i, s := range c.Strings {
		if c.IsNull(i) {
			values[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%w: column %q row %d: %q", ErrNotNumeric, c.Name, i, s)
		}
		values[i] = f
	}
	c.Kind = Numeric
	c.Floats = values
	c.Strings = nil
	return nil
}

// FormatFloat renders integral values without a fractional part so that codes
// such as 7224.0 and "7224" share a category.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Frame is an in-memory columnar table with ordered, uniquely named columns.
type Frame struct {
	columns []*Column
	rows    int
}

func NewFrame() *Frame {
	return &Frame{}
}

// Rows returns the number of rows in the frame.
func (f *Frame) Rows() int {
	return f.rows
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

func (f *Frame) Columns() []*Column {
	return f.columns
}

func (f *Frame) indexOf(name string) int {
	for i, c := range f.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, error) {
	i := f.indexOf(name)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoColumn, name)
	}
	return f.columns[i], nil
}

func (f *Frame) Has(name string) bool {
	return f.indexOf(name) >= 0
}

// Set adds c to the end of the frame, or replaces the column of the same name
// in place.
func (f *Frame) Set(c *Column) error {
	if len(f.columns) > 0 && c.Len() != f.rows {
		return fmt.Errorf("%w: %q has %d rows, table has %d", ErrLengthMismatch, c.Name, c.Len(), f.rows)
	}
	if len(f.columns) == 0 {
		f.rows = c.Len()
	}

	if i := f.indexOf(c.Name); i >= 0 {
		f.columns[i] = c
		return nil
	}
	f.columns = append(f.columns, c)
	return nil
}

// Drop removes the named column. Dropping an absent column is a no-op and
// returns false.
func (f *Frame) Drop(name string) bool {
	i := f.indexOf(name)
	if i < 0 {
		return false
	}
	f.columns = append(f.columns[:i], f.columns[i+1:]...)
	return true
}

// Reorder rearranges the columns to follow names. Every column must be named
// exactly once.
func (f *Frame) Reorder(names []string) error {
	if len(names) != len(f.columns) {
		return fmt.Errorf("reordering %d columns with %d names", len(f.columns), len(names))
	}
	reordered := make([]*Column, len(names))
	for i, name := range names {
		j := f.indexOf(name)
		if j < 0 {
			return fmt.Errorf("%w: %q", ErrNoColumn, name)
		}
		reordered[i] = f.columns[j]
	}
	f.columns = reordered
	return nil
}

// FillMissing replaces every missing value with zero: "0" for Text columns and
// 0 for Numeric columns.
func (f *Frame) FillMissing() {
	for _, c := range f.columns {
		if c.Null == nil {
			continue
		}
		for i, null := range c.Null {
			if !null {
				continue
			}
			if c.Kind == Numeric {
				c.Floats[i] = 0
			} else {
				c.Strings[i] = "0"
			}
		}
		c.Null = nil
	}
}

// SortBy stably sorts all rows in ascending order of the given key columns.
// Numeric keys compare by value, Text keys lexically.
func (f *Frame) SortBy(keys ...string) error {
	keyColumns := make([]*Column, len(keys))
	for i, key := range keys {
		c, err := f.Column(key)
		if err != nil {
			return err
		}
		keyColumns[i] = c
	}

	perm := make([]int, f.rows)
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool {
		ra, rb := perm[a], perm[b]
		for _, c := range keyColumns {
			if c.Kind == Numeric {
				if c.Floats[ra] != c.Floats[rb] {
					return c.Floats[ra] < c.Floats[rb]
				}
				continue
			}
			if c.Strings[ra] != c.Strings[rb] {
				return c.Strings[ra] < c.Strings[rb]
			}
		}
		return false
	})

	for _, c := range f.columns {
		c.permute(perm)
	}
	return nil
}

func (c *Column) permute(perm []int) {
	if c.Kind == Numeric {
		values := make([]float64, len(perm))
		for i, p := range perm {
			values[i] = c.Floats[p]
		}
		c.Floats = values
	} else {
		values := make([]string, len(perm))
		for i, p := range perm {
			values[i] = c.Strings[p]
		}
		c.Strings = values
	}
	if c.Null != nil {
		null := make([]bool, len(perm))
		for i, p := range perm {
			null[i] = c.Null[p]
		}
		c.Null = null
	}
}
