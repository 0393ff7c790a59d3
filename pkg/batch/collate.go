package batch

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Batch holds one (batch, max_seq_len) matrix per column, mask included.
type Batch struct {
	Names   []string
	Tensors []*mat.Dense
}

// Tensor returns the matrix of the named column.
func (b *Batch) Tensor(name string) (*mat.Dense, bool) {
	for i, n := range b.Names {
		if n == name {
			return b.Tensors[i], true
		}
	}
	return nil, false
}

// Size returns the number of examples in b.
func (b *Batch) Size() int {
	if len(b.Tensors) == 0 {
		return 0
	}
	rows, _ := b.Tensors[0].Dims()
	return rows
}

// Collate stacks examples into a Batch. The batch width is the mask length of
// the first example; each array is right-aligned into a zero row of that width.
func Collate(examples []Example) (*Batch, error) {
	if len(examples) == 0 {
		return nil, ErrEmptyBatch
	}
	first := examples[0]
	if len(first.Values) == 0 {
		return nil, fmt.Errorf("%w: example has no columns", ErrShape)
	}
	width := len(first.Mask())
	if width == 0 {
		return nil, fmt.Errorf("%w: zero-length mask", ErrShape)
	}

	b := &Batch{
		Names:   append([]string(nil), first.Names...),
		Tensors: make([]*mat.Dense, len(first.Values)),
	}
	for c := range b.Tensors {
		b.Tensors[c] = mat.NewDense(len(examples), width, nil)
	}

	for row, example := range examples {
		if len(example.Values) != len(b.Tensors) {
			return nil, fmt.Errorf("%w: example %d has %d columns, expected %d",
				ErrShape, row, len(example.Values), len(b.Tensors))
		}
		for c, values := range example.Values {
			if len(values) > width {
				return nil, fmt.Errorf("%w: example %d column %q has %d values, longer than %d",
					ErrShape, row, b.Names[c], len(values), width)
			}
			offset := width - len(values)
			for i, v := range values {
				b.Tensors[c].Set(row, offset+i, v)
			}
		}
	}

	return b, nil
}
