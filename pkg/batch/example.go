// Package batch turns per-entity sequences into fixed-length, mask-annotated
// tensors for a training loop.
package batch

import (
	"errors"
	"fmt"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/sequence"
)

var (
	ErrMissingColumn = errors.New("sequence has no such column")
	ErrEmptyBatch    = errors.New("empty batch")
	ErrShape         = errors.New("inconsistent shape")
)

// Example is one sequence cut down to at most max_seq_len interactions.
// Names lists the columns of Values in order and always ends with the mask.
type Example struct {
	Names  []string
	Values [][]float64
}

// Mask returns the attention mask of e.
func (e Example) Mask() []float64 {
	return e.Values[len(e.Values)-1]
}

// BuildExample selects the columns of columnSeq from seq, by name, and attaches
// a mask of length maxSeqLen.
//
// A sequence longer than maxSeqLen keeps its most recent maxSeqLen values and
// gets a mask of all ones. A shorter one keeps its natural length and gets a
// mask whose trailing seq_len positions are one. Padding is left to Collate.
func BuildExample(seq sequence.Sequence, maxSeqLen int, columnSeq []string) (Example, error) {
	if maxSeqLen <= 0 {
		return Example{}, fmt.Errorf("%w: max_seq_len %d", ErrShape, maxSeqLen)
	}
	seqLen := seq.Len()

	mask := make([]float64, maxSeqLen)
	start := 0
	if seqLen > maxSeqLen {
		start = seqLen - maxSeqLen
		for i := range mask {
			mask[i] = 1
		}
	} else {
		for i := maxSeqLen - seqLen; i < maxSeqLen; i++ {
			mask[i] = 1
		}
	}

	example := Example{
		Names:  make([]string, 0, len(columnSeq)),
		Values: make([][]float64, 0, len(columnSeq)),
	}
	for _, name := range columnSeq {
		if name == sequence.MaskColumn {
			continue
		}
		values, ok := seq.Column(name)
		if !ok {
			return Example{}, fmt.Errorf("%w: entity %q, column %q", ErrMissingColumn, seq.Entity, name)
		}
		if len(values) != seqLen {
			return Example{}, fmt.Errorf("%w: entity %q, column %q has %d values, expected %d",
				ErrShape, seq.Entity, name, len(values), seqLen)
		}
		example.Names = append(example.Names, name)
		example.Values = append(example.Values, values[start:])
	}
	example.Names = append(example.Names, sequence.MaskColumn)
	example.Values = append(example.Values, mask)

	return example, nil
}
