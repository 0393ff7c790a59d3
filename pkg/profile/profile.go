// Package profile summarizes the values of sequence columns: their range, the
// narrowest type that holds them, and, for columns with few distinct values,
// how often each value occurs.
package profile

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/sequence"
)

// MaxEnum is the largest number of unique values to track before not trying to
// interpret the column as an enum.
const MaxEnum = 20

const (
	float64FractionLength = 52
	float32FractionLength = 23
	float32DroppedBits    = (1 << (float64FractionLength - float32FractionLength)) - 1
)

// Profile accumulates the values of one column.
type Profile struct {
	Name  string
	Count int

	// Integral tracks if every value is a whole number.
	Integral bool
	// Float32 tracks if every value fits a float32 without losing precision.
	Float32 bool

	Min, Max float64

	// Seen counts each distinct value. It stops collecting once it holds more
	// than MaxEnum entries.
	Seen map[float64]int
}

func New(name string) *Profile {
	return &Profile{Name: name, Seen: make(map[float64]int)}
}

func (p *Profile) Add(v float64) {
	if p.Count == 0 {
		p.Integral = isIntegral(v)
		p.Float32 = isFloat32(v)
		p.Min, p.Max = v, v
	} else {
		p.Integral = p.Integral && isIntegral(v)
		p.Float32 = p.Float32 && isFloat32(v)
		p.Min = min(p.Min, v)
		p.Max = max(p.Max, v)
	}
	p.Count++

	if len(p.Seen) <= MaxEnum {
		p.Seen[v]++
	}
}

// Enum reports whether the column has at most MaxEnum distinct values.
func (p *Profile) Enum() bool {
	return len(p.Seen) <= MaxEnum
}

// DType is the narrowest numeric type that holds every value seen.
func (p *Profile) DType() string {
	if p.Count == 0 {
		return "empty"
	}
	if !p.Integral {
		if p.Float32 {
			return "float32"
		}
		return "float64"
	}

	if p.Min < 0 {
		switch {
		case p.Min >= math.MinInt8 && p.Max <= math.MaxInt8:
			return "int8"
		case p.Min >= math.MinInt16 && p.Max <= math.MaxInt16:
			return "int16"
		case p.Min >= math.MinInt32 && p.Max <= math.MaxInt32:
			return "int32"
		default:
			return "int64"
		}
	}
	switch {
	case p.Max <= math.MaxUint8:
		return "uint8"
	case p.Max <= math.MaxUint16:
		return "uint16"
	case p.Max <= math.MaxUint32:
		return "uint32"
	default:
		return "uint64"
	}
}

func (p *Profile) String() string {
	result := strings.Builder{}
	result.WriteString(p.Name)
	result.WriteString(";")
	result.WriteString(p.DType())
	if p.Count == 0 {
		return result.String()
	}

	if p.Integral {
		result.WriteString(fmt.Sprintf(";%d;%d", int64(p.Min), int64(p.Max)))
	} else {
		result.WriteString(fmt.Sprintf(";%f;%f", p.Min, p.Max))
	}

	if p.Enum() {
		keys := make([]float64, 0, len(p.Seen))
		for k := range p.Seen {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if p.Integral {
				result.WriteString(fmt.Sprintf(";%d:%d", int64(k), p.Seen[k]))
			} else {
				result.WriteString(fmt.Sprintf(";%f:%d", k, p.Seen[k]))
			}
		}
	}

	return result.String()
}

// Columns profiles every column of layout over sequences, in layout order.
func Columns(sequences []sequence.Sequence, layout *sequence.Layout) []*Profile {
	names := layout.Names()
	profiles := make([]*Profile, len(names))
	for i, name := range names {
		profiles[i] = New(name)
	}

	for _, s := range sequences {
		for i, name := range names {
			values, ok := s.Column(name)
			if !ok {
				continue
			}
			for _, v := range values {
				profiles[i].Add(v)
			}
		}
	}
	return profiles
}

func isIntegral(f float64) bool {
	return math.Round(f) == f
}

// isFloat32 reports whether f uses none of the float64-only fraction bits.
// Exponents outside the float32 range are not detected.
func isFloat32(f float64) bool {
	return math.Float64bits(f)&float32DroppedBits == 0
}
