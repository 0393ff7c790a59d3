// Package temporal normalizes timestamp columns to Unix seconds.
package temporal

import (
	"errors"
	"fmt"
	"time"

	"github.com/DongjaeJang/Deep-Knowledge-Tracing/pkg/tables"
)

// DefaultLayout is the layout of timestamps in the interaction logs.
const DefaultLayout = "2006-01-02 15:04:05"

var ErrParse = errors.New("parsing timestamp")

// Normalize converts a Text timestamp column of frame to Numeric Unix seconds,
// parsing every value with layout in UTC. Numeric columns are left as they are.
// It reports whether the column was converted.
func Normalize(frame *tables.Frame, column, layout string) (bool, error) {
	c, err := frame.Column(column)
	if err != nil {
		return false, err
	}
	if c.Kind == tables.Numeric {
		return false, nil
	}

	seconds := make([]float64, len(c.Strings))
	for i, s := range c.Strings {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			return false, fmt.Errorf("%w: %q row %d: %w", ErrParse, column, i, err)
		}
		seconds[i] = float64(t.Unix())
	}

	err = frame.Set(tables.NewNumericColumn(column, seconds))
	if err != nil {
		return false, err
	}
	return true, nil
}
