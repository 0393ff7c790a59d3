package tables

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	arrowcsv "github.com/apache/arrow/go/v18/arrow/csv"
	"github.com/apache/arrow/go/v18/arrow/memory"
)

const (
	CSVExt = ".csv"

	// csvChunk is the number of rows decoded into each Arrow record.
	csvChunk = 1 << 14
)

var ErrReadCSV = errors.New("reading csv")

// ReadCSVFile reads the CSV file at path into a Frame. See ReadCSV.
func ReadCSVFile(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %q: %w", ErrReadCSV, path, err)
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Println(err)
		}
	}()

	return ReadCSV(f)
}

// ReadCSV reads a CSV stream with a header row into a Frame.
//
// Every cell is decoded as a string first. Empty cells are missing values. A
// column becomes Numeric when every non-missing value parses as a float, and
// stays Text otherwise. Blank header names are replaced with "Unnamed: i" where
// i is the column position.
func ReadCSV(r io.Reader) (*Frame, error) {
	buffered := bufio.NewReader(r)
	headerLine, err := buffered.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: reading header: %w", ErrReadCSV, err)
	}
	headerLine = strings.TrimPrefix(headerLine, "\ufeff")
	if strings.TrimSpace(headerLine) == "" {
		return nil, fmt.Errorf("%w: missing header", ErrReadCSV)
	}

	header, err := csv.NewReader(strings.NewReader(headerLine)).Read()
	if err != nil {
		return nil, fmt.Errorf("%w: parsing header: %w", ErrReadCSV, err)
	}

	fields := make([]arrow.Field, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	reader := arrowcsv.NewReader(buffered, schema,
		arrowcsv.WithAllocator(memory.NewGoAllocator()),
		arrowcsv.WithChunk(csvChunk),
		arrowcsv.WithNullReader(true, ""),
	)
	defer reader.Release()

	columns := make([]*Column, len(fields))
	for i, field := range fields {
		columns[i] = &Column{Name: field.Name, Kind: Text}
	}

	for reader.Next() {
		record := reader.Record()
		for i := range columns {
			strs, ok := record.Column(i).(*array.String)
			if !ok {
				return nil, fmt.Errorf("%w: expected column %q to be of type *array.String, got %T",
					ErrReadCSV, fields[i].Name, record.Column(i))
			}
			columns[i].appendStrings(strs)
		}
	}
	if err := reader.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadCSV, err)
	}

	frame := NewFrame()
	for _, c := range columns {
		c.inferKind()
		err := frame.Set(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReadCSV, err)
		}
	}
	return frame, nil
}

func (c *Column) appendStrings(strs *array.String) {
	for i := 0; i < strs.Len(); i++ {
		if strs.IsNull(i) {
			if c.Null == nil {
				c.Null = make([]bool, len(c.Strings), len(c.Strings)+strs.Len())
			}
			c.Strings = append(c.Strings, "")
			c.Null = append(c.Null, true)
			continue
		}
		c.Strings = append(c.Strings, strs.Value(i))
		if c.Null != nil {
			c.Null = append(c.Null, false)
		}
	}
}

// inferKind converts a Text column to Numeric when every present value is a
// number. A column of only missing values is Numeric; an empty column stays Text.
func (c *Column) inferKind() {
	if len(c.Strings) == 0 {
		return
	}
	for i, s := range c.Strings {
		if c.IsNull(i) {
			continue
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return
		}
	}
	// Cannot fail: every present value parsed above.
	_ = c.ToNumeric()
}
