package tables

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
)

const (
	ParquetExt = ".parquet"

	batchSize = 1 << 20
)

var (
	ErrReadParquet  = errors.New("reading parquet")
	ErrWriteParquet = errors.New("writing parquet")
)

// ReadParquet reads every row group of the Parquet file at path into a Frame.
//
// String and dictionary-of-string columns become Text. Integer, float, and
// boolean columns become Numeric. Dates and timestamps become Numeric Unix
// seconds.
func ReadParquet(ctx context.Context, path string) (*Frame, error) {
	allocator := memory.NewGoAllocator()
	inFileReader, err := file.OpenParquetFile(path, true)
	if err != nil {
		return nil, fmt.Errorf("%w: opening parquet file %q: %w", ErrReadParquet, path, err)
	}
	defer func() {
		err := inFileReader.Close()
		if err != nil {
			fmt.Println(err)
		}
	}()

	inReader, err := pqarrow.NewFileReader(inFileReader,
		pqarrow.ArrowReadProperties{Parallel: true, BatchSize: batchSize},
		allocator,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating pqarrow FileReader: %w", ErrReadParquet, err)
	}

	schema, err := inReader.Schema()
	if err != nil {
		return nil, fmt.Errorf("%w: getting schema: %w", ErrReadParquet, err)
	}

	recordReader, err := inReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: getting record reader: %w", ErrReadParquet, err)
	}
	defer recordReader.Release()

	columns := make([]*Column, schema.NumFields())
	for i, field := range schema.Fields() {
		columns[i] = &Column{Name: field.Name, Kind: kindOf(field.Type)}
	}

	var record arrow.Record
	for record, err = recordReader.Read(); err == nil; record, err = recordReader.Read() {
		for i, c := range columns {
			if err := c.appendArray(record.Column(i)); err != nil {
				return nil, fmt.Errorf("%w: column %q: %w", ErrReadParquet, c.Name, err)
			}
		}
	}
	if !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: reading records: %w", ErrReadParquet, err)
	}

	frame := NewFrame()
	for _, c := range columns {
		if err := frame.Set(c); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReadParquet, err)
		}
	}
	return frame, nil
}

func kindOf(t arrow.DataType) Kind {
	switch dt := t.(type) {
	case *arrow.StringType, *arrow.LargeStringType:
		return Text
	case *arrow.DictionaryType:
		return kindOf(dt.ValueType)
	default:
		return Numeric
	}
}

func (c *Column) markNull(null bool) {
	if null && c.Null == nil {
		c.Null = make([]bool, c.Len())
	}
	if c.Null != nil {
		c.Null = append(c.Null, null)
	}
}

func (c *Column) appendArray(arr arrow.Array) error {
	for i := 0; i < arr.Len(); i++ {
		null := arr.IsNull(i)
		c.markNull(null)
		if c.Kind == Text {
			s, err := stringValue(arr, i, null)
			if err != nil {
				return err
			}
			c.Strings = append(c.Strings, s)
			continue
		}
		f, err := floatValue(arr, i, null)
		if err != nil {
			return err
		}
		c.Floats = append(c.Floats, f)
	}
	return nil
}

func stringValue(arr arrow.Array, i int, null bool) (string, error) {
	if null {
		return "", nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Dictionary:
		return stringValue(a.Dictionary(), a.GetValueIndex(i), false)
	default:
		return "", fmt.Errorf("unsupported text array %T", arr)
	}
}

func floatValue(arr arrow.Array, i int, null bool) (float64, error) {
	if null {
		return 0, nil
	}
	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(i), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.Int64:
		return float64(a.Value(i)), nil
	case *array.Int32:
		return float64(a.Value(i)), nil
	case *array.Int16:
		return float64(a.Value(i)), nil
	case *array.Int8:
		return float64(a.Value(i)), nil
	case *array.Uint64:
		return float64(a.Value(i)), nil
	case *array.Uint32:
		return float64(a.Value(i)), nil
	case *array.Uint16:
		return float64(a.Value(i)), nil
	case *array.Uint8:
		return float64(a.Value(i)), nil
	case *array.Boolean:
		if a.Value(i) {
			return 1, nil
		}
		return 0, nil
	case *array.Date32:
		return float64(a.Value(i).ToTime().Unix()), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return float64(a.Value(i).ToTime(unit).Unix()), nil
	case *array.Dictionary:
		return floatValue(a.Dictionary(), a.GetValueIndex(i), false)
	default:
		return 0, fmt.Errorf("unsupported numeric array %T", arr)
	}
}

// WriteParquet writes f to a gzip-compressed Parquet file at path using
// Schema(f, annotations, tableComment).
func WriteParquet(path string, f *Frame, annotations map[string]Annotation, tableComment string) error {
	schema := Schema(f, annotations, tableComment)

	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: creating %q: %w", ErrWriteParquet, path, err)
	}
	// Don't close outFile; parquet handles closing it.
	writer, err := pqarrow.NewFileWriter(
		schema,
		outFile,
		parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Gzip),
			parquet.WithCompressionLevel(gzip.BestCompression)),
		pqarrow.DefaultWriterProps(),
	)
	if err != nil {
		return fmt.Errorf("%w: creating writer: %w", ErrWriteParquet, err)
	}

	recordBuilder := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer recordBuilder.Release()

	for j, c := range f.columns {
		switch builder := recordBuilder.Field(j).(type) {
		case *array.StringBuilder:
			for i, s := range c.Strings {
				if c.IsNull(i) {
					builder.AppendNull()
					continue
				}
				builder.Append(s)
			}
		case *array.Float64Builder:
			for i, v := range c.Floats {
				if c.IsNull(i) {
					builder.AppendNull()
					continue
				}
				builder.Append(v)
			}
		default:
			return fmt.Errorf("%w: unsupported builder %T for %q", ErrWriteParquet, builder, c.Name)
		}
	}

	record := recordBuilder.NewRecord()
	defer record.Release()

	err = writer.Write(record)
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("%w: %w", ErrWriteParquet, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("%w: closing writer: %w", ErrWriteParquet, err)
	}
	return nil
}
