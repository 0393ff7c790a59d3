package tables

import "github.com/apache/arrow/go/v18/arrow"

// Annotation describes a column in an exported table.
type Annotation struct {
	// Kind is the feature role of the column, such as "categorical".
	Kind    string
	Comment string
}

// Schema returns the Arrow schema of f. Text columns map to strings and Numeric
// columns to float64. Annotations, keyed by column name, become field metadata.
func Schema(f *Frame, annotations map[string]Annotation, tableComment string) *arrow.Schema {
	fields := make([]arrow.Field, len(f.columns))
	for i, c := range f.columns {
		var dataType arrow.DataType = arrow.PrimitiveTypes.Float64
		if c.Kind == Text {
			dataType = arrow.BinaryTypes.String
		}

		annotation := annotations[c.Name]
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     dataType,
			Metadata: annotation.metadata(),
			Nullable: c.Null != nil,
		}
	}

	b := &metadataBuilder{}
	metadata := b.add(CommentKey, tableComment).build()
	return arrow.NewSchema(fields, &metadata)
}
