package tables

import "github.com/apache/arrow/go/v18/arrow"

// Metadata keys written on exported schemas and fields.
const (
	CommentKey = "comment"
	// KindKey records a column's feature role.
	KindKey = "kind"
)

// metadataBuilder collects key/value pairs for Arrow metadata, skipping empty
// values.
type metadataBuilder struct {
	keys   []string
	values []string
}

func (b *metadataBuilder) add(key, value string) *metadataBuilder {
	if value == "" {
		return b
	}
	b.keys = append(b.keys, key)
	b.values = append(b.values, value)
	return b
}

func (b *metadataBuilder) build() arrow.Metadata {
	return arrow.NewMetadata(b.keys, b.values)
}

func (a Annotation) metadata() arrow.Metadata {
	b := &metadataBuilder{}
	return b.add(KindKey, a.Kind).add(CommentKey, a.Comment).build()
}

func lookup(md arrow.Metadata, key string) string {
	i := md.FindKey(key)
	if i < 0 {
		return ""
	}
	return md.Values()[i]
}

// Annotations recovers the column annotations and table comment that Schema
// recorded on schema. Columns without annotations are omitted.
func Annotations(schema *arrow.Schema) (map[string]Annotation, string) {
	annotations := make(map[string]Annotation)
	for _, field := range schema.Fields() {
		a := Annotation{
			Kind:    lookup(field.Metadata, KindKey),
			Comment: lookup(field.Metadata, CommentKey),
		}
		if a != (Annotation{}) {
			annotations[field.Name] = a
		}
	}
	return annotations, lookup(schema.Metadata(), CommentKey)
}
