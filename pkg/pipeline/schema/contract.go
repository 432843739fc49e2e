package schema

// FieldType is the Socrata column type a field is published as.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeURL      FieldType = "url"
	FieldTypeDate     FieldType = "calendar_date"
)

// Field captures the minimal behavior-relevant schema fields.
type Field struct {
	Name     string
	Type     FieldType
	Nullable bool
}

// DatasetContract is the logical schema contract of a published table.
type DatasetContract struct {
	Fields []Field
}

// Names returns the field names in contract order.
func (c DatasetContract) Names() []string {
	out := make([]string, 0, len(c.Fields))
	for _, f := range c.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Missing reports the contract fields absent from keys, in contract order.
func (c DatasetContract) Missing(keys map[string]struct{}) []string {
	var out []string
	for _, f := range c.Fields {
		if _, ok := keys[f.Name]; !ok && !f.Nullable {
			out = append(out, f.Name)
		}
	}
	return out
}
