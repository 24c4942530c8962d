package format

import (
	"time"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

// Fixed property names present on every page.
const (
	TitleProperty       = "Submission ID"
	ServicesProperty    = "Services"
	SubmittedAtProperty = "Submitted At"

	// MaxTextRunes is the per-item rich text limit of the database API.
	MaxTextRunes = 2000
)

// PropertyKind tags a PropertyValue.
type PropertyKind int

const (
	PropertyTitle PropertyKind = iota + 1
	PropertyRichText
	PropertyNumber
	PropertyCheckbox
	PropertyMultiSelect
	PropertyDate
)

// PropertyValue is one typed database column value. Only the field matching Kind is meaningful.
type PropertyValue struct {
	Kind     PropertyKind
	Text     string
	Number   float64
	Checkbox bool
	Options  []string
	Date     time.Time
}

// Properties maps column name to value.
type Properties map[string]PropertyValue

// Properties は構造化データベース向けのプロパティ集合を組み立てる。
// 値が Absent の項目は含めない。固定キーと同名になった項目は固定キーを優先する。
func (f *Formatter) Properties(record *domain.Record) Properties {
	services := append([]string{}, record.Services...)
	props := Properties{
		TitleProperty:       {Kind: PropertyTitle, Text: truncateRunes(record.ID, MaxTextRunes)},
		ServicesProperty:    {Kind: PropertyMultiSelect, Options: services},
		SubmittedAtProperty: {Kind: PropertyDate, Date: record.SubmittedAt},
	}

	for _, field := range record.Fields {
		label := f.labels.Label(field.Key)
		if isFixedProperty(label) {
			continue
		}
		value, ok := f.propertyValue(label, field.Value)
		if !ok {
			continue
		}
		props[label] = value
	}
	return props
}

func (f *Formatter) propertyValue(label string, value domain.Value) (PropertyValue, bool) {
	switch v := value.(type) {
	case domain.Number:
		return PropertyValue{Kind: PropertyNumber, Number: v.Value}, true
	case domain.Boolean:
		return PropertyValue{Kind: PropertyCheckbox, Checkbox: v.Value}, true
	case domain.ObjectList:
		return richText(f.objectListText(v, Singular(label), "")), true
	case domain.OpaqueObject:
		return richText(prettyJSON(v.Raw)), true
	case domain.Text, domain.List, domain.FileRef:
		return richText(f.inlineText(v, "")), true
	default:
		return PropertyValue{}, false
	}
}

func richText(text string) PropertyValue {
	return PropertyValue{Kind: PropertyRichText, Text: truncateRunes(text, MaxTextRunes)}
}

func isFixedProperty(name string) bool {
	switch name {
	case TitleProperty, ServicesProperty, SubmittedAtProperty:
		return true
	}
	return false
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
