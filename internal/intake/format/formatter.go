package format

import (
	"strconv"
	"strings"
	"time"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/tidwall/pretty"
)

const (
	// NotProvided is the markdown placeholder for absent values.
	NotProvided = "_Not provided_"

	timestampLayout = "2006-01-02 15:04:05 MST"
)

// Rendered holds both output modes of one record.
type Rendered struct {
	Markdown   string
	Properties Properties
}

// Formatter renders records. It holds no mutable state and is safe for concurrent use.
type Formatter struct {
	labels   *Labeler
	location *time.Location
}

// NewFormatter はラベル導出器と表示用タイムゾーンを束縛した Formatter を返す。
func NewFormatter(labels *Labeler, location *time.Location) *Formatter {
	if labels == nil {
		labels = NewLabeler(DefaultLabelOverrides)
	}
	if location == nil {
		location = time.UTC
	}
	return &Formatter{labels: labels, location: location}
}

// Render produces both representations of record.
func (f *Formatter) Render(record *domain.Record) Rendered {
	return Rendered{
		Markdown:   f.Markdown(record),
		Properties: f.Properties(record),
	}
}

// Label exposes the formatter's label derivation.
func (f *Formatter) Label(key string) string {
	return f.labels.Label(key)
}

// inlineText は値を 1 行のテキストへ平坦化する。ObjectList の内側やプロパティ値で使う。
func (f *Formatter) inlineText(value domain.Value, placeholder string) string {
	switch v := value.(type) {
	case domain.Text:
		return v.Value
	case domain.Number:
		return v.String()
	case domain.Boolean:
		return boolText(v.Value)
	case domain.List:
		return strings.Join(v.Items, ", ")
	case domain.ObjectList:
		return f.objectListText(v, "Item", placeholder)
	case domain.FileRef:
		return fileText(v)
	case domain.OpaqueObject:
		return compactJSON(v.Raw)
	default:
		return placeholder
	}
}

func (f *Formatter) objectListText(list domain.ObjectList, singular, placeholder string) string {
	lines := make([]string, 0, len(list.Items))
	for i, item := range list.Items {
		parts := make([]string, 0, len(item))
		for _, field := range item {
			parts = append(parts, f.labels.Label(field.Key)+": "+f.inlineText(field.Value, placeholder))
		}
		lines = append(lines, singular+" "+itoa(i+1)+": "+strings.Join(parts, "; "))
	}
	return strings.Join(lines, "\n")
}

func fileText(file domain.FileRef) string {
	if file.Size == "" {
		return file.Name
	}
	return file.Name + " (" + file.Size + " bytes)"
}

func boolText(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func prettyJSON(raw string) string {
	return strings.TrimRight(string(pretty.Pretty([]byte(raw))), "\n")
}

func compactJSON(raw string) string {
	return strings.TrimSpace(string(pretty.Ugly([]byte(raw))))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
