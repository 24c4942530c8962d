package format

import (
	"strings"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

// Markdown は送信内容を人が読むための Markdown 文書へ整形する。
// セクション順: タイトル、送信 ID、送信日時、選択サービス (空なら省略)、formData の各項目。
func (f *Formatter) Markdown(record *domain.Record) string {
	var builder strings.Builder

	builder.WriteString("# New Form Submission\n\n")
	builder.WriteString("**Submission ID:** " + record.ID + "\n")
	builder.WriteString("**Submitted At:** " + record.SubmittedAt.In(f.location).Format(timestampLayout) + "\n")

	if len(record.Services) > 0 {
		builder.WriteString("\n## Selected Services\n")
		for _, service := range record.Services {
			builder.WriteString("- " + service + "\n")
		}
	}

	if len(record.Fields) > 0 {
		builder.WriteString("\n## Form Details\n")
		for _, field := range record.Fields {
			label := f.labels.Label(field.Key)
			builder.WriteString("\n### " + label + "\n")
			builder.WriteString(f.markdownBlock(label, field.Value))
			builder.WriteString("\n")
		}
	}

	return builder.String()
}

func (f *Formatter) markdownBlock(label string, value domain.Value) string {
	switch v := value.(type) {
	case domain.Text:
		return v.Value
	case domain.Number:
		return v.String()
	case domain.Boolean:
		return boolText(v.Value)
	case domain.List:
		lines := make([]string, 0, len(v.Items))
		for _, item := range v.Items {
			lines = append(lines, "- "+item)
		}
		return strings.Join(lines, "\n")
	case domain.ObjectList:
		singular := Singular(label)
		sections := make([]string, 0, len(v.Items))
		for i, item := range v.Items {
			lines := []string{"#### " + singular + " " + itoa(i+1)}
			for _, inner := range item {
				lines = append(lines, "- **"+f.labels.Label(inner.Key)+":** "+f.inlineText(inner.Value, NotProvided))
			}
			sections = append(sections, strings.Join(lines, "\n"))
		}
		return strings.Join(sections, "\n\n")
	case domain.FileRef:
		size := v.Size
		if size == "" {
			size = "unknown"
		} else {
			size += " bytes"
		}
		return "- **File Name:** " + v.Name + "\n- **File Size:** " + size
	case domain.OpaqueObject:
		return "```json\n" + prettyJSON(v.Raw) + "\n```"
	default:
		return NotProvided
	}
}
