package notion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/intake/format"
)

// PageCreator is the subset of notionapi.PageService used here.
type PageCreator interface {
	Create(ctx context.Context, request *notionapi.PageCreateRequest) (*notionapi.Page, error)
}

// DatabaseWriter はプロパティ形式の送信内容を Notion データベースの 1 ページとして作成するシンク。
type DatabaseWriter struct {
	pages      PageCreator
	databaseID notionapi.DatabaseID
}

// NewDatabaseWriter binds a page service to the target database.
func NewDatabaseWriter(pages PageCreator, databaseID string) *DatabaseWriter {
	return &DatabaseWriter{pages: pages, databaseID: notionapi.DatabaseID(strings.TrimSpace(databaseID))}
}

// Name implements application.Sink.
func (w *DatabaseWriter) Name() string { return "notion" }

// Deliver creates the page. The property map is passed through as produced by the formatter.
func (w *DatabaseWriter) Deliver(ctx context.Context, _ *domain.Record, rendered format.Rendered) error {
	if w.databaseID == "" {
		return errors.New("notion database id is empty")
	}
	request := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: w.databaseID,
		},
		Properties: ToNotionProperties(rendered.Properties),
	}
	if _, err := w.pages.Create(ctx, request); err != nil {
		return fmt.Errorf("Notion ページの作成に失敗: %w", err)
	}
	return nil
}

// ToNotionProperties maps tagged property values onto the API's property types.
func ToNotionProperties(props format.Properties) notionapi.Properties {
	out := make(notionapi.Properties, len(props))
	for name, prop := range props {
		switch prop.Kind {
		case format.PropertyTitle:
			out[name] = notionapi.TitleProperty{Title: richText(prop.Text)}
		case format.PropertyRichText:
			out[name] = notionapi.RichTextProperty{RichText: richText(prop.Text)}
		case format.PropertyNumber:
			out[name] = notionapi.NumberProperty{Number: prop.Number}
		case format.PropertyCheckbox:
			out[name] = notionapi.CheckboxProperty{Checkbox: prop.Checkbox}
		case format.PropertyMultiSelect:
			out[name] = notionapi.MultiSelectProperty{MultiSelect: selectOptions(prop.Options)}
		case format.PropertyDate:
			start := notionapi.Date(prop.Date)
			out[name] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}}
		}
	}
	return out
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{{Text: &notionapi.Text{Content: content}}}
}

// selectOptions は選択肢名からカンマを除き、重複を落とす。API はカンマ入りの選択肢を受け付けない。
func selectOptions(values []string) []notionapi.Option {
	options := make([]notionapi.Option, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		name := strings.TrimSpace(strings.ReplaceAll(value, ",", ""))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		options = append(options, notionapi.Option{Name: name})
	}
	return options
}
