package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/intake/format"
)

// SubmissionRepository は送信内容を MongoDB にアーカイブするシンク兼リーダー。
type SubmissionRepository struct {
	submissions *mongo.Collection
}

// NewSubmissionRepository はアーカイブ用コレクションを束縛したリポジトリを生成する。
func NewSubmissionRepository(db *mongo.Database, collection string) *SubmissionRepository {
	return &SubmissionRepository{submissions: db.Collection(collection)}
}

// Name implements application.Sink.
func (r *SubmissionRepository) Name() string { return "archive" }

// Deliver は送信内容をドキュメントへ変換して挿入する。同じ ID の再送は別ドキュメントとして残る。
func (r *SubmissionRepository) Deliver(ctx context.Context, record *domain.Record, rendered format.Rendered) error {
	doc, err := buildSubmissionDocument(record, rendered.Markdown)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = time.Now().UTC()
	if _, err := r.submissions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("送信アーカイブの保存に失敗: %w", err)
	}
	return nil
}

// FindSubmission は指定 ID の最新アーカイブを返す。
func (r *SubmissionRepository) FindSubmission(ctx context.Context, id string) (*domain.StoredSubmission, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	var doc SubmissionDocument
	err := r.submissions.FindOne(ctx, bson.M{"submissionId": strings.TrimSpace(id)}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, application.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return mapSubmissionDocument(doc)
}

// FindMarkdown returns the markdown document archived with the latest submission for id.
func (r *SubmissionRepository) FindMarkdown(ctx context.Context, id string) (string, error) {
	stored, err := r.FindSubmission(ctx, id)
	if err != nil {
		return "", err
	}
	if stored.Markdown == "" {
		return "", application.ErrNotFound
	}
	return stored.Markdown, nil
}

// EnsureIndexes は submissionId と submittedAt の複合インデックスを作成する。
func (r *SubmissionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.submissions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "submissionId", Value: 1}, {Key: "submittedAt", Value: -1}},
	})
	return err
}

func buildSubmissionDocument(record *domain.Record, markdown string) (SubmissionDocument, error) {
	if record == nil {
		return SubmissionDocument{}, errors.New("submission record is nil")
	}
	doc := SubmissionDocument{
		SubmissionID: record.ID,
		Services:     append([]string{}, record.Services...),
		Markdown:     markdown,
		SubmittedAt:  record.SubmittedAt.UTC(),
	}
	if len(record.FormData) > 0 {
		formData := gjson.ParseBytes(record.FormData)
		if !formData.IsObject() {
			return SubmissionDocument{}, errors.New("formData must be a JSON object")
		}
		doc.FormData = toBSONDocument(formData)
		doc.FormDataJSON = string(record.FormData)
	}
	return doc, nil
}

// toBSONDocument は JSON オブジェクトをキー順のまま bson.D に写す。$ で始まるキーも通常のフィールドとして扱う。
// 重複キーは最初の位置に最後の値を置く。
func toBSONDocument(object gjson.Result) bson.D {
	doc := bson.D{}
	index := make(map[string]int)
	object.ForEach(func(key, value gjson.Result) bool {
		elem := bson.E{Key: key.String(), Value: toBSONValue(value)}
		if i, ok := index[elem.Key]; ok {
			doc[i] = elem
			return true
		}
		index[elem.Key] = len(doc)
		doc = append(doc, elem)
		return true
	})
	return doc
}

func toBSONValue(value gjson.Result) any {
	switch {
	case value.IsObject():
		return toBSONDocument(value)
	case value.IsArray():
		items := bson.A{}
		for _, item := range value.Array() {
			items = append(items, toBSONValue(item))
		}
		return items
	}
	switch value.Type {
	case gjson.String:
		return value.String()
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		if !strings.ContainsAny(value.Raw, ".eE") {
			if n, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
				return n
			}
		}
		return value.Float()
	default:
		return nil
	}
}

func mapSubmissionDocument(doc SubmissionDocument) (*domain.StoredSubmission, error) {
	stored := &domain.StoredSubmission{
		ID:          doc.SubmissionID,
		Services:    doc.Services,
		Markdown:    doc.Markdown,
		SubmittedAt: doc.SubmittedAt,
		Source:      "archive",
	}
	if stored.Services == nil {
		stored.Services = []string{}
	}
	if doc.FormDataJSON != "" {
		stored.FormData = json.RawMessage(doc.FormDataJSON)
	} else if doc.FormData != nil {
		raw, err := bson.MarshalExtJSON(doc.FormData, false, false)
		if err != nil {
			return nil, fmt.Errorf("formData の JSON 変換に失敗: %w", err)
		}
		stored.FormData = json.RawMessage(raw)
	}
	return stored, nil
}
