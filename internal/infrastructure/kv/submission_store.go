package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/intake/format"
)

// DefaultKeyPrefix is the namespace for submission keys.
const DefaultKeyPrefix = "submission:"

// SubmissionStore はキーバリューストア (Redis) に送信内容を保存するシンク。
// {prefix}{id} に JSON、{prefix}{id}:markdown に Markdown 文書を書き込む。
type SubmissionStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewSubmissionStore binds a Redis client. ttl 0 keeps keys forever.
func NewSubmissionStore(client redis.Cmdable, prefix string, ttl time.Duration) *SubmissionStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &SubmissionStore{client: client, prefix: prefix, ttl: ttl}
}

type storedDocument struct {
	Services    []string        `json:"services"`
	FormData    json.RawMessage `json:"formData,omitempty"`
	SubmittedAt string          `json:"submittedAt"`
}

// Name implements application.Sink.
func (s *SubmissionStore) Name() string { return "kv" }

// Deliver writes both keys in one MULTI/EXEC transaction.
func (s *SubmissionStore) Deliver(ctx context.Context, record *domain.Record, rendered format.Rendered) error {
	payload, err := json.Marshal(storedDocument{
		Services:    record.Services,
		FormData:    record.FormData,
		SubmittedAt: record.SubmittedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("送信データのシリアライズに失敗: %w", err)
	}

	key := s.key(record.ID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, s.ttl)
		pipe.Set(ctx, key+":markdown", rendered.Markdown, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("KV への保存に失敗: %w", err)
	}
	return nil
}

// FindSubmission implements application.SubmissionReader.
func (s *SubmissionStore) FindSubmission(ctx context.Context, id string) (*domain.StoredSubmission, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, application.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc storedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("KV の送信データが不正です: %w", err)
	}
	var submittedAt time.Time
	if doc.SubmittedAt != "" {
		submittedAt, err = time.Parse(time.RFC3339Nano, doc.SubmittedAt)
		if err != nil {
			return nil, fmt.Errorf("KV の送信日時が不正です: %w", err)
		}
	}

	stored := &domain.StoredSubmission{
		ID:          id,
		Services:    doc.Services,
		FormData:    doc.FormData,
		SubmittedAt: submittedAt,
		Source:      s.Name(),
	}
	if stored.Services == nil {
		stored.Services = []string{}
	}
	if markdown, err := s.FindMarkdown(ctx, id); err == nil {
		stored.Markdown = markdown
	}
	return stored, nil
}

// FindMarkdown implements application.MarkdownReader.
func (s *SubmissionStore) FindMarkdown(ctx context.Context, id string) (string, error) {
	markdown, err := s.client.Get(ctx, s.key(id)+":markdown").Result()
	if errors.Is(err, redis.Nil) {
		return "", application.ErrNotFound
	}
	return markdown, err
}

// Ping reports whether Redis is reachable.
func (s *SubmissionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *SubmissionStore) key(id string) string {
	return s.prefix + id
}
