package application

import (
	"context"
	"errors"
	"io"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/intake/format"
)

var (
	ErrMissingID         = errors.New("submission id is required")
	ErrMissingFilename   = errors.New("filename is required")
	ErrEmptyBody         = errors.New("no file to upload")
	ErrBlobNotConfigured = errors.New("blob storage is not configured")
	ErrNotFound          = errors.New("not found")
	ErrUnknownSink       = errors.New("unknown sink")
	ErrAlreadyResolved   = errors.New("delivery already resolved")
)

// Sink is an external store that accepts a rendered submission.
// Sink は整形済みの送信内容を受け取る外部ストアのポート。
type Sink interface {
	Name() string
	Deliver(ctx context.Context, record *domain.Record, rendered format.Rendered) error
}

// SubmissionReader loads a previously delivered submission.
type SubmissionReader interface {
	FindSubmission(ctx context.Context, id string) (*domain.StoredSubmission, error)
}

// MarkdownReader loads the markdown document stored for a submission.
type MarkdownReader interface {
	FindMarkdown(ctx context.Context, id string) (string, error)
}

// FailedDeliveryRepository persists sink failures for manual retry.
type FailedDeliveryRepository interface {
	Record(ctx context.Context, failure *domain.FailedDelivery) error
	List(ctx context.Context, paging Paging) ([]domain.FailedDelivery, error)
	FindByID(ctx context.Context, id string) (*domain.FailedDelivery, error)
	MarkResolved(ctx context.Context, id string) error
	MarkAttempt(ctx context.Context, id string, cause string) error
}

// BlobStore streams an object to blob storage.
type BlobStore interface {
	Put(ctx context.Context, upload domain.BlobUpload) (*domain.BlobObject, error)
}

// Recorder receives delivery and upload outcomes for metrics.
type Recorder interface {
	ObserveDelivery(sink string, err error)
	ObserveUpload(bytes int64, err error)
}

// Paging controls pagination.
type Paging struct {
	Page  int
	Limit int
}

// SubmissionCommandService handles the write use-cases.
type SubmissionCommandService interface {
	Submit(ctx context.Context, body []byte) (*domain.Record, error)
	Retry(ctx context.Context, failureID string) error
}

// SubmissionQueryService handles read-back use-cases for operators.
type SubmissionQueryService interface {
	Detail(ctx context.Context, id string) (*domain.StoredSubmission, error)
	Markdown(ctx context.Context, id string) (string, error)
	Failures(ctx context.Context, paging Paging) ([]domain.FailedDelivery, error)
}

// UploadService streams files to blob storage.
type UploadService interface {
	Upload(ctx context.Context, cmd UploadCommand) (*domain.BlobObject, error)
}

// UploadCommand captures one upload request.
type UploadCommand struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
