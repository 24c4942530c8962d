package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
	"github.com/sngm3741/form-intake/api/internal/intake/format"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeSink struct {
	name      string
	err       error
	delivered []*domain.Record
	rendered  []format.Rendered
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Deliver(_ context.Context, record *domain.Record, rendered format.Rendered) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, record)
	f.rendered = append(f.rendered, rendered)
	return nil
}

type fakeFailures struct {
	mu       sync.Mutex
	items    map[string]*domain.FailedDelivery
	seq      int
	attempts []string
	err      error
}

func newFakeFailures() *fakeFailures {
	return &fakeFailures{items: map[string]*domain.FailedDelivery{}}
}

func (f *fakeFailures) Record(_ context.Context, failure *domain.FailedDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.seq++
	failure.ID = fmt.Sprintf("f%d", f.seq)
	copied := *failure
	f.items[failure.ID] = &copied
	return nil
}

func (f *fakeFailures) List(_ context.Context, _ Paging) ([]domain.FailedDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.FailedDelivery, 0, len(f.items))
	for i := 1; i <= f.seq; i++ {
		if item, ok := f.items[fmt.Sprintf("f%d", i)]; ok && item.Status == domain.FailureStatusPending {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeFailures) FindByID(_ context.Context, id string) (*domain.FailedDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (f *fakeFailures) MarkResolved(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return ErrNotFound
	}
	item.Status = domain.FailureStatusResolved
	return nil
}

func (f *fakeFailures) MarkAttempt(_ context.Context, id string, cause string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return ErrNotFound
	}
	item.Attempts++
	item.Error = cause
	f.attempts = append(f.attempts, id)
	return nil
}

type fakeRecorder struct {
	deliveries map[string][]error
	uploads    []int64
	uploadErrs []error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{deliveries: map[string][]error{}}
}

func (r *fakeRecorder) ObserveDelivery(sink string, err error) {
	r.deliveries[sink] = append(r.deliveries[sink], err)
}

func (r *fakeRecorder) ObserveUpload(bytes int64, err error) {
	r.uploads = append(r.uploads, bytes)
	r.uploadErrs = append(r.uploadErrs, err)
}

type fakeReader struct {
	stored *domain.StoredSubmission
	err    error
}

func (f *fakeReader) FindSubmission(_ context.Context, _ string) (*domain.StoredSubmission, error) {
	return f.stored, f.err
}

type fakeMarkdown struct {
	doc string
}

func (f *fakeMarkdown) FindMarkdown(_ context.Context, id string) (string, error) {
	if f.doc == "" {
		return "", ErrNotFound
	}
	return f.doc, nil
}

type fakeBlobStore struct {
	uploads []domain.BlobUpload
	bodies  []string
	err     error
}

func (f *fakeBlobStore) Put(_ context.Context, upload domain.BlobUpload) (*domain.BlobObject, error) {
	data, err := io.ReadAll(upload.Body)
	if err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	f.uploads = append(f.uploads, upload)
	f.bodies = append(f.bodies, string(data))
	return &domain.BlobObject{
		URL:                "https://blob.example.com/" + upload.Key,
		DownloadURL:        "https://blob.example.com/" + upload.Key + "?download=1",
		Pathname:           upload.Key,
		ContentType:        upload.ContentType,
		ContentDisposition: upload.ContentDisposition,
	}, nil
}

var errBoom = errors.New("boom")
