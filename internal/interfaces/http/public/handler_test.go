package public

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

type fakeCommands struct {
	bodies [][]byte
	err    error
}

func (f *fakeCommands) Submit(_ context.Context, body []byte) (*domain.Record, error) {
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return nil, f.err
	}
	record, err := domain.ParseRecord(body)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(record.ID) == "" {
		return nil, application.ErrMissingID
	}
	return record, nil
}

func (f *fakeCommands) Retry(context.Context, string) error { return nil }

type fakeUploads struct {
	cmds     []application.UploadCommand
	received []string
	err      error
}

func (f *fakeUploads) Upload(_ context.Context, cmd application.UploadCommand) (*domain.BlobObject, error) {
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return nil, f.err
	}
	if strings.TrimSpace(cmd.Filename) == "" {
		return nil, application.ErrMissingFilename
	}
	data, err := io.ReadAll(cmd.Body)
	if err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	if len(data) == 0 {
		return nil, application.ErrEmptyBody
	}
	f.received = append(f.received, string(data))
	return &domain.BlobObject{
		URL:         "https://cdn.example.com/abc-" + cmd.Filename,
		DownloadURL: "https://cdn.example.com/abc-" + cmd.Filename + "?download=1",
		Pathname:    "abc-" + cmd.Filename,
		ContentType: cmd.ContentType,
	}, nil
}

func newRouter(t *testing.T, commands *fakeCommands, uploads *fakeUploads, maxUpload int64, limiter func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	router := chi.NewRouter()
	NewHandler(Config{
		Logger:         logger,
		Submissions:    commands,
		Uploads:        uploads,
		MaxUploadBytes: maxUpload,
	}).Register(router, limiter)
	return router
}

func do(router http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmit_Success(t *testing.T) {
	commands := &fakeCommands{}
	router := newRouter(t, commands, &fakeUploads{}, 0, nil)

	rec := do(router, http.MethodPost, "/api/submit", `{"id":"sub-1","services":["SEO"],"formData":{"a":"b"}}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Success","submissionId":"sub-1"}`, rec.Body.String())
	require.Len(t, commands.bodies, 1)
}

func TestSubmit_BadRequests(t *testing.T) {
	router := newRouter(t, &fakeCommands{}, &fakeUploads{}, 0, nil)

	for _, body := range []string{`{"services":[]}`, `{"id":"  "}`, `not json`, `[1,2]`} {
		rec := do(router, http.MethodPost, "/api/submit", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "Submission failed: ", body)
	}
}

func TestSubmit_SinkFailure(t *testing.T) {
	commands := &fakeCommands{err: &application.DeliveryError{Errs: []error{errors.New("kv: connection refused")}}}
	router := newRouter(t, commands, &fakeUploads{}, 0, nil)

	rec := do(router, http.MethodPost, "/api/submit", `{"id":"sub-1"}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Submission failed: kv: connection refused"}`, rec.Body.String())
}

func TestSubmit_BodyTooLarge(t *testing.T) {
	router := newRouter(t, &fakeCommands{}, &fakeUploads{}, 0, nil)

	huge := `{"id":"x","formData":{"blob":"` + strings.Repeat("a", 1<<20) + `"}}`
	rec := do(router, http.MethodPost, "/api/submit", huge, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUpload_Success(t *testing.T) {
	uploads := &fakeUploads{}
	router := newRouter(t, &fakeCommands{}, uploads, 0, nil)

	rec := do(router, http.MethodPost, "/api/upload?filename=logo.png", "png-bytes", map[string]string{"Content-Type": "image/png"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"url":"https://cdn.example.com/abc-logo.png",
		"downloadUrl":"https://cdn.example.com/abc-logo.png?download=1",
		"pathname":"abc-logo.png",
		"contentType":"image/png",
		"contentDisposition":""
	}`, rec.Body.String())
	assert.Equal(t, []string{"png-bytes"}, uploads.received)
}

func TestUpload_Errors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		body   string
		err    error
		status int
		want   string
	}{
		{"missing filename", "/api/upload", "x", nil, http.StatusBadRequest, `{"error":"A filename must be provided."}`},
		{"empty body", "/api/upload?filename=a.txt", "", nil, http.StatusBadRequest, `{"message":"No file to upload."}`},
		{"not configured", "/api/upload?filename=a.txt", "x", application.ErrBlobNotConfigured, http.StatusInternalServerError, `{"error":"Configuration error: blob storage is not configured."}`},
		{"store failure", "/api/upload?filename=a.txt", "x", errors.New("AccessDenied"), http.StatusInternalServerError, `{"error":"File upload failed: AccessDenied"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newRouter(t, &fakeCommands{}, &fakeUploads{err: tc.err}, 0, nil)
			rec := do(router, http.MethodPost, tc.target, tc.body, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, tc.want, rec.Body.String())
		})
	}
}

func TestUpload_TooLarge(t *testing.T) {
	uploads := &fakeUploads{}
	router := newRouter(t, &fakeCommands{}, uploads, 4, nil)

	rec := do(router, http.MethodPost, "/api/upload?filename=a.bin", "0123456789", nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, uploads.cmds)
}

func TestUpload_TooLargeWhileStreaming(t *testing.T) {
	uploads := &fakeUploads{}
	router := newRouter(t, &fakeCommands{}, uploads, 4, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/upload?filename=a.bin", strings.NewReader("0123456789"))
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Len(t, uploads.cmds, 1)
}

func TestUpload_UsesLimiterMiddleware(t *testing.T) {
	blocked := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	uploads := &fakeUploads{}
	router := newRouter(t, &fakeCommands{}, uploads, 0, blocked)

	rec := do(router, http.MethodPost, "/api/upload?filename=a.txt", "x", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Empty(t, uploads.cmds)

	rec = do(router, http.MethodPost, "/api/submit", `{"id":"s"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
