package application

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

const (
	// uploadPrefixAlphabet は英数字のみ。ファイル名の先頭が記号にならないようにする。
	uploadPrefixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	uploadPrefixLength   = 10
	defaultContentType   = "application/octet-stream"
)

// NewUploadService returns an UploadService. store may be nil when blob storage is not configured.
func NewUploadService(store BlobStore, metrics Recorder, logger logrus.FieldLogger) UploadService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &uploadService{store: store, metrics: metrics, logger: logger, newPrefix: randomUploadPrefix}
}

type uploadService struct {
	store     BlobStore
	metrics   Recorder
	logger    logrus.FieldLogger
	newPrefix func() (string, error)
}

// Upload はランダムな接頭辞を付けたキーでファイルをストリーム転送する。
func (s *uploadService) Upload(ctx context.Context, cmd UploadCommand) (*domain.BlobObject, error) {
	if s.store == nil {
		return nil, ErrBlobNotConfigured
	}
	filename := strings.TrimSpace(cmd.Filename)
	if filename == "" {
		return nil, ErrMissingFilename
	}
	if cmd.Body == nil {
		return nil, ErrEmptyBody
	}

	body := bufio.NewReader(cmd.Body)
	if _, err := body.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyBody
		}
		return nil, fmt.Errorf("アップロード本文の読み取りに失敗: %w", err)
	}

	prefix, err := s.newPrefix()
	if err != nil {
		return nil, fmt.Errorf("ファイル名接頭辞の生成に失敗: %w", err)
	}
	key := prefix + "-" + filename
	contentType := detectContentType(cmd.ContentType, filename)

	counter := &countingReader{r: body}
	object, err := s.store.Put(ctx, domain.BlobUpload{
		Key:                key,
		Body:               counter,
		ContentType:        contentType,
		ContentDisposition: contentDisposition(filename),
	})
	if s.metrics != nil {
		s.metrics.ObserveUpload(counter.n, err)
	}
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"pathname": object.Pathname,
		"bytes":    counter.n,
	}).Info("file uploaded")
	return object, nil
}

func randomUploadPrefix() (string, error) {
	return gonanoid.Generate(uploadPrefixAlphabet, uploadPrefixLength)
}

// detectContentType prefers the request header and falls back to the file extension.
func detectContentType(header, filename string) string {
	header = strings.TrimSpace(header)
	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil && mediaType != defaultContentType {
			return header
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); byExt != "" {
		return byExt
	}
	if header != "" {
		return header
	}
	return defaultContentType
}

func contentDisposition(filename string) string {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(filename)})
	if disposition == "" {
		return "attachment"
	}
	return disposition
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
