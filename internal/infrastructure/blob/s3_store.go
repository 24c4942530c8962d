package blob

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

// Uploader is the subset of manager.Uploader used here.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Config defines the bucket and how public URLs are built.
type Config struct {
	Bucket        string
	PublicBaseURL string
	PublicACL     bool
}

// S3Store は S3 互換ストレージへファイルをストリーム転送するブロブストア。
type S3Store struct {
	uploader      Uploader
	bucket        string
	publicBaseURL string
	publicACL     bool
}

// NewS3Store binds an uploader to a bucket.
func NewS3Store(uploader Uploader, cfg Config) *S3Store {
	return &S3Store{
		uploader:      uploader,
		bucket:        strings.TrimSpace(cfg.Bucket),
		publicBaseURL: strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/"),
		publicACL:     cfg.PublicACL,
	}
}

// Put streams upload.Body under upload.Key and returns the public descriptor.
func (s *S3Store) Put(ctx context.Context, upload domain.BlobUpload) (*domain.BlobObject, error) {
	input := &s3.PutObjectInput{
		Bucket:             aws.String(s.bucket),
		Key:                aws.String(upload.Key),
		Body:               upload.Body,
		ContentType:        aws.String(upload.ContentType),
		ContentDisposition: aws.String(upload.ContentDisposition),
	}
	if s.publicACL {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	output, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ブロブストレージへのアップロードに失敗: %w", err)
	}

	objectURL := s.objectURL(upload.Key, output)
	return &domain.BlobObject{
		URL:                objectURL,
		DownloadURL:        downloadURL(objectURL),
		Pathname:           upload.Key,
		ContentType:        upload.ContentType,
		ContentDisposition: upload.ContentDisposition,
	}, nil
}

func (s *S3Store) objectURL(key string, output *manager.UploadOutput) string {
	if s.publicBaseURL != "" || output == nil || output.Location == "" {
		return s.publicBaseURL + "/" + escapeKey(key)
	}
	return output.Location
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func downloadURL(objectURL string) string {
	parsed, err := url.Parse(objectURL)
	if err != nil {
		return objectURL
	}
	query := parsed.Query()
	query.Set("download", "1")
	parsed.RawQuery = query.Encode()
	return parsed.String()
}
