// Package attachment stores the optional image or document a citizen attaches
// to a complaint in an S3-compatible bucket.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const MaxSize = 5 << 20

var allowedTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

var (
	ErrTooLarge        = errors.New("attachment exceeds 5 MiB")
	ErrUnsupportedType = errors.New("attachment must be a JPEG, PNG or PDF")
	ErrEmpty           = errors.New("attachment is empty")
)

type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (u Upload) Validate() error {
	if u.Size <= 0 {
		return ErrEmpty
	}
	if u.Size > MaxSize {
		return ErrTooLarge
	}
	if _, ok := allowedTypes[NormalizeType(u.ContentType)]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// SniffType sets ContentType from the first 512 bytes of Body instead of
// trusting the client, and rejects anything that is not a JPEG, PNG or PDF.
// Body still yields the full content afterwards.
func SniffType(u *Upload) error {
	if u.Size <= 0 || u.Body == nil {
		return ErrEmpty
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(u.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return ErrEmpty
		}
		return fmt.Errorf("read attachment: %w", err)
	}
	head = head[:n]

	detected := NormalizeType(http.DetectContentType(head))
	if _, ok := allowedTypes[detected]; !ok {
		return ErrUnsupportedType
	}
	u.ContentType = detected
	u.Body = io.MultiReader(bytes.NewReader(head), u.Body)
	return nil
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ObjectKey returns complaints/<complaintID>/<sanitized name>, forcing the
// extension to match the declared content type.
func ObjectKey(complaintID, name, contentType string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	base = strings.Trim(unsafeName.ReplaceAllString(base, "-"), "-.")
	if base == "" {
		base = "attachment"
	}
	return fmt.Sprintf("complaints/%s/%s%s", complaintID, base, allowedTypes[NormalizeType(contentType)])
}

// NormalizeType lowercases a MIME type, drops parameters and maps image/jpg to image/jpeg.
func NormalizeType(contentType string) string {
	value := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(value, ";"); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	if value == "image/jpg" {
		return "image/jpeg"
	}
	return value
}

type Store struct {
	client     *minio.Client
	bucket     string
	presignTTL time.Duration
}

func NewStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Store, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Store{client: client, bucket: bucket, presignTTL: 15 * time.Minute}, nil
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put validates and uploads the file, returning its object key.
func (s *Store) Put(ctx context.Context, complaintID string, upload Upload) (string, error) {
	if err := upload.Validate(); err != nil {
		return "", err
	}
	key := ObjectKey(complaintID, upload.Name, upload.ContentType)
	_, err := s.client.PutObject(ctx, s.bucket, key, io.LimitReader(upload.Body, MaxSize), upload.Size, minio.PutObjectOptions{
		ContentType: NormalizeType(upload.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func (s *Store) URL(ctx context.Context, key string) (*url.URL, error) {
	signed, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.presignTTL, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", key, err)
	}
	return signed, nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
