package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const defaultSignedURLExpiry = 15 * time.Minute

var (
	errNoClient       = errors.New("storage: client is required")
	errNoSigner       = errors.New("storage: signer is required")
	errInvalidBucket  = errors.New("storage: bucket name is required")
	errInvalidObject  = errors.New("storage: object name is required")
	errEmptyPayload   = errors.New("storage: payload is required")
	errExpiryTooLong  = errors.New("storage: expiry exceeds permitted maximum")
	errInvalidContent = errors.New("storage: content type is required")
)

// ObjectWriter abstracts the subset of the GCS client used for report uploads.
type ObjectWriter interface {
	Write(ctx context.Context, bucket, object string, attrs ObjectAttrs, payload io.Reader) (int64, error)
}

// ObjectAttrs carries metadata applied to a written object.
type ObjectAttrs struct {
	ContentType  string
	CacheControl string
	Metadata     map[string]string
}

// GCSObjectWriter adapts *storage.Client to ObjectWriter.
type GCSObjectWriter struct {
	client *storage.Client
}

// NewGCSObjectWriter wraps an initialised GCS client.
func NewGCSObjectWriter(client *storage.Client) (*GCSObjectWriter, error) {
	if client == nil {
		return nil, errNoClient
	}
	return &GCSObjectWriter{client: client}, nil
}

// Write streams the payload into the target object, returning bytes written.
func (w *GCSObjectWriter) Write(ctx context.Context, bucket, object string, attrs ObjectAttrs, payload io.Reader) (int64, error) {
	if w == nil || w.client == nil {
		return 0, errNoClient
	}
	writer := w.client.Bucket(bucket).Object(object).NewWriter(ctx)
	writer.ContentType = attrs.ContentType
	writer.CacheControl = attrs.CacheControl
	if len(attrs.Metadata) > 0 {
		writer.Metadata = attrs.Metadata
	}
	written, err := io.Copy(writer, payload)
	if err != nil {
		_ = writer.Close()
		return 0, fmt.Errorf("storage: write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("storage: finalize object: %w", err)
	}
	return written, nil
}

// Uploader writes generated artifacts (report CSVs) into a bucket and issues
// short-lived signed download URLs for them.
type Uploader struct {
	writer ObjectWriter
	signer Signer
	scheme storage.SigningScheme
	now    func() time.Time
}

// UploaderOption customises Uploader behaviour.
type UploaderOption func(*Uploader)

// WithSigner enables signed download URL generation.
func WithSigner(signer Signer) UploaderOption {
	return func(u *Uploader) {
		u.signer = signer
	}
}

// WithSigningScheme overrides the signing scheme (defaults to V4).
func WithSigningScheme(scheme storage.SigningScheme) UploaderOption {
	return func(u *Uploader) {
		if scheme != 0 {
			u.scheme = scheme
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) UploaderOption {
	return func(u *Uploader) {
		if clock != nil {
			u.now = clock
		}
	}
}

// NewUploader constructs an Uploader over the given object writer.
func NewUploader(writer ObjectWriter, opts ...UploaderOption) (*Uploader, error) {
	if writer == nil {
		return nil, errNoClient
	}
	uploader := &Uploader{
		writer: writer,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(uploader)
		}
	}
	return uploader, nil
}

// UploadInput describes one object write.
type UploadInput struct {
	Bucket      string
	Object      string
	ContentType string
	Metadata    map[string]string
	Payload     io.Reader
}

// ObjectInfo reports the outcome of an upload.
type ObjectInfo struct {
	Bucket    string
	Object    string
	Size      int64
	WrittenAt time.Time
}

// Upload validates the input and writes the object.
func (u *Uploader) Upload(ctx context.Context, input UploadInput) (ObjectInfo, error) {
	if u == nil || u.writer == nil {
		return ObjectInfo{}, errNoClient
	}
	bucket := strings.TrimSpace(input.Bucket)
	if bucket == "" {
		return ObjectInfo{}, errInvalidBucket
	}
	object := strings.TrimSpace(input.Object)
	if object == "" {
		return ObjectInfo{}, errInvalidObject
	}
	if strings.TrimSpace(input.ContentType) == "" {
		return ObjectInfo{}, errInvalidContent
	}
	if input.Payload == nil {
		return ObjectInfo{}, errEmptyPayload
	}

	size, err := u.writer.Write(ctx, bucket, object, ObjectAttrs{
		ContentType:  input.ContentType,
		CacheControl: "private, max-age=0",
		Metadata:     input.Metadata,
	}, input.Payload)
	if err != nil {
		return ObjectInfo{}, err
	}

	return ObjectInfo{
		Bucket:    bucket,
		Object:    object,
		Size:      size,
		WrittenAt: u.now().UTC(),
	}, nil
}

// SignedDownloadURL issues a signed GET URL for a previously written object.
// Expiry is clamped to the 15 minute maximum.
func (u *Uploader) SignedDownloadURL(ctx context.Context, bucket, object string, expiresIn time.Duration, query map[string]string) (string, time.Time, error) {
	if u == nil {
		return "", time.Time{}, errNoClient
	}
	if u.signer == nil || strings.TrimSpace(u.signer.Email()) == "" {
		return "", time.Time{}, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return "", time.Time{}, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return "", time.Time{}, errInvalidObject
	}
	if expiresIn <= 0 {
		expiresIn = 5 * time.Minute
	}
	if expiresIn > defaultSignedURLExpiry {
		return "", time.Time{}, errExpiryTooLong
	}

	expiresAt := u.now().Add(expiresIn)
	opts := &storage.SignedURLOptions{
		GoogleAccessID: u.signer.Email(),
		Scheme:         u.scheme,
		Method:         "GET",
		Expires:        expiresAt,
		SignBytes: func(payload []byte) ([]byte, error) {
			return u.signer.SignBytes(ctx, payload)
		},
	}
	if len(query) > 0 {
		opts.QueryParameters = mapToURLValues(query)
	}

	signedURL, err := storage.SignedURL(bucket, object, opts)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("storage: sign download url: %w", err)
	}
	return signedURL, expiresAt, nil
}

func mapToURLValues(values map[string]string) url.Values {
	out := make(url.Values, len(values))
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out.Add(key, values[key])
	}
	return out
}
