// Package storage implements the Object Storage Adapter: the abstract
// contract the Checkpoint Manager relies on for upload/download/delete/
// exists/list/head over an opaque blob namespace, and its S3-compatible
// implementation.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// Sentinel errors returned by Adapter implementations. ErrS3 covers anything
// that doesn't classify as NotFound.
var (
	ErrNotFound       = errors.New("storage: object not found")
	ErrUploadFailed   = errors.New("storage: upload failed")
	ErrDownloadFailed = errors.New("storage: download failed")
	ErrDeleteFailed   = errors.New("storage: delete failed")
	ErrS3             = errors.New("storage: s3 error")
)

// ObjectMetadata mirrors the result shape of a head operation.
type ObjectMetadata struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

// Adapter is the contract the Checkpoint Manager depends on. Implementations
// MUST use path-style addressing to remain compatible with S3-API object
// stores that don't support virtual-host-style buckets.
type Adapter interface {
	Upload(ctx context.Context, key string, data []byte) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Head(ctx context.Context, key string) (ObjectMetadata, error)
}

// s3API is the subset of *s3.Client the adapter calls, narrowed to an
// interface so tests can substitute a fake.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// RequestObserver receives per-operation latency/outcome callbacks; the
// metrics sink implements this so storage stays decoupled from any
// particular metrics backend.
type RequestObserver interface {
	ObserveS3Request(operation string, success bool, duration time.Duration)
	AddBytesUploaded(n int64)
}

type noopObserver struct{}

func (noopObserver) ObserveS3Request(string, bool, time.Duration) {}
func (noopObserver) AddBytesUploaded(int64)                       {}

// S3Adapter is the S3-compatible Storage Adapter implementation.
type S3Adapter struct {
	client     s3API
	bucket     string
	pathPrefix string
	logger     *zap.Logger
	observer   RequestObserver
}

var _ Adapter = (*S3Adapter)(nil)
var _ s3API = (*s3.Client)(nil)

// Option configures an S3Adapter at construction.
type Option func(*S3Adapter)

// WithLogger attaches a structured logger; defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *S3Adapter) { a.logger = logger }
}

// WithObserver attaches a metrics observer; defaults to a no-op.
func WithObserver(o RequestObserver) Option {
	return func(a *S3Adapter) { a.observer = o }
}

// NewS3Adapter constructs an S3Adapter and bootstraps the bucket: it heads
// the bucket and creates it if missing. A create failure is fatal.
func NewS3Adapter(ctx context.Context, client s3API, bucket, pathPrefix string, opts ...Option) (*S3Adapter, error) {
	a := &S3Adapter{
		client:     client,
		bucket:     bucket,
		pathPrefix: strings.TrimSuffix(pathPrefix, "/"),
		logger:     zap.NewNop(),
		observer:   noopObserver{},
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *S3Adapter) ensureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &a.bucket})
	if err == nil {
		a.logger.Debug("bucket exists", zap.String("bucket", a.bucket))
		return nil
	}

	a.logger.Warn("bucket not found, attempting to create",
		zap.String("bucket", a.bucket), zap.Error(err))

	if _, err := a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &a.bucket}); err != nil {
		return fmt.Errorf("storage: create bucket %s: %w", a.bucket, err)
	}
	a.logger.Info("bucket created", zap.String("bucket", a.bucket))
	return nil
}

// fullKey rewrites an external key to include the configured path prefix.
func (a *S3Adapter) fullKey(key string) string {
	if a.pathPrefix == "" {
		return key
	}
	return a.pathPrefix + "/" + key
}

// classify maps an S3 SDK error to a sentinel: responses containing
// NoSuchKey or 404 map to NotFound, everything else stays ErrS3.
func classify(err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return ErrNotFound
	}
	if strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrS3, err)
}

// Upload implements Adapter. Returns the URI s3://<bucket>/<full_key>.
func (a *S3Adapter) Upload(ctx context.Context, key string, data []byte) (string, error) {
	full := a.fullKey(key)
	start := time.Now()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &a.bucket,
		Key:    &full,
		Body:   bytes.NewReader(data),
	})

	a.observer.ObserveS3Request("upload", err == nil, time.Since(start))
	if err != nil {
		a.logger.Error("failed to upload object", zap.String("key", full), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	a.observer.AddBytesUploaded(int64(len(data)))
	a.logger.Info("object uploaded", zap.String("key", full), zap.Int("size", len(data)))
	return fmt.Sprintf("s3://%s/%s", a.bucket, full), nil
}

// Download implements Adapter.
func (a *S3Adapter) Download(ctx context.Context, key string) ([]byte, error) {
	full := a.fullKey(key)
	start := time.Now()

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &a.bucket, Key: &full})
	a.observer.ObserveS3Request("download", err == nil, time.Since(start))
	if err != nil {
		cls := classify(err)
		if !errors.Is(cls, ErrNotFound) {
			a.logger.Error("failed to download object", zap.String("key", full), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}
		return nil, cls
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	a.logger.Info("object downloaded", zap.String("key", full), zap.Int("size", len(data)))
	return data, nil
}

// Delete implements Adapter.
func (a *S3Adapter) Delete(ctx context.Context, key string) error {
	full := a.fullKey(key)
	start := time.Now()

	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &a.bucket, Key: &full})
	a.observer.ObserveS3Request("delete", err == nil, time.Since(start))
	if err != nil {
		a.logger.Error("failed to delete object", zap.String("key", full), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	a.logger.Info("object deleted", zap.String("key", full))
	return nil
}

// Exists implements Adapter.
func (a *S3Adapter) Exists(ctx context.Context, key string) (bool, error) {
	full := a.fullKey(key)
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &a.bucket, Key: &full})
	if err == nil {
		return true, nil
	}
	cls := classify(err)
	if errors.Is(cls, ErrNotFound) {
		return false, nil
	}
	return false, cls
}

// List implements Adapter, paging through every ListObjectsV2 continuation.
func (a *S3Adapter) List(ctx context.Context, prefix string) ([]string, error) {
	full := a.fullKey(prefix)

	var keys []string
	var token *string
	for {
		out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &a.bucket,
			Prefix:            &full,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, classify(err)
		}
		for _, obj := range out.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

// Head implements Adapter.
func (a *S3Adapter) Head(ctx context.Context, key string) (ObjectMetadata, error) {
	full := a.fullKey(key)
	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &a.bucket, Key: &full})
	if err != nil {
		return ObjectMetadata{}, classify(err)
	}

	meta := ObjectMetadata{Key: full}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	if out.LastModified != nil {
		meta.LastModified = *out.LastModified
	}
	return meta, nil
}
