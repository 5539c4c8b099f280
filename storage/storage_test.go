package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is a hand-rolled in-memory fake implementing s3API (in-memory maps,
// typed SDK errors on miss) rather than a mocking framework.
type fakeS3 struct {
	objects      map[string][]byte
	bucketExists bool
	createCalls  int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), bucketExists: true}
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *params.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, &types.NotFound{}
	}
	size := int64(len(data))
	return &s3.HeadObjectOutput{ContentLength: &size}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !f.bucketExists {
		return nil, errors.New("NotFound: 404")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createCalls++
	f.bucketExists = true
	return &s3.CreateBucketOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var contents []types.Object
	for k := range f.objects {
		key := k
		contents = append(contents, types.Object{Key: &key})
	}
	return &s3.ListObjectsV2Output{Contents: contents}, nil
}

func newTestAdapter(t *testing.T, client *fakeS3, prefix string) *S3Adapter {
	t.Helper()
	a, err := NewS3Adapter(context.Background(), client, "test-bucket", prefix)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestNewS3AdapterBootstrapsMissingBucket(t *testing.T) {
	client := newFakeS3()
	client.bucketExists = false

	if _, err := NewS3Adapter(context.Background(), client, "b", ""); err != nil {
		t.Fatalf("NewS3Adapter: %v", err)
	}
	if client.createCalls != 1 {
		t.Fatalf("createCalls = %d, want 1", client.createCalls)
	}
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	client := newFakeS3()
	a := newTestAdapter(t, client, "")

	uri, err := a.Upload(context.Background(), "checkpoints/w/x.bin", []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if uri != "s3://test-bucket/checkpoints/w/x.bin" {
		t.Fatalf("uri = %s", uri)
	}

	data, err := a.Download(context.Background(), "checkpoints/w/x.bin")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Fatalf("data = %q", data)
	}
}

func TestFullKeyWithPrefix(t *testing.T) {
	client := newFakeS3()
	a := newTestAdapter(t, client, "prefix/")

	if got := a.fullKey("key"); got != "prefix/key" {
		t.Errorf("fullKey = %q, want prefix/key", got)
	}
}

func TestFullKeyWithoutPrefix(t *testing.T) {
	client := newFakeS3()
	a := newTestAdapter(t, client, "")

	if got := a.fullKey("key"); got != "key" {
		t.Errorf("fullKey = %q, want key", got)
	}
}

func TestDownloadNotFound(t *testing.T) {
	client := newFakeS3()
	a := newTestAdapter(t, client, "")

	_, err := a.Download(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestExists(t *testing.T) {
	client := newFakeS3()
	a := newTestAdapter(t, client, "")

	if ok, _ := a.Exists(context.Background(), "k"); ok {
		t.Errorf("expected false before upload")
	}
	if _, err := a.Upload(context.Background(), "k", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if ok, err := a.Exists(context.Background(), "k"); err != nil || !ok {
		t.Errorf("expected true after upload, got %v %v", ok, err)
	}
}

func TestDeleteThenHeadNotFound(t *testing.T) {
	client := newFakeS3()
	a := newTestAdapter(t, client, "")

	if _, err := a.Upload(context.Background(), "k", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete(context.Background(), "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Head(context.Background(), "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	client := newFakeS3()
	a := newTestAdapter(t, client, "")

	if _, err := a.Upload(context.Background(), "a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Upload(context.Background(), "b", []byte("2")); err != nil {
		t.Fatal(err)
	}

	keys, err := a.List(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(keys))
	}
}
