package rpcserver

import (
	"context"
	"io"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/lloredia/pulsecheckpoint-runtime/checkpoint"
	"github.com/lloredia/pulsecheckpoint-runtime/dataset"
	"github.com/lloredia/pulsecheckpoint-runtime/pulsev1"
	"github.com/lloredia/pulsecheckpoint-runtime/storage"
	"github.com/lloredia/pulsecheckpoint-runtime/worker"
)

// memAdapter is a trivial in-memory storage.Adapter fake, reused from the
// checkpoint package's test style, scoped locally to keep this package's
// tests independent of checkpoint's internal test helpers.
type memAdapter struct{ objects map[string][]byte }

func newMemAdapter() *memAdapter { return &memAdapter{objects: make(map[string][]byte)} }

func (m *memAdapter) Upload(ctx context.Context, key string, data []byte) (string, error) {
	m.objects[key] = append([]byte(nil), data...)
	return "s3://bucket/" + key, nil
}
func (m *memAdapter) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}
func (m *memAdapter) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}
func (m *memAdapter) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}
func (m *memAdapter) List(ctx context.Context, prefix string) ([]string, error) { return nil, nil }
func (m *memAdapter) Head(ctx context.Context, key string) (storage.ObjectMetadata, error) {
	return storage.ObjectMetadata{}, nil
}

func newTestServer() *Server {
	workers := worker.New()
	adapter := newMemAdapter()
	checkpoints := checkpoint.New(adapter)
	datasets := dataset.New()
	return New(workers, checkpoints, datasets, adapter)
}

func TestRegisterWorkerRequiresID(t *testing.T) {
	s := newTestServer()
	_, err := s.RegisterWorker(context.Background(), &pulsev1.RegisterWorkerRequest{})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestRegisterWorkerThenDuplicateIsAlreadyExists(t *testing.T) {
	s := newTestServer()
	if _, err := s.RegisterWorker(context.Background(), &pulsev1.RegisterWorkerRequest{WorkerID: "w1"}); err != nil {
		t.Fatal(err)
	}
	_, err := s.RegisterWorker(context.Background(), &pulsev1.RegisterWorkerRequest{WorkerID: "w1"})
	if status.Code(err) != codes.AlreadyExists {
		t.Fatalf("code = %v, want AlreadyExists", status.Code(err))
	}
}

func TestSaveCheckpointRequiresRegisteredWorker(t *testing.T) {
	s := newTestServer()
	_, err := s.SaveCheckpoint(context.Background(), &pulsev1.SaveCheckpointRequest{WorkerID: "ghost", Data: []byte("x")})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("code = %v, want FailedPrecondition", status.Code(err))
	}
}

func TestSaveCheckpointRoundTrip(t *testing.T) {
	s := newTestServer()
	if _, err := s.RegisterWorker(context.Background(), &pulsev1.RegisterWorkerRequest{WorkerID: "w1"}); err != nil {
		t.Fatal(err)
	}

	resp, err := s.SaveCheckpoint(context.Background(), &pulsev1.SaveCheckpointRequest{WorkerID: "w1", Data: []byte("payload")})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Checkpoint == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	got, err := s.GetCheckpoint(context.Background(), &pulsev1.GetCheckpointRequest{CheckpointID: resp.Checkpoint.CheckpointID, IncludeData: true})
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Data) != "payload" {
		t.Fatalf("data = %q", got.Data)
	}
}

func TestSaveCheckpointIdempotentKeyReturnsFirstCheckpoint(t *testing.T) {
	s := newTestServer()
	if _, err := s.RegisterWorker(context.Background(), &pulsev1.RegisterWorkerRequest{WorkerID: "w1"}); err != nil {
		t.Fatal(err)
	}
	first, err := s.SaveCheckpoint(context.Background(), &pulsev1.SaveCheckpointRequest{WorkerID: "w1", Data: []byte("a"), IdempotencyKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := s.SaveCheckpoint(context.Background(), &pulsev1.SaveCheckpointRequest{WorkerID: "w1", Data: []byte("b"), IdempotencyKey: "k"})
	if err != nil {
		t.Fatalf("completed idempotency binding should return the first checkpoint, got err %v", err)
	}
	if resp.Checkpoint == nil {
		t.Fatal("expected checkpoint in response")
	}
	if resp.Checkpoint.CheckpointID != first.Checkpoint.CheckpointID {
		t.Fatalf("checkpoint_id = %s, want first checkpoint %s", resp.Checkpoint.CheckpointID, first.Checkpoint.CheckpointID)
	}
}

func TestDeleteCheckpointNotFound(t *testing.T) {
	s := newTestServer()
	_, err := s.DeleteCheckpoint(context.Background(), &pulsev1.DeleteCheckpointRequest{CheckpointID: "missing"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("code = %v, want NotFound", status.Code(err))
	}
}

func TestHealthCheckReportsComponents(t *testing.T) {
	s := newTestServer()
	resp, err := s.HealthCheck(context.Background(), &pulsev1.HealthCheckRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "SERVING" {
		t.Fatalf("status = %s", resp.Status)
	}
	for _, name := range []string{"worker_registry", "storage"} {
		if _, ok := resp.Components[name]; !ok {
			t.Fatalf("missing component %s", name)
		}
	}
}

// fakeStream is a hand-rolled PulseService_SaveCheckpointStreamServer fake
// that feeds a fixed message queue to Recv and captures the SendAndClose
// response, standing in for a real grpc.ServerStream in tests.
type fakeStream struct {
	ctx      context.Context
	messages []*pulsev1.SaveCheckpointStreamRequest
	pos      int
	resp     *pulsev1.SaveCheckpointResponse
}

func (f *fakeStream) Recv() (*pulsev1.SaveCheckpointStreamRequest, error) {
	if f.pos >= len(f.messages) {
		return nil, io.EOF
	}
	m := f.messages[f.pos]
	f.pos++
	return m, nil
}

func (f *fakeStream) SendAndClose(resp *pulsev1.SaveCheckpointResponse) error {
	f.resp = resp
	return nil
}

func (f *fakeStream) SetHeader(metadata.MD) error  { return nil }
func (f *fakeStream) SendHeader(metadata.MD) error { return nil }
func (f *fakeStream) SetTrailer(metadata.MD)       {}
func (f *fakeStream) Context() context.Context     { return f.ctx }
func (f *fakeStream) SendMsg(m interface{}) error  { return nil }
func (f *fakeStream) RecvMsg(m interface{}) error  { return nil }

func TestSaveCheckpointStreamReassemblesChunks(t *testing.T) {
	s := newTestServer()
	if _, err := s.RegisterWorker(context.Background(), &pulsev1.RegisterWorkerRequest{WorkerID: "w1"}); err != nil {
		t.Fatal(err)
	}

	stream := &fakeStream{
		ctx: context.Background(),
		messages: []*pulsev1.SaveCheckpointStreamRequest{
			{Header: &pulsev1.SaveCheckpointStreamHeader{WorkerID: "w1"}},
			{Chunk: []byte("hel")},
			{Chunk: []byte("lo")},
		},
	}

	err := s.saveCheckpointStream(stream)
	if err != nil {
		t.Fatal(err)
	}
	if stream.resp == nil || !stream.resp.Success {
		t.Fatalf("expected success response, got %+v", stream.resp)
	}
	if stream.resp.Checkpoint.SizeBytes != 5 {
		t.Fatalf("size = %d, want 5", stream.resp.Checkpoint.SizeBytes)
	}
}
