package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCheckpointSavedIncrementsCounterAndHistogram(t *testing.T) {
	m := New()
	m.RecordCheckpointSaved(50 * time.Millisecond)
	m.RecordCheckpointSaved(10 * time.Millisecond)

	if got := testutil.ToFloat64(m.checkpointsTotal); got != 2 {
		t.Errorf("checkpointsTotal = %v, want 2", got)
	}

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	var samples uint64
	for _, mf := range families {
		if mf.GetName() == "pulse_checkpoint_duration_seconds" {
			samples = mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	if samples != 2 {
		t.Errorf("checkpointDuration sample count = %d, want 2", samples)
	}
}

func TestObserveS3RequestLabelsByStatus(t *testing.T) {
	m := New()
	m.ObserveS3Request("upload", true, 5*time.Millisecond)
	m.ObserveS3Request("upload", false, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.s3RequestsTotal.WithLabelValues("upload", "success")); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.s3RequestsTotal.WithLabelValues("upload", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}

func TestAddBytesUploadedAccumulates(t *testing.T) {
	m := New()
	m.AddBytesUploaded(100)
	m.AddBytesUploaded(50)

	if got := testutil.ToFloat64(m.checkpointBytesTotal); got != 150 {
		t.Errorf("checkpointBytesTotal = %v, want 150", got)
	}
}

func TestRecordDatasetRegisteredIncrementsGauge(t *testing.T) {
	m := New()
	m.RecordDatasetRegistered()
	m.RecordDatasetRegistered()

	if got := testutil.ToFloat64(m.datasetsTotal); got != 2 {
		t.Errorf("datasetsTotal = %v, want 2", got)
	}
}

func TestRecordGRPCRequestLabelsByMethodAndCode(t *testing.T) {
	m := New()
	m.RecordGRPCRequest("SaveCheckpoint", "OK", time.Millisecond)

	if got := testutil.ToFloat64(m.grpcRequestsTotal.WithLabelValues("SaveCheckpoint", "OK")); got != 1 {
		t.Errorf("grpcRequestsTotal = %v, want 1", got)
	}
}

func TestSetActiveWorkers(t *testing.T) {
	m := New()
	m.SetActiveWorkers(3)
	if got := testutil.ToFloat64(m.activeWorkers); got != 3 {
		t.Errorf("activeWorkers = %v, want 3", got)
	}
}

func TestServerEndpoints(t *testing.T) {
	m := New()
	m.RecordCheckpointSaved(time.Millisecond)
	srv := NewServer("127.0.0.1:0", m)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.httpServer.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("health endpoint = %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ready", nil)
	srv.httpServer.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || rr.Body.String() != "Ready" {
		t.Fatalf("ready endpoint = %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.httpServer.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics endpoint = %d", rr.Code)
	}
}
