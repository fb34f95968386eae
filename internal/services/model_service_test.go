package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"localclaw/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSidecar struct {
	models    []string
	pullFails bool
	pulls     int32
}

func (f *fakeSidecar) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		var entries []map[string]string
		for _, m := range f.models {
			entries = append(entries, map[string]string{"name": m, "model": m})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"models": entries})
	})
	mux.HandleFunc("/api/pull", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.pulls, 1)
		w.Header().Set("Content-Type", "application/x-ndjson")
		if f.pullFails {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"pull model manifest: file does not exist"}`))
			return
		}
		_, _ = w.Write([]byte("{\"status\":\"pulling manifest\"}\n{\"status\":\"success\"}\n"))
	})
	return mux
}

func newModelServiceForTest(t *testing.T, url string) (ModelService, *metrics.Metrics, *observer.ObservedLogs) {
	client, err := NewOllamaClient(url)
	require.NoError(t, err)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	core, logs := observer.New(zapcore.WarnLevel)
	return NewModelService(client, 5*time.Second, m, zap.New(core)), m, logs
}

func TestEnsureModel_AlreadyPresent(t *testing.T) {
	sidecar := &fakeSidecar{models: []string{"qwen2.5:7b", "llama3:8b"}}
	srv := httptest.NewServer(sidecar.handler())
	defer srv.Close()

	svc, m, logs := newModelServiceForTest(t, srv.URL)
	svc.EnsureModel(context.Background(), "qwen2.5:7b")

	assert.Equal(t, int32(0), atomic.LoadInt32(&sidecar.pulls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelEnsure.WithLabelValues("present")))
	assert.Zero(t, logs.Len())
}

func TestEnsureModel_PullsWhenMissing(t *testing.T) {
	sidecar := &fakeSidecar{models: []string{"llama3:8b"}}
	srv := httptest.NewServer(sidecar.handler())
	defer srv.Close()

	svc, m, logs := newModelServiceForTest(t, srv.URL)
	svc.EnsureModel(context.Background(), "qwen2.5:7b")

	assert.Equal(t, int32(1), atomic.LoadInt32(&sidecar.pulls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelEnsure.WithLabelValues("pulled")))
	assert.Zero(t, logs.Len())
}

func TestEnsureModel_PullFailureIsSwallowed(t *testing.T) {
	sidecar := &fakeSidecar{pullFails: true}
	srv := httptest.NewServer(sidecar.handler())
	defer srv.Close()

	svc, m, logs := newModelServiceForTest(t, srv.URL)
	svc.EnsureModel(context.Background(), "qwen2.5:7b")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelEnsure.WithLabelValues("failed")))
	assert.Equal(t, 1, logs.FilterField(zap.String("model", "qwen2.5:7b")).Len())
}

func TestEnsureModel_SidecarUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc, m, logs := newModelServiceForTest(t, url)
	svc.EnsureModel(context.Background(), "qwen2.5:7b")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelEnsure.WithLabelValues("failed")))
	assert.Equal(t, 1, logs.Len())
}
