package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinyakov/SealKeeper/internal/digest"
	"github.com/atinyakov/SealKeeper/internal/metrics"
	"github.com/atinyakov/SealKeeper/internal/ratelimit"
	"github.com/atinyakov/SealKeeper/internal/repository"
	"github.com/atinyakov/SealKeeper/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	handler http.Handler
	svc     *service.RecordService
}

func newTestServer(t *testing.T, limiter *ratelimit.KeyedLimiter) *testServer {
	t.Helper()
	d, err := digest.New(digest.HMACSHA256)
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	repo := repository.NewFileBackupRepository(filepath.Join(t.TempDir(), "database.json"))
	svc := service.NewRecordService(repo, d, zap.NewNop(), m)
	h := NewRouter(&RecordHandler{RecordService: svc}, zap.NewNop(), RouterOptions{
		Limiter: limiter,
		Metrics: m.Handler(),
	})
	return &testServer{handler: h, svc: svc}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Lifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/", `{"data":"hello","secret":"k"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":"hello"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":"hello"}`, rec.Body.String())

	rec = s.do(http.MethodPost, "/verify", `{"secret":"k"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/verify", `{"secret":"nope"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Simulated restart: memory is lost, the backup remains.
	s.svc.Store().Forget()

	rec = s.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/recover", `{"secret":"k"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var body RecoverResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, RecoverResponse{Data: "hello", Outcome: "recovered"}, body)

	s.svc.Store().Forget()
	rec = s.do(http.MethodPost, "/recover", `{"secret":"wrong"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = s.do(http.MethodPost, "/recover", `{"secret":"k"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_RejectsNonJSON(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"data":"x","secret":"k"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_RateLimitsSecretGuesses(t *testing.T) {
	s := newTestServer(t, ratelimit.New(0.001, 2, time.Minute))

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/verify", `{"secret":"a"}`).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/recover", `{"secret":"b"}`).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(http.MethodPost, "/verify", `{"secret":"c"}`).Code)

	// Writes are not throttled.
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/", `{"data":"x","secret":"k"}`).Code)
}

func TestRouter_RateLimitIgnoresForwardingHeaders(t *testing.T) {
	s := newTestServer(t, ratelimit.New(1, 2, time.Minute))

	throttled := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewBufferString(`{"secret":"guess"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Real-IP", fmt.Sprintf("10.0.0.%d", i))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.1.0.%d", i))
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			throttled++
		}
	}
	assert.GreaterOrEqual(t, throttled, 17, "rotating forwarding headers must not refill the bucket")
}

func TestRouter_Metrics(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/", `{"data":"x","secret":"k"}`).Code)

	rec := s.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sealkeeper_writes_total{status="ok"} 1`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/verify", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}
