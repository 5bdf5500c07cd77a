package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/config"
)

type mockCloser struct {
	mock.Mock
}

func (m *mockCloser) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Reporter.Kind = config.ReporterMemory
	return cfg
}

func TestBuildEngine_MemoryBackends(t *testing.T) {
	t.Parallel()

	a := New(testConfig(t), zap.NewNop())
	engine, err := a.BuildEngine()
	require.NoError(t, err)
	require.NotNil(t, engine)
	require.Empty(t, a.closers)
}

func TestBuildEngine_HTTPReporter(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Reporter.Kind = config.ReporterHTTP
	a := New(cfg, zap.NewNop())
	_, err := a.BuildEngine()
	require.NoError(t, err)
}

func TestBuildEngine_KafkaReporterRegistersCloser(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Reporter.Kind = config.ReporterKafka
	cfg.Reporter.KafkaBrokers = []string{"localhost:9092"}
	cfg.Reporter.KafkaTopic = "pages"
	a := New(cfg, zap.NewNop())

	_, err := a.BuildEngine()
	require.NoError(t, err)
	require.Len(t, a.closers, 1)
	a.Close()
	require.Empty(t, a.closers)
}

func TestBuildEngine_InvalidCrawlerConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Crawler.MaxPages = 0
	a := New(cfg, zap.NewNop())
	_, err := a.BuildEngine()
	require.Error(t, err)
}

func TestBuildEngine_UnknownReporter(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Reporter.Kind = "carrier-pigeon"
	a := New(cfg, zap.NewNop())
	_, err := a.BuildEngine()
	require.ErrorContains(t, err, "unknown reporter kind")
}

func TestBuildIngestServer_Memory(t *testing.T) {
	t.Parallel()

	a := New(testConfig(t), zap.NewNop())
	srv, err := a.BuildIngestServer(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/pages", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildIngestServer_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Ingest.Store = config.BackendPostgres
	cfg.Ingest.DatabaseURL = ""
	a := New(cfg, zap.NewNop())
	_, err := a.BuildIngestServer(context.Background())
	require.Error(t, err)
}

func TestClose_RunsClosersInReverseOrder(t *testing.T) {
	t.Parallel()

	a := New(testConfig(t), zap.NewNop())
	var order []string
	first := &mockCloser{}
	first.On("Close", mock.Anything).Run(func(mock.Arguments) { order = append(order, "first") }).Return(nil)
	second := &mockCloser{}
	second.On("Close", mock.Anything).Run(func(mock.Arguments) { order = append(order, "second") }).Return(errors.New("boom"))

	a.onClose(first.Close)
	a.onClose(second.Close)
	a.Close()
	a.Close()

	require.True(t, a.Closed())
	require.Equal(t, []string{"second", "first"}, order)
	first.AssertExpectations(t)
	second.AssertExpectations(t)
}

func TestMetricsRouter(t *testing.T) {
	t.Parallel()

	router := MetricsRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "crawler_")
}

func TestStartMetricsServer_DisabledWithoutAddr(t *testing.T) {
	t.Parallel()

	a := New(testConfig(t), zap.NewNop())
	a.StartMetricsServer()
	require.Empty(t, a.closers)
}
