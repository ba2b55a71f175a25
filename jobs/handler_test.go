package jobs

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/agrovista-erp/agrovista-erp/testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, h *Handler) *chi.Mux {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)
	return r
}

func TestEnqueueExpireSweep(t *testing.T) {
	t.Run("enqueues the sweep task", func(t *testing.T) {
		srv := miniredis.RunT(t)
		client, err := NewClient(asynq.RedisClientOpt{Addr: srv.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		router := newTestRouter(t, NewHandler(nil, client, testLogger()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/approvals/expire-sweep", nil))

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"queue":"`+QueueDefault+`"`)
		assert.Contains(t, rec.Body.String(), `"task_id"`)

		var found bool
		for _, key := range srv.Keys() {
			if strings.Contains(key, "asynq") {
				found = true
				break
			}
		}
		assert.True(t, found, "expected the task to land in redis")
	})

	t.Run("without a queue client the endpoint is unavailable", func(t *testing.T) {
		router := newTestRouter(t, NewHandler(nil, nil, testLogger()))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/jobs/approvals/expire-sweep", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestHealthWithoutInspector(t *testing.T) {
	router := newTestRouter(t, NewHandler(nil, nil, testLogger()))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue":"default"`)
}
