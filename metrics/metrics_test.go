package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/objects/*name", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, key := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/objects/"+key, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("/objects/*name", http.MethodGet, "404"))
	if got != 2 {
		t.Fatalf("requests_total = %v, want 2", got)
	}
}

func TestStorageObserve(t *testing.T) {
	m := New()
	m.Storage.Observe("put", 128, nil, time.Millisecond)
	m.Storage.Observe("put", 0, errors.New("boom"), time.Millisecond)

	if v := testutil.ToFloat64(m.Storage.ops.WithLabelValues("put", "ok")); v != 1 {
		t.Errorf("ok ops = %v", v)
	}
	if v := testutil.ToFloat64(m.Storage.ops.WithLabelValues("put", "error")); v != 1 {
		t.Errorf("error ops = %v", v)
	}
	if v := testutil.ToFloat64(m.Storage.bytes.WithLabelValues("put")); v != 128 {
		t.Errorf("bytes = %v", v)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Storage.Observe("get", 1, nil, time.Millisecond)

	if n, err := testutil.GatherAndCount(m.Registry(), "objgate_storage_ops_total"); err != nil || n != 1 {
		t.Fatalf("gathered %d storage op series: %v", n, err)
	}

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "objgate_storage_ops_total") {
		t.Fatalf("exposition missing storage ops:\n%s", w.Body.String())
	}
}
