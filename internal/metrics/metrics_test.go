package metrics

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := New()
	ctx := t.Context()
	m.Observe(ctx, "users", "add", nil, time.Millisecond)
	m.Observe(ctx, "users", "add", errors.New("boom"), time.Millisecond)
	m.ValidationFailed("users")
	m.ListenerFailed("users")
	m.ImportSkipped("users", 3)
	m.ImportSkipped("users", 0)
	m.SetRecords("users", 5)

	if got := testutil.ToFloat64(m.operations.WithLabelValues("users", "add", "success")); got != 1 {
		t.Errorf("success = %v", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("users", "add", "error")); got != 1 {
		t.Errorf("error = %v", got)
	}
	if got := testutil.ToFloat64(m.skipped.WithLabelValues("users")); got != 3 {
		t.Errorf("skipped = %v", got)
	}
	if got := testutil.ToFloat64(m.records.WithLabelValues("users")); got != 5 {
		t.Errorf("records = %v", got)
	}

	var buf bytes.Buffer
	if err := m.WriteText(&buf); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"recdb_records{source=\"users\"} 5", "recdb_validation_failures_total", "recdb_listener_failures_total"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("WriteText() lacks %q:\n%s", want, buf.String())
		}
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "recdb_operations_total") {
		t.Errorf("Handler() = %d\n%s", rec.Code, rec.Body.String())
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Observe(t.Context(), "users", "add", nil, 0)
	m.ValidationFailed("users")
	m.ListenerFailed("users")
	m.ImportSkipped("users", 1)
	m.SetRecords("users", 1)
}
