package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/maruel/recdb/internal/metrics"
	"github.com/maruel/recdb/internal/schema"
	"github.com/maruel/recdb/internal/storage"
	"github.com/maruel/recdb/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg, err := schema.DefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	seeds, err := schema.DefaultSeeds(reg)
	if err != nil {
		t.Fatal(err)
	}
	m := metrics.New()
	st := store.New(reg, storage.NewMemory(reg.IDs()), store.Options{Seeds: seeds, Metrics: m})
	if err := st.Initialize(t.Context()); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(NewRouter(st, m))
	t.Cleanup(func() {
		srv.Close()
		_ = st.Close()
	})
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+path, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

func TestRouter(t *testing.T) {
	srv := newTestServer(t)

	t.Run("health", func(t *testing.T) {
		var resp struct{ Status string }
		if code := get(t, srv, "/api/health", &resp); code != http.StatusOK || resp.Status != "ok" {
			t.Errorf("health = %d %+v", code, resp)
		}
	})
	t.Run("sources", func(t *testing.T) {
		var resp struct {
			DefaultView string
			Sources     []struct {
				ID      string
				Records int
			}
		}
		if code := get(t, srv, "/api/sources", &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if resp.DefaultView != "users" || len(resp.Sources) != 3 || resp.Sources[2].ID != "users" || resp.Sources[2].Records != 5 {
			t.Errorf("sources = %+v", resp)
		}
	})
	t.Run("records", func(t *testing.T) {
		var resp struct {
			Records []map[string]any
		}
		q := url.Values{"q": {"o"}, "filter": {"department=Engineering"}}
		if code := get(t, srv, "/api/sources/users/records?"+q.Encode(), &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if len(resp.Records) != 2 {
			t.Errorf("records = %v", resp.Records)
		}
	})
	t.Run("record", func(t *testing.T) {
		var resp struct {
			Record map[string]any
		}
		if code := get(t, srv, "/api/sources/users/records/U002", &resp); code != http.StatusOK || resp.Record["userName"] != "Jane Smith" {
			t.Errorf("record = %d %v", code, resp.Record)
		}
	})
	t.Run("resolve", func(t *testing.T) {
		var resp struct{ Value any }
		if code := get(t, srv, "/api/sources/relations/fields/companyId/resolve?value=C001", &resp); code != http.StatusOK || resp.Value != "TechVision AI" {
			t.Errorf("resolve = %d %v", code, resp.Value)
		}
	})
	t.Run("options", func(t *testing.T) {
		var resp struct{ Values []any }
		if code := get(t, srv, "/api/sources/users/fields/department/options", &resp); code != http.StatusOK || len(resp.Values) != 3 {
			t.Errorf("options = %d %v", code, resp.Values)
		}
	})
	t.Run("schema", func(t *testing.T) {
		var resp map[string]any
		if code := get(t, srv, "/api/sources/acquisitions/schema", &resp); code != http.StatusOK || resp["type"] != "object" {
			t.Errorf("schema = %d %v", code, resp)
		}
	})
	t.Run("dashboard", func(t *testing.T) {
		var resp struct {
			Metrics []struct {
				ID    string
				Value float64
			}
		}
		if code := get(t, srv, "/api/dashboard", &resp); code != http.StatusOK || len(resp.Metrics) != 4 || resp.Metrics[0].Value != 5 {
			t.Errorf("dashboard = %d %+v", code, resp)
		}
	})
	t.Run("metrics", func(t *testing.T) {
		if code := get(t, srv, "/metrics", nil); code != http.StatusOK {
			t.Errorf("metrics = %d", code)
		}
	})
}

func TestErrors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		path string
		code int
		err  string
	}{
		{"/api/sources/ghosts/records", http.StatusNotFound, "STORE_NOT_FOUND"},
		{"/api/sources/users/records/U999", http.StatusNotFound, "NOT_FOUND"},
		{"/api/sources/users/records?filter=nofield", http.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			var resp struct {
				Error struct{ Code string }
			}
			if code := get(t, srv, tt.path, &resp); code != tt.code || resp.Error.Code != tt.err {
				t.Errorf("GET %s = %d %+v", tt.path, code, resp)
			}
		})
	}
}
