package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                 "/",
		"/metrics":                         "/metrics",
		"/api/jobs":                        "/api/jobs",
		"/api/jobs/01HZ":                   "/api/jobs/:id",
		"/api/jobs/01HZ/submit":            "/api/jobs/:id/submit",
		"/api/jobs/01HZ/milestones?x=1":    "/api/jobs/:id/milestones",
		"/api/admin/jobs/pending":          "/api/admin/jobs/pending",
		"/api/admin/kyc/01HZ/verify":       "/api/admin/kyc/:id/verify",
		"/api/admin/disputes/01HZ":         "/api/admin/disputes/:id",
		"/api/admin/disputes/01HZ/resolve": "/api/admin/disputes/:id/resolve",
		"/api/admin/disputes?status=open":  "/api/admin/disputes",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestRouteLabelUsesChiPattern(t *testing.T) {
	var label string
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			label = routeLabel(req)
		})
	})
	r.Use(Instrument)
	r.Post("/api/jobs/{id}/submit", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/abc/submit", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if label != "/api/jobs/:id/submit" {
		t.Fatalf("unexpected label %q", label)
	}
}

func TestEventWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })

	Info("job_transition", map[string]any{"job_id": "j1"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "job_transition" || entry["level"] != "info" || entry["job_id"] != "j1" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatal("expected ts field")
	}
}
