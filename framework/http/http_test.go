package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	gohttp "github.com/km-arc/go-wiring/framework/http"
	"github.com/km-arc/go-wiring/framework/validation"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func newResponse(t *testing.T) (*gohttp.Response, *httptest.ResponseRecorder) {
	t.Helper()
	rr := httptest.NewRecorder()
	return gohttp.NewResponse(rr), rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("decodeJSON: %v", err)
	}
	return m
}

// ── Response ─────────────────────────────────────────────────────────────────

func TestResponse_JSON(t *testing.T) {
	res, rr := newResponse(t)
	res.JSON(http.StatusOK, map[string]any{"key": "val"})

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q want application/json", ct)
	}
	if m := decodeJSON(t, rr); m["key"] != "val" {
		t.Errorf("body key: got %v want val", m["key"])
	}
}

func TestResponse_Success(t *testing.T) {
	res, rr := newResponse(t)
	res.Success([]string{"db", "mailer"})

	m := decodeJSON(t, rr)
	data, ok := m["data"].([]any)
	if !ok || len(data) != 2 || data[0] != "db" {
		t.Fatalf("expected data envelope, got %v", m["data"])
	}
}

func TestResponse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		send    func(*gohttp.Response)
		status  int
		message string
	}{
		{"not found default", func(r *gohttp.Response) { r.NotFound() }, 404, "Not found."},
		{"not found custom", func(r *gohttp.Response) { r.NotFound("Service not found.") }, 404, "Service not found."},
		{"bad request", func(r *gohttp.Response) { r.BadRequest() }, 400, "Bad Request."},
		{"server error", func(r *gohttp.Response) { r.ServerError() }, 500, "Server Error."},
		{"error", func(r *gohttp.Response) { r.Error(http.StatusConflict, "cycle") }, 409, "cycle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, rr := newResponse(t)
			tt.send(res)
			if rr.Code != tt.status {
				t.Errorf("status: got %d want %d", rr.Code, tt.status)
			}
			if m := decodeJSON(t, rr); m["message"] != tt.message {
				t.Errorf("message: got %v want %q", m["message"], tt.message)
			}
		})
	}
}

func TestResponse_Problem(t *testing.T) {
	res, rr := newResponse(t)
	res.Problem(http.StatusConflict, "cyclic", gohttp.Envelope{"kind": "cyclic resolution"})

	m := decodeJSON(t, rr)
	if m["message"] != "cyclic" || m["kind"] != "cyclic resolution" {
		t.Errorf("unexpected body %v", m)
	}
}

func TestResponse_ValidationError(t *testing.T) {
	bag := &validation.Errors{}
	bag.Add("services.db.module", "The services.db.module field is required.")

	res, rr := newResponse(t)
	res.ValidationError(bag)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d want 422", rr.Code)
	}
	m := decodeJSON(t, rr)
	errs, ok := m["errors"].(map[string]any)
	if !ok {
		t.Fatalf("expected errors bag, got %v", m)
	}
	if _, ok := errs["services.db.module"]; !ok {
		t.Errorf("missing field in %v", errs)
	}
}

// ── Request ──────────────────────────────────────────────────────────────────

func TestRequest_Query(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/services?tag=listener&public&json=false&bad=maybe", nil)
	req := gohttp.NewRequest(r)

	if got := req.Query("tag"); got != "listener" {
		t.Errorf("Query(tag): got %q", got)
	}
	if got := req.Query("pattern", "*"); got != "*" {
		t.Errorf("Query fallback: got %q", got)
	}
	if !req.QueryBool("public", false) {
		t.Error("bare flag should be true")
	}
	if req.QueryBool("json", true) {
		t.Error("json=false should be false")
	}
	if !req.QueryBool("bad", true) || req.QueryBool("missing", false) {
		t.Error("unparsable or missing flags should use the fallback")
	}
}

func TestRequest_RouteParam(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/services/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = gohttp.NewRequest(r).RouteParam("id")
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/services/db", nil))

	if got != "db" {
		t.Errorf("RouteParam: got %q want db", got)
	}
}

func TestRequest_Body(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("services: {}"))
	body, err := gohttp.NewRequest(r).Body()
	if err != nil || string(body) != "services: {}" {
		t.Fatalf("Body: got %q, %v", body, err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if _, err := gohttp.NewRequest(r).Body(); !errors.Is(err, gohttp.ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", gohttp.MaxBodySize+1)))
	if _, err := gohttp.NewRequest(r).Body(); err == nil {
		t.Error("expected an error for oversized bodies")
	}
}

func TestRequest_Headers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "application/json")
	r.Header.Set("X-Request-Id", "abc")
	req := gohttp.NewRequest(r)

	if !req.IsJSON() {
		t.Error("expected IsJSON")
	}
	if req.Header("X-Request-Id") != "abc" {
		t.Errorf("Header: got %q", req.Header("X-Request-Id"))
	}
	if req.Raw() != r {
		t.Error("Raw should return the wrapped request")
	}
}
