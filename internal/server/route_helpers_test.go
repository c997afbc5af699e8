package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRouteByMethod_MatchingMethod(t *testing.T) {
	called := ""
	routes := MethodRouter{
		"GET":    func(w http.ResponseWriter, r *http.Request) { called = "GET" },
		"DELETE": func(w http.ResponseWriter, r *http.Request) { called = "DELETE" },
	}

	RouteByMethod(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/api/report", nil), routes)

	if called != "DELETE" {
		t.Errorf("expected DELETE handler, got %q", called)
	}
}

func TestRouteByMethod_NoMatchingMethod(t *testing.T) {
	routes := MethodRouter{
		"GET":  func(w http.ResponseWriter, r *http.Request) { t.Error("GET handler should not be called") },
		"POST": func(w http.ResponseWriter, r *http.Request) { t.Error("POST handler should not be called") },
	}

	w := httptest.NewRecorder()
	RouteByMethod(w, httptest.NewRequest("PUT", "/api/report", nil), routes)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
	if got := w.Header().Get("Allow"); got != "GET, POST" {
		t.Errorf("expected Allow: GET, POST, got %q", got)
	}
	if !strings.Contains(w.Body.String(), `"status":"error"`) {
		t.Errorf("expected JSON error body, got %s", w.Body.String())
	}
}
