package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/metrics"
	"github.com/bobmcallan/alpha-matrix/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestGate(store SessionStore) *Gate {
	return NewGate(GateOptions{Password: "open-sesame", Store: store})
}

// withCookies copies response cookies onto a fresh request.
func withCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestGate_SubmitMatch(t *testing.T) {
	store := NewMemoryStore()
	g := newTestGate(store)

	rec := httptest.NewRecorder()
	ok, err := g.Submit(rec, httptest.NewRequest("POST", "/login", nil), "open-sesame")
	if err != nil || !ok {
		t.Fatalf("expected match, ok=%v err=%v", ok, err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "alpha_session" || c.Value == "" {
		t.Errorf("unexpected cookie: %+v", c)
	}
	if c.MaxAge != 0 || !c.Expires.IsZero() {
		t.Error("session cookie must not carry Max-Age or Expires")
	}
	if !c.HttpOnly {
		t.Error("expected HttpOnly cookie")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 stored session, got %d", store.Len())
	}
}

func TestGate_SubmitMismatch(t *testing.T) {
	store := NewMemoryStore()
	reg := metrics.New()
	g := NewGate(GateOptions{Password: "open-sesame", Store: store, Metrics: reg})

	for _, candidate := range []string{"", "open-sesame ", "Open-Sesame", "open", "wrong"} {
		rec := httptest.NewRecorder()
		ok, err := g.Submit(rec, httptest.NewRequest("POST", "/login", nil), candidate)
		if ok || err != nil {
			t.Errorf("candidate %q: expected mismatch, ok=%v err=%v", candidate, ok, err)
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Errorf("candidate %q: no cookie should be set on mismatch", candidate)
		}
	}
	if store.Len() != 0 {
		t.Errorf("expected no stored sessions, got %d", store.Len())
	}
	if got := testutil.ToFloat64(reg.LoginAttempts.WithLabelValues("rejected")); got != 5 {
		t.Errorf("expected 5 rejected attempts, got %v", got)
	}

	// No lockout: the right password still works afterwards.
	ok, _ := g.Submit(httptest.NewRecorder(), httptest.NewRequest("POST", "/login", nil), "open-sesame")
	if !ok {
		t.Error("expected correct password to pass after failed attempts")
	}
}

func TestGate_EmptyPasswordNeverMatches(t *testing.T) {
	g := NewGate(GateOptions{})
	if g.Check("") {
		t.Error("an unconfigured gate must not open for an empty candidate")
	}
}

func TestGate_RestoreAfterSubmit(t *testing.T) {
	g := newTestGate(nil)

	rec := httptest.NewRecorder()
	g.Submit(rec, httptest.NewRequest("POST", "/login", nil), "open-sesame")

	sess, ok := g.Restore(withCookies(rec))
	if !ok {
		t.Fatal("expected session to restore")
	}
	if !sess.Authorized {
		t.Error("expected authorized session")
	}
}

func TestGate_RestoreWithoutCookie(t *testing.T) {
	g := newTestGate(nil)
	if _, ok := g.Restore(httptest.NewRequest("GET", "/", nil)); ok {
		t.Error("expected no session without a cookie")
	}
}

func TestGate_RestoreUnknownOrUnauthorized(t *testing.T) {
	store := NewMemoryStore()
	g := newTestGate(store)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "alpha_session", Value: "forged"})
	if _, ok := g.Restore(req); ok {
		t.Error("expected forged cookie to be rejected")
	}

	unauth := newSession("half", time.Hour)
	unauth.Authorized = false
	store.Set(context.Background(), unauth)
	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "alpha_session", Value: "half"})
	if _, ok := g.Restore(req); ok {
		t.Error("expected unauthorized record to be rejected")
	}
}

func TestGate_Logout(t *testing.T) {
	store := NewMemoryStore()
	g := newTestGate(store)

	rec := httptest.NewRecorder()
	g.Submit(rec, httptest.NewRequest("POST", "/login", nil), "open-sesame")
	req := withCookies(rec)

	out := httptest.NewRecorder()
	id := g.Logout(out, req)
	if id == "" {
		t.Error("expected cleared session id")
	}

	cookies := out.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected expiring cookie, got %+v", cookies)
	}
	if _, ok := g.Restore(req); ok {
		t.Error("expected old cookie to be rejected after logout")
	}
	if store.Len() != 0 {
		t.Errorf("expected store to be empty, got %d", store.Len())
	}
}

func TestGate_LogoutWithoutSession(t *testing.T) {
	g := newTestGate(nil)
	rec := httptest.NewRecorder()
	if id := g.Logout(rec, httptest.NewRequest("GET", "/logout", nil)); id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Error("expected cookie to be expired anyway")
	}
}

type failingStore struct{ MemoryStore }

func (*failingStore) Set(context.Context, *models.Session) error { return errors.New("store down") }
func (*failingStore) Get(context.Context, string) (*models.Session, bool, error) {
	return nil, false, errors.New("store down")
}

func TestGate_StoreErrors(t *testing.T) {
	g := newTestGate(&failingStore{})

	rec := httptest.NewRecorder()
	ok, err := g.Submit(rec, httptest.NewRequest("POST", "/login", nil), "open-sesame")
	if ok || err == nil {
		t.Errorf("expected store error to surface, ok=%v err=%v", ok, err)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("no cookie should be set when the session could not be stored")
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "alpha_session", Value: "any"})
	if _, ok := g.Restore(req); ok {
		t.Error("store errors must not authorize")
	}
}
