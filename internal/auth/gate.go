// Package auth implements the portal's password gate and session storage.
package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/metrics"
	"github.com/bobmcallan/alpha-matrix/internal/models"
	"github.com/google/uuid"
)

// DefaultCookieName is used when GateOptions.CookieName is empty.
const DefaultCookieName = "alpha_session"

// GateOptions configures a Gate.
type GateOptions struct {
	Password   string
	CookieName string
	TTL        time.Duration
	Secure     bool
	Store      SessionStore
	Logger     *common.Logger
	Metrics    *metrics.Registry
}

// Gate is the shared-password access gate.
//
// A successful Submit creates an authorized session record and sets a cookie
// without Max-Age, so the marker lives as long as the browser session. There
// is no lockout and no attempt counter. The password is a speed bump, not an
// identity check.
type Gate struct {
	password   string
	cookieName string
	ttl        time.Duration
	secure     bool
	store      SessionStore
	logger     *common.Logger
	metrics    *metrics.Registry
}

// NewGate creates a gate. A nil store gets a fresh MemoryStore.
func NewGate(opts GateOptions) *Gate {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = 12 * time.Hour
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = common.NewSilentLogger()
	}
	return &Gate{
		password:   opts.Password,
		cookieName: opts.CookieName,
		ttl:        opts.TTL,
		secure:     opts.Secure,
		store:      opts.Store,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
}

// CookieName returns the name of the session cookie.
func (g *Gate) CookieName() string {
	return g.cookieName
}

// Check compares a candidate against the configured password.
// Comparison is exact: no trimming, no case folding.
func (g *Gate) Check(candidate string) bool {
	if g.password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(g.password)) == 1
}

// Submit checks the candidate and, on a match, creates an authorized
// session and sets the cookie. On a mismatch nothing is stored or set.
func (g *Gate) Submit(w http.ResponseWriter, r *http.Request, candidate string) (bool, error) {
	if !g.Check(candidate) {
		g.metrics.ObserveLogin("rejected")
		g.logger.Info().Str("remote", r.RemoteAddr).Msg("Access gate rejected a password")
		return false, nil
	}

	now := time.Now()
	sess := &models.Session{
		ID:         uuid.New().String(),
		Authorized: true,
		CreatedAt:  now,
		ExpiresAt:  now.Add(g.ttl),
	}
	if err := g.store.Set(r.Context(), sess); err != nil {
		g.metrics.ObserveLogin("error")
		return false, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})

	g.metrics.ObserveLogin("ok")
	g.logger.Info().Str("session", shortID(sess.ID)).Msg("Access gate opened a session")
	return true, nil
}

// Restore reports whether the request carries a cookie for an authorized,
// unexpired session, and returns that session.
func (g *Gate) Restore(r *http.Request) (*models.Session, bool) {
	id := g.SessionID(r)
	if id == "" {
		return nil, false
	}
	return g.Lookup(r.Context(), id)
}

// Lookup resolves a session ID. Store errors count as not authorized.
func (g *Gate) Lookup(ctx context.Context, id string) (*models.Session, bool) {
	sess, ok, err := g.store.Get(ctx, id)
	if err != nil {
		g.logger.Warn().Str("error", err.Error()).Msg("Session lookup failed")
		return nil, false
	}
	if !ok || !sess.Authorized {
		return nil, false
	}
	return sess, true
}

// SessionID returns the raw session cookie value, or "".
func (g *Gate) SessionID(r *http.Request) string {
	c, err := r.Cookie(g.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// Logout deletes the session record and expires the cookie. It returns the
// cleared session ID ("" when there was none) so callers can drop state
// keyed on it.
func (g *Gate) Logout(w http.ResponseWriter, r *http.Request) string {
	id := g.SessionID(r)
	if id != "" {
		if err := g.store.Delete(r.Context(), id); err != nil {
			g.logger.Warn().Str("error", err.Error()).Msg("Failed to delete session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     g.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if id != "" {
		g.logger.Info().Str("session", shortID(id)).Msg("Session logged out")
	}
	return id
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
