package common

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// StubBackend is a scriptable quant backend serving analyze/latest,
// portfolio and ai-strategy under /api.
type StubBackend struct {
	srv *httptest.Server

	mu        sync.Mutex
	latest    string
	portfolio string
	reports   map[string]string
	delays    map[string]time.Duration
	down      bool
}

// NewStubBackend starts a backend with the given analyze/latest body.
func NewStubBackend(latest string) *StubBackend {
	b := &StubBackend{
		latest:  latest,
		reports: map[string]string{},
		delays:  map[string]time.Duration{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze/latest", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		body, down := b.latest, b.down
		b.mu.Unlock()
		if down {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
	mux.HandleFunc("/api/portfolio", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		body := b.portfolio
		b.mu.Unlock()
		if body == "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
	mux.HandleFunc("/api/ai-strategy", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StockInfo struct {
				Name string `json:"name"`
			} `json:"stock_info"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		report, ok := b.reports[req.StockInfo.Name]
		delay := b.delays[req.StockInfo.Name]
		b.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.Write([]byte(`{}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"report": report})
	})

	b.srv = httptest.NewServer(mux)
	return b
}

// APIURL is the base the portal should use as api.url.
func (b *StubBackend) APIURL() string {
	return b.srv.URL + "/api"
}

// Port is the port the stub listens on.
func (b *StubBackend) Port() int {
	return b.srv.Listener.Addr().(*net.TCPAddr).Port
}

// SetReport scripts the report for an instrument name, answered after delay.
func (b *StubBackend) SetReport(name, report string, delay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports[name] = report
	b.delays[name] = delay
}

func (b *StubBackend) SetPortfolio(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.portfolio = body
}

func (b *StubBackend) SetLatest(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = body
}

// SetDown makes analyze/latest answer 502.
func (b *StubBackend) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
}

func (b *StubBackend) Close() {
	b.srv.Close()
}
