package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/cache"
	"github.com/bobmcallan/alpha-matrix/internal/metrics"
	"github.com/bobmcallan/alpha-matrix/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLatestInstruments_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analyze/latest" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"name":"KODEX 200","grade_score":"S","price_curr":35120},{"name":"TIGER 2X","grade_score":"B"}]}`))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL+"/api", Options{})
	list, present, err := c.LatestInstruments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !present {
		t.Fatal("expected data to be present")
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(list))
	}
	if list[0].Name != "KODEX 200" || list[1].Name != "TIGER 2X" {
		t.Errorf("order not preserved: %v, %v", list[0].Name, list[1].Name)
	}
	if list[0].PriceCurr != 35120 {
		t.Errorf("expected price 35120, got %v", list[0].PriceCurr)
	}
}

func TestLatestInstruments_EmptyArrayIsPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{})
	list, present, err := c.LatestInstruments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !present {
		t.Error("expected empty array to count as present")
	}
	if len(list) != 0 {
		t.Errorf("expected empty list, got %d", len(list))
	}
}

func TestLatestInstruments_MissingData(t *testing.T) {
	for _, body := range []string{`{}`, `{"data":null}`, `{"status":"warming"}`} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		c := NewMatrixClient(srv.URL, Options{})
		_, present, err := c.LatestInstruments(context.Background())
		srv.Close()

		if err != nil {
			t.Errorf("body %s: unexpected error: %v", body, err)
		}
		if present {
			t.Errorf("body %s: expected data to be absent", body)
		}
	}
}

func TestLatestInstruments_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"scoring failed"}`))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{})
	_, _, err := c.LatestInstruments(context.Background())
	if err == nil {
		t.Fatal("expected error for server error")
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T", err)
	}
	if se.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", se.Code)
	}
}

func TestLatestInstruments_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{})
	if _, _, err := c.LatestInstruments(context.Background()); err == nil {
		t.Error("expected parse error")
	}
}

func TestLatestInstruments_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewMatrixClient(url, Options{Timeout: time.Second})
	if _, _, err := c.LatestInstruments(context.Background()); err == nil {
		t.Error("expected error for unreachable backend")
	}
}

func TestPortfolio_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/portfolio" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{"holdings":[{"name":"KODEX 200","qty":10}]}`))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{})
	snap, err := c.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Holdings) != 1 {
		t.Errorf("expected 1 holding, got %d", len(snap.Holdings))
	}
}

func TestPortfolio_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{})
	if _, err := c.Portfolio(context.Background()); err == nil {
		t.Error("expected error for 404")
	}
}

func TestStrategyReport_SendsStockInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/ai-strategy" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %s", ct)
		}

		var body map[string]map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		info := body["stock_info"]
		if info["name"] != "KODEX 200" {
			t.Errorf("expected stock_info.name KODEX 200, got %v", info["name"])
		}
		if info["sector"] != "index" {
			t.Errorf("expected passthrough field to be forwarded, got %v", info["sector"])
		}

		w.Write([]byte(`{"report":"Buy on dips."}`))
	}))
	defer srv.Close()

	var inst models.Instrument
	if err := json.Unmarshal([]byte(`{"name":"KODEX 200","grade_score":"S","sector":"index"}`), &inst); err != nil {
		t.Fatal(err)
	}

	c := NewMatrixClient(srv.URL, Options{})
	report, err := c.StrategyReport(context.Background(), inst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report != "Buy on dips." {
		t.Errorf("unexpected report: %q", report)
	}
}

func TestStrategyReport_MissingReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{})
	report, err := c.StrategyReport(context.Background(), models.Instrument{Name: "X"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report != "" {
		t.Errorf("expected empty report, got %q", report)
	}
}

func TestStrategyReport_ErrorStatusWithJSONBodyFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"gemini quota"}`))
	}))
	defer srv.Close()

	reports := cache.New(time.Minute, 8)
	c := NewMatrixClient(srv.URL, Options{ReportCache: reports})
	report, err := c.StrategyReport(context.Background(), models.Instrument{Name: "X"})
	if err != nil {
		t.Fatalf("an answered request should not be a failure, got %v", err)
	}
	if report != "" {
		t.Errorf("expected empty report, got %q", report)
	}
	if reports.Len() != 0 {
		t.Error("error responses must not be cached")
	}
}

func TestStrategyReport_ErrorStatusWithReportKeepsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"report":"Partial analysis."}`))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{})
	report, err := c.StrategyReport(context.Background(), models.Instrument{Name: "X"})
	if err != nil || report != "Partial analysis." {
		t.Errorf("expected the report text, got %q, %v", report, err)
	}
}

func TestStrategyReport_ErrorStatusWithoutJSONFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{})
	_, err := c.StrategyReport(context.Background(), models.Instrument{Name: "X"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadGateway {
		t.Errorf("expected a status error, got %v", err)
	}
}

func TestStrategyReport_CachesSuccessOnly(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"report":"Hold."}`))
	}))
	defer srv.Close()

	reg := metrics.New()
	c := NewMatrixClient(srv.URL, Options{
		ReportCache: cache.New(time.Minute, 8),
		Metrics:     reg,
	})
	inst := models.Instrument{Name: "KODEX 200", GradeScore: "A"}

	for i := 0; i < 3; i++ {
		report, err := c.StrategyReport(context.Background(), inst)
		if err != nil || report != "Hold." {
			t.Fatalf("call %d: got %q, %v", i, report, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls.Load())
	}
	if got := testutil.ToFloat64(reg.ReportCacheHits); got != 2 {
		t.Errorf("expected 2 cache hits, got %v", got)
	}

	// A different instrument misses the cache and its failure is not stored.
	fail.Store(true)
	other := models.Instrument{Name: "TIGER 2X"}
	if _, err := c.StrategyReport(context.Background(), other); err == nil {
		t.Fatal("expected error from failing backend")
	}
	fail.Store(false)
	if report, err := c.StrategyReport(context.Background(), other); err != nil || report != "Hold." {
		t.Errorf("expected retry to reach backend, got %q, %v", report, err)
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reg := metrics.New()
	c := NewMatrixClient(srv.URL, Options{MaxFailures: 2, OpenTimeout: time.Minute, Metrics: reg})

	for i := 0; i < 2; i++ {
		if _, _, err := c.LatestInstruments(context.Background()); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, _, err := c.LatestInstruments(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once open, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected open breaker to skip the backend, got %d calls", calls.Load())
	}
	if got := testutil.ToFloat64(reg.UpstreamRequests.WithLabelValues(EndpointLatest, "rejected")); got != 1 {
		t.Errorf("expected 1 rejected call recorded, got %v", got)
	}

	// Breakers are per endpoint.
	if _, err := c.Portfolio(context.Background()); errors.Is(err, ErrUnavailable) {
		t.Error("portfolio breaker should still be closed")
	}
}

func TestBreaker_DisabledByDefault(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 5 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"report":"ok"}`))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{})
	for i := 0; i < 5; i++ {
		if _, err := c.StrategyReport(context.Background(), models.Instrument{Name: "X"}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	report, err := c.StrategyReport(context.Background(), models.Instrument{Name: "X"})
	if err != nil {
		t.Fatalf("retry should reach the recovered backend, got %v", err)
	}
	if report != "ok" {
		t.Errorf("expected ok, got %q", report)
	}
	if calls.Load() != 6 {
		t.Errorf("expected 6 upstream calls, got %d", calls.Load())
	}
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{MaxFailures: 1})
	for i := 0; i < 3; i++ {
		_, err := c.Portfolio(context.Background())
		if errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: 404 should not open the breaker", i)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 upstream calls, got %d", calls.Load())
	}
}

func TestStrategyReport_ThrottleHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"report":"ok"}`))
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, Options{ReportsPerMinute: 1})
	if _, err := c.StrategyReport(context.Background(), models.Instrument{Name: "A"}); err != nil {
		t.Fatalf("first call should pass the throttle: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.StrategyReport(ctx, models.Instrument{Name: "B"}); err == nil {
		t.Error("expected throttled call to give up with the context")
	}
}

func TestBaseURL_TrimsTrailingSlash(t *testing.T) {
	c := NewMatrixClient("http://example.com/api/", Options{})
	if c.BaseURL() != "http://example.com/api" {
		t.Errorf("unexpected base url: %s", c.BaseURL())
	}
}
