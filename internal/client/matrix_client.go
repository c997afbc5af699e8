package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/cache"
	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/metrics"
	"github.com/bobmcallan/alpha-matrix/internal/models"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Upstream endpoint paths, relative to the configured API base.
const (
	EndpointLatest    = "analyze/latest"
	EndpointPortfolio = "portfolio"
	EndpointStrategy  = "ai-strategy"
)

// Generated reports can be long; score lists are not.
const maxResponseSize = 10 << 20

// ErrUnavailable is returned without contacting the backend while the
// endpoint's circuit breaker is open. Only seen when MaxFailures > 0.
var ErrUnavailable = errors.New("quant backend temporarily unavailable")

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Endpoint string
	Code     int
	Body     string

	payload []byte // full body, Body is truncated for logs
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.Code, e.Body)
}

// Options configures a MatrixClient. Zero values pick defaults.
type Options struct {
	Timeout          time.Duration
	MaxFailures      int // 0 disables the circuit breakers
	OpenTimeout      time.Duration
	ReportsPerMinute int // 0 disables throttling
	ReportCache      *cache.ReportCache
	Metrics          *metrics.Registry
	Logger           *common.Logger
	HTTPClient       *http.Client
}

// MatrixClient communicates with the quant scoring backend.
// It is the only component that knows the upstream paths and body shapes.
type MatrixClient struct {
	baseURL    string
	httpClient *http.Client
	breakers   map[string]*gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	reports    *cache.ReportCache
	metrics    *metrics.Registry
	logger     *common.Logger
}

// NewMatrixClient creates a new client targeting the given API base,
// for example "https://scores.example.com/api".
func NewMatrixClient(baseURL string, opts Options) *MatrixClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = common.NewSilentLogger()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	c := &MatrixClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		breakers:   make(map[string]*gobreaker.CircuitBreaker, 3),
		reports:    opts.ReportCache,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}

	if opts.MaxFailures > 0 {
		for _, ep := range []string{EndpointLatest, EndpointPortfolio, EndpointStrategy} {
			c.breakers[ep] = newBreaker(ep, opts.MaxFailures, opts.OpenTimeout, c.logger)
		}
	}

	if opts.ReportsPerMinute > 0 {
		every := time.Minute / time.Duration(opts.ReportsPerMinute)
		c.limiter = rate.NewLimiter(rate.Every(every), opts.ReportsPerMinute)
	}

	return c
}

// newBreaker trips after maxFailures consecutive transport errors or 5xx
// responses. A 4xx is the backend answering and does not count.
func newBreaker(name string, maxFailures int, openTimeout time.Duration, logger *common.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.Code < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("endpoint", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Upstream circuit breaker changed state")
		},
	})
}

// BaseURL returns the API base the client targets.
func (c *MatrixClient) BaseURL() string {
	return c.baseURL
}

// LatestInstruments fetches the current scored list.
// GET {base}/analyze/latest -> { data: Instrument[] }
// present is false when the body has no "data" (or it is null); callers
// keep whatever list they already hold in that case.
func (c *MatrixClient) LatestInstruments(ctx context.Context) (list []models.Instrument, present bool, err error) {
	body, err := c.do(ctx, EndpointLatest, http.MethodGet, nil)
	if err != nil {
		return nil, false, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to parse response: %w", err)
	}

	data, ok := envelope["data"]
	if !ok || string(bytes.TrimSpace(data)) == "null" {
		return nil, false, nil
	}

	list, err = models.DecodeInstruments(data)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse response: %w", err)
	}
	return list, true, nil
}

// Portfolio fetches the optional holdings snapshot.
// GET {base}/portfolio -> { holdings: [...] }
func (c *MatrixClient) Portfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	body, err := c.do(ctx, EndpointPortfolio, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	snap, err := models.DecodePortfolio(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return snap, nil
}

// StrategyReport asks the backend to generate a report for one instrument.
// POST {base}/ai-strategy { stock_info: Instrument } -> { report: string }
// The returned text is "" when the backend sent no report, whatever the
// status. Only transport failures and non-JSON bodies are errors. Reports
// from non-2xx responses are never cached.
func (c *MatrixClient) StrategyReport(ctx context.Context, inst models.Instrument) (string, error) {
	key := cache.MakeKey(inst)
	if c.reports != nil {
		if report, ok := c.reports.Get(key); ok {
			c.metrics.IncReportCacheHit()
			return report, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("report throttle: %w", err)
		}
	}

	payload, err := json.Marshal(models.StrategyReportRequest{StockInfo: inst})
	if err != nil {
		return "", err
	}

	body, err := c.do(ctx, EndpointStrategy, http.MethodPost, payload)
	var se *StatusError
	if errors.As(err, &se) {
		// The backend answered. A JSON body without a report gets the
		// fallback text rather than the unreachable one.
		if report, derr := models.DecodeReport(se.payload); derr == nil {
			return report, nil
		}
		return "", err
	}
	if err != nil {
		return "", err
	}

	report, err := models.DecodeReport(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if c.reports != nil && report != "" {
		c.reports.Set(key, report)
	}
	return report, nil
}

// Ping checks that the backend answers the latest-scores endpoint.
func (c *MatrixClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, EndpointLatest, http.MethodGet, nil)
	return err
}

// do runs one request through the endpoint's breaker, when one is
// configured, and records metrics.
func (c *MatrixClient) do(ctx context.Context, endpoint, method string, payload []byte) ([]byte, error) {
	start := time.Now()

	var out interface{}
	var err error
	if cb := c.breakers[endpoint]; cb != nil {
		out, err = cb.Execute(func() (interface{}, error) {
			return c.roundTrip(ctx, endpoint, method, payload)
		})
	} else {
		out, err = c.roundTrip(ctx, endpoint, method, payload)
	}

	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "rejected"
		err = fmt.Errorf("%s: %w", endpoint, ErrUnavailable)
	case err != nil:
		outcome = "error"
	}
	c.metrics.ObserveUpstream(endpoint, outcome, time.Since(start))

	if err != nil {
		c.logger.Debug().
			Str("endpoint", endpoint).
			Str("outcome", outcome).
			Str("error", err.Error()).
			Msg("Upstream call failed")
		return nil, err
	}
	return out.([]byte), nil
}

func (c *MatrixClient) roundTrip(ctx context.Context, endpoint, method string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach quant backend: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: snippet, payload: body}
	}

	return body, nil
}
