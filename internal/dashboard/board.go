// Package dashboard holds the per-session view of the scored instrument list,
// the optional portfolio and the AI report modal.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/metrics"
	"github.com/bobmcallan/alpha-matrix/internal/models"
	"golang.org/x/sync/errgroup"
)

// Source is the upstream the board reads from. *client.MatrixClient
// implements it.
type Source interface {
	LatestInstruments(ctx context.Context) ([]models.Instrument, bool, error)
	Portfolio(ctx context.Context) (*models.PortfolioSnapshot, error)
	StrategyReport(ctx context.Context, inst models.Instrument) (string, error)
}

// ErrNoInstrument is returned when a report is requested for a row that is
// not in the current list.
var ErrNoInstrument = errors.New("no instrument at that position")

// ErrSelectionChanged is returned when the row at the requested position no
// longer holds the instrument the caller saw.
var ErrSelectionChanged = errors.New("instrument list changed; refresh and select again")

// Board is one session's dashboard state.
type Board struct {
	source  Source
	logger  *common.Logger
	metrics *metrics.Registry
	modal   *Modal

	mu          sync.RWMutex
	instruments []models.Instrument
	portfolio   *models.PortfolioSnapshot
	loaded      bool
	updatedAt   time.Time
}

// NewBoard creates an empty, not-yet-loaded board.
func NewBoard(source Source, logger *common.Logger, reg *metrics.Registry) *Board {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Board{
		source:      source,
		logger:      logger,
		metrics:     reg,
		modal:       NewModal(),
		instruments: []models.Instrument{},
	}
}

// LoadInstruments fetches the latest scores once.
//
// When the response carries data (even an empty array) the held list is
// replaced in response order. When data is absent the list is left alone.
// On failure the previous list stays in place and the error is returned for
// logging only. The board counts as loaded after the first call either way.
func (b *Board) LoadInstruments(ctx context.Context) error {
	list, present, err := b.source.LatestInstruments(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = true

	if err != nil {
		b.logger.Warn().Str("error", err.Error()).Msg("Failed to load instruments, keeping previous list")
		return fmt.Errorf("load instruments: %w", err)
	}
	if !present {
		b.logger.Debug().Msg("Latest scores carried no data, keeping previous list")
		return nil
	}

	b.instruments = list
	b.updatedAt = time.Now()
	b.logger.Debug().Int("count", len(list)).Msg("Instrument list replaced")
	return nil
}

// LoadPortfolio fetches the holdings snapshot once. Failures leave the
// previous snapshot in place and are only logged at debug level.
func (b *Board) LoadPortfolio(ctx context.Context) error {
	snap, err := b.source.Portfolio(ctx)
	if err != nil {
		b.logger.Debug().Str("error", err.Error()).Msg("Portfolio unavailable, ignoring")
		return fmt.Errorf("load portfolio: %w", err)
	}

	b.mu.Lock()
	b.portfolio = snap
	b.mu.Unlock()
	return nil
}

// Refresh runs both loads concurrently. They are independent: a failure in
// one never cancels or masks the other. The instrument error is returned.
func (b *Board) Refresh(ctx context.Context) error {
	var instErr error
	var g errgroup.Group
	g.Go(func() error {
		instErr = b.LoadInstruments(ctx)
		return nil
	})
	g.Go(func() error {
		b.LoadPortfolio(ctx)
		return nil
	})
	g.Wait()
	return instErr
}

// Loaded reports whether the first instrument load has settled.
func (b *Board) Loaded() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded
}

// UpdatedAt returns when the list was last replaced, or the zero time.
func (b *Board) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}

// Instruments returns a copy of the held list in display order.
func (b *Board) Instruments() []models.Instrument {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.Instrument, len(b.instruments))
	copy(out, b.instruments)
	return out
}

// Instrument returns the row at index i of the held list.
func (b *Board) Instrument(i int) (models.Instrument, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.instruments) {
		return models.Instrument{}, false
	}
	return b.instruments[i], true
}

// Portfolio returns the last applied snapshot, or nil.
func (b *Board) Portfolio() *models.PortfolioSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.portfolio
}

// Modal returns the session's report modal.
func (b *Board) Modal() *Modal {
	return b.modal
}

// ReportResult is the outcome of one report request.
type ReportResult struct {
	View ModalView `json:"view"`
	// Current is false when a newer selection or a close superseded this
	// request before it finished; View then shows that newer state.
	Current bool `json:"current"`
}

// RequestReport opens the modal for row index and asks the backend for a
// strategy report. When name is not empty it must match the instrument at
// index, otherwise nothing opens. The result is applied only if no newer
// selection or close happened meanwhile.
func (b *Board) RequestReport(ctx context.Context, index int, name string) (ReportResult, error) {
	inst, ok := b.Instrument(index)
	if !ok {
		return ReportResult{}, ErrNoInstrument
	}
	if name != "" && inst.Name != name {
		return ReportResult{}, ErrSelectionChanged
	}
	return b.requestReport(ctx, inst), nil
}

func (b *Board) requestReport(ctx context.Context, inst models.Instrument) ReportResult {
	gen := b.modal.Open(inst)

	report, err := b.source.StrategyReport(ctx, inst)

	var applied bool
	if err != nil {
		b.logger.Warn().Str("instrument", inst.Name).Str("error", err.Error()).Msg("Strategy report failed")
		applied = b.modal.Fail(gen)
	} else {
		applied = b.modal.Resolve(gen, report)
	}

	if !applied {
		b.metrics.IncStaleReport()
		b.logger.Debug().Str("instrument", inst.Name).Msg("Dropped stale strategy report")
	}
	return ReportResult{View: b.modal.View(), Current: applied}
}
