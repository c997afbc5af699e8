package dashboard

import (
	"sync"

	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/metrics"
)

// Registry maps session IDs to their boards. Boards are created lazily on
// first access and dropped on logout.
type Registry struct {
	source  Source
	logger  *common.Logger
	metrics *metrics.Registry

	mu     sync.Mutex
	boards map[string]*Board
}

// NewRegistry creates an empty registry whose boards read from source.
func NewRegistry(source Source, logger *common.Logger, reg *metrics.Registry) *Registry {
	return &Registry{
		source:  source,
		logger:  logger,
		metrics: reg,
		boards:  make(map[string]*Board),
	}
}

// Board returns the board for sessionID, creating it if needed.
func (r *Registry) Board(sessionID string) *Board {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boards[sessionID]
	if !ok {
		b = NewBoard(r.source, r.logger, r.metrics)
		r.boards[sessionID] = b
	}
	return b
}

// Drop forgets the board for sessionID.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.boards, sessionID)
}

// Len returns the number of live boards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

// Sessions returns the IDs that currently hold a board.
func (r *Registry) Sessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.boards))
	for id := range r.boards {
		ids = append(ids, id)
	}
	return ids
}
