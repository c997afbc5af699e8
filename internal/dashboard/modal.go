package dashboard

import (
	"sync"

	"github.com/bobmcallan/alpha-matrix/internal/models"
)

// Fixed report texts.
const (
	TextAnalyzing   = "Analyzing... the AI strategist is preparing a report."
	TextNoReport    = "Could not retrieve the analysis result."
	TextUnreachable = "Failed to connect to the AI server."
)

// ModalState is the lifecycle of the report modal.
type ModalState string

const (
	ModalClosed  ModalState = "closed"
	ModalLoading ModalState = "loading"
	ModalLoaded  ModalState = "loaded"
	ModalFailed  ModalState = "failed"
)

// ModalView is a snapshot of the modal for rendering.
type ModalView struct {
	State      ModalState         `json:"state"`
	Generation uint64             `json:"generation"`
	Instrument *models.Instrument `json:"instrument,omitempty"`
	Text       string             `json:"text"`
}

// Modal holds the AI report display for one session.
//
// Every Open and Close bumps the generation. A result is applied only when it
// carries the current generation, so a slow report for an earlier selection
// can never overwrite the one the user is looking at.
type Modal struct {
	mu         sync.Mutex
	generation uint64
	state      ModalState
	instrument *models.Instrument
	text       string
}

// NewModal creates a closed modal.
func NewModal() *Modal {
	return &Modal{state: ModalClosed}
}

// Open records the selected instrument, shows the analyzing placeholder and
// returns the generation a later Resolve or Fail must present.
func (m *Modal) Open(inst models.Instrument) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.state = ModalLoading
	m.instrument = &inst
	m.text = TextAnalyzing
	return m.generation
}

// Resolve applies a report for generation gen. An empty report shows the
// fixed fallback. Returns false when the result is stale and was dropped.
func (m *Modal) Resolve(gen uint64, report string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(gen) {
		return false
	}
	if report == "" {
		report = TextNoReport
	}
	m.state = ModalLoaded
	m.text = report
	return true
}

// Fail shows the connection error for generation gen. Returns false when
// the failure is stale and was dropped.
func (m *Modal) Fail(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.currentLocked(gen) {
		return false
	}
	m.state = ModalFailed
	m.text = TextUnreachable
	return true
}

// Close clears the selection and text. Any in-flight result becomes stale.
func (m *Modal) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.state = ModalClosed
	m.instrument = nil
	m.text = ""
}

// View returns a copy of the current modal state.
func (m *Modal) View() ModalView {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := ModalView{State: m.state, Generation: m.generation, Text: m.text}
	if m.instrument != nil {
		inst := *m.instrument
		v.Instrument = &inst
	}
	return v
}

func (m *Modal) currentLocked(gen uint64) bool {
	return gen == m.generation && m.state != ModalClosed
}
