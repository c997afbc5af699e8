package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/metrics"
	"github.com/bobmcallan/alpha-matrix/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// stubSource is a scriptable Source.
type stubSource struct {
	mu        sync.Mutex
	list      []models.Instrument
	present   bool
	listErr   error
	portfolio *models.PortfolioSnapshot
	portErr   error

	// reports maps instrument name to its report; gates, when set, block
	// the report for that name until closed.
	reports   map[string]string
	reportErr error
	gates     map[string]chan struct{}
}

func (s *stubSource) LatestInstruments(context.Context) ([]models.Instrument, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list, s.present, s.listErr
}

func (s *stubSource) Portfolio(context.Context) (*models.PortfolioSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portfolio, s.portErr
}

func (s *stubSource) StrategyReport(_ context.Context, inst models.Instrument) (string, error) {
	s.mu.Lock()
	gate := s.gates[inst.Name]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reportErr != nil {
		return "", s.reportErr
	}
	return s.reports[inst.Name], nil
}

func names(list []models.Instrument) []string {
	out := make([]string, len(list))
	for i, inst := range list {
		out[i] = inst.Name
	}
	return out
}

func TestLoadInstruments_ReplacesInOrder(t *testing.T) {
	src := &stubSource{
		present: true,
		list:    []models.Instrument{{Name: "B"}, {Name: "A"}, {Name: "B"}},
	}
	b := NewBoard(src, nil, nil)

	if b.Loaded() {
		t.Error("board should not be loaded before the first call")
	}
	if err := b.LoadInstruments(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b.Loaded() {
		t.Error("expected loaded flag")
	}

	got := names(b.Instruments())
	want := []string{"B", "A", "B"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestLoadInstruments_MissingDataKeepsList(t *testing.T) {
	src := &stubSource{present: true, list: []models.Instrument{{Name: "KODEX"}}}
	b := NewBoard(src, nil, nil)
	b.LoadInstruments(context.Background())

	src.present = false
	src.list = nil
	if err := b.LoadInstruments(context.Background()); err != nil {
		t.Fatalf("missing data should not be an error: %v", err)
	}
	if got := names(b.Instruments()); len(got) != 1 || got[0] != "KODEX" {
		t.Errorf("expected list kept, got %v", got)
	}
}

func TestLoadInstruments_EmptyDataClearsList(t *testing.T) {
	src := &stubSource{present: true, list: []models.Instrument{{Name: "KODEX"}}}
	b := NewBoard(src, nil, nil)
	b.LoadInstruments(context.Background())

	src.list = []models.Instrument{}
	b.LoadInstruments(context.Background())
	if len(b.Instruments()) != 0 {
		t.Error("an empty data array should replace the list")
	}
}

func TestLoadInstruments_FailureKeepsListAndSetsLoaded(t *testing.T) {
	src := &stubSource{listErr: errors.New("connection refused")}
	b := NewBoard(src, nil, nil)

	if err := b.LoadInstruments(context.Background()); err == nil {
		t.Error("expected error to be returned for logging")
	}
	if !b.Loaded() {
		t.Error("loaded flag must be set even on failure")
	}
	if len(b.Instruments()) != 0 {
		t.Error("expected empty list")
	}

	src.listErr = nil
	src.present = true
	src.list = []models.Instrument{{Name: "A"}}
	b.LoadInstruments(context.Background())

	src.listErr = errors.New("502")
	b.LoadInstruments(context.Background())
	if got := names(b.Instruments()); len(got) != 1 || got[0] != "A" {
		t.Errorf("expected stale list kept, got %v", got)
	}
}

func TestLoadPortfolio_AppliedOnlyOnSuccess(t *testing.T) {
	snap := &models.PortfolioSnapshot{}
	src := &stubSource{portfolio: snap}
	b := NewBoard(src, nil, nil)

	if err := b.LoadPortfolio(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Portfolio() != snap {
		t.Error("expected snapshot applied")
	}

	src.portfolio = nil
	src.portErr = errors.New("404")
	b.LoadPortfolio(context.Background())
	if b.Portfolio() != snap {
		t.Error("failed portfolio load must not replace the snapshot")
	}
}

func TestRefresh_IndependentFailures(t *testing.T) {
	src := &stubSource{
		listErr:   errors.New("down"),
		portfolio: &models.PortfolioSnapshot{},
	}
	b := NewBoard(src, nil, nil)

	if err := b.Refresh(context.Background()); err == nil {
		t.Error("expected instrument error")
	}
	if b.Portfolio() == nil {
		t.Error("portfolio should load even though instruments failed")
	}
	if !b.Loaded() {
		t.Error("expected loaded flag")
	}
}

func TestModal_Lifecycle(t *testing.T) {
	m := NewModal()
	if v := m.View(); v.State != ModalClosed || v.Instrument != nil {
		t.Fatalf("expected closed modal, got %+v", v)
	}

	gen := m.Open(models.Instrument{Name: "KODEX"})
	v := m.View()
	if v.State != ModalLoading || v.Text != TextAnalyzing || v.Instrument.Name != "KODEX" {
		t.Errorf("unexpected loading view: %+v", v)
	}

	if !m.Resolve(gen, "Buy.") {
		t.Fatal("expected current result to apply")
	}
	if v := m.View(); v.State != ModalLoaded || v.Text != "Buy." {
		t.Errorf("unexpected loaded view: %+v", v)
	}

	m.Close()
	if v := m.View(); v.State != ModalClosed || v.Instrument != nil || v.Text != "" {
		t.Errorf("expected cleared modal, got %+v", v)
	}
}

func TestModal_EmptyReportFallback(t *testing.T) {
	m := NewModal()
	gen := m.Open(models.Instrument{Name: "X"})
	m.Resolve(gen, "")
	if v := m.View(); v.Text != TextNoReport {
		t.Errorf("expected fallback text, got %q", v.Text)
	}
}

func TestModal_Fail(t *testing.T) {
	m := NewModal()
	gen := m.Open(models.Instrument{Name: "X"})
	m.Fail(gen)
	v := m.View()
	if v.State != ModalFailed || v.Text != TextUnreachable {
		t.Errorf("unexpected failed view: %+v", v)
	}

	// Failed modal is closable, and reopening starts over.
	m.Close()
	m.Open(models.Instrument{Name: "X"})
	if m.View().Text != TextAnalyzing {
		t.Error("expected reopen to show the placeholder")
	}
}

func TestModal_StaleResultDropped(t *testing.T) {
	m := NewModal()
	genA := m.Open(models.Instrument{Name: "A"})
	genB := m.Open(models.Instrument{Name: "B"})

	if !m.Resolve(genB, "report B") {
		t.Fatal("expected B to apply")
	}
	if m.Resolve(genA, "report A") {
		t.Error("late result for A must be dropped")
	}
	if m.Fail(genA) {
		t.Error("late failure for A must be dropped")
	}

	v := m.View()
	if v.Instrument.Name != "B" || v.Text != "report B" {
		t.Errorf("expected B displayed, got %s / %q", v.Instrument.Name, v.Text)
	}
}

func TestModal_ResultAfterCloseDropped(t *testing.T) {
	m := NewModal()
	gen := m.Open(models.Instrument{Name: "A"})
	m.Close()
	if m.Resolve(gen, "late") {
		t.Error("result after close must be dropped")
	}
	if v := m.View(); v.State != ModalClosed || v.Text != "" {
		t.Errorf("expected modal to stay closed, got %+v", v)
	}
}

func TestRequestReport_LastSelectionWins(t *testing.T) {
	gateA := make(chan struct{})
	src := &stubSource{
		present: true,
		list:    []models.Instrument{{Name: "A"}, {Name: "B"}},
		reports: map[string]string{"A": "report A", "B": "report B"},
		gates:   map[string]chan struct{}{"A": gateA},
	}
	reg := metrics.New()
	b := NewBoard(src, nil, reg)
	b.LoadInstruments(context.Background())

	resA := make(chan ReportResult, 1)
	go func() {
		r, _ := b.RequestReport(context.Background(), 0, "")
		resA <- r
	}()

	// Wait until A has opened the modal before selecting B.
	deadline := time.Now().Add(2 * time.Second)
	for b.Modal().View().State != ModalLoading {
		if time.Now().After(deadline) {
			t.Fatal("A never opened the modal")
		}
		time.Sleep(time.Millisecond)
	}

	resB, err := b.RequestReport(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resB.Current || resB.View.Text != "report B" {
		t.Fatalf("expected B applied, got %+v", resB)
	}

	close(gateA)
	ra := <-resA
	if ra.Current {
		t.Error("A finished after B and must not be current")
	}
	if ra.View.Instrument.Name != "B" || ra.View.Text != "report B" {
		t.Errorf("stale response should show the newer state, got %+v", ra.View)
	}

	v := b.Modal().View()
	if v.Instrument.Name != "B" || v.Text != "report B" {
		t.Errorf("expected B still displayed, got %s / %q", v.Instrument.Name, v.Text)
	}
	if got := testutil.ToFloat64(reg.StaleReports); got != 1 {
		t.Errorf("expected 1 stale report, got %v", got)
	}
}

func TestRequestReport_Failure(t *testing.T) {
	src := &stubSource{
		present:   true,
		list:      []models.Instrument{{Name: "A"}},
		reportErr: errors.New("connection refused"),
	}
	b := NewBoard(src, nil, nil)
	b.LoadInstruments(context.Background())

	res, err := b.RequestReport(context.Background(), 0, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Current || res.View.State != ModalFailed || res.View.Text != TextUnreachable {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestRequestReport_OutOfRange(t *testing.T) {
	b := NewBoard(&stubSource{}, nil, nil)
	for _, i := range []int{-1, 0, 5} {
		if _, err := b.RequestReport(context.Background(), i, ""); !errors.Is(err, ErrNoInstrument) {
			t.Errorf("index %d: expected ErrNoInstrument, got %v", i, err)
		}
	}
	if b.Modal().View().State != ModalClosed {
		t.Error("an invalid selection must not open the modal")
	}
}

func TestRequestReport_NameMustMatchRow(t *testing.T) {
	src := &stubSource{
		present: true,
		list:    []models.Instrument{{Name: "A"}, {Name: "B"}},
		reports: map[string]string{"A": "report A", "B": "report B"},
	}
	b := NewBoard(src, nil, nil)
	b.LoadInstruments(context.Background())

	// The list is replaced while the caller still shows the old order.
	src.list = []models.Instrument{{Name: "B"}, {Name: "A"}}
	b.LoadInstruments(context.Background())

	if _, err := b.RequestReport(context.Background(), 0, "A"); !errors.Is(err, ErrSelectionChanged) {
		t.Fatalf("expected ErrSelectionChanged, got %v", err)
	}
	if b.Modal().View().State != ModalClosed {
		t.Error("a mismatched selection must not open the modal")
	}

	res, err := b.RequestReport(context.Background(), 1, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.View.Instrument.Name != "A" || res.View.Text != "report A" {
		t.Errorf("expected A's report, got %+v", res.View)
	}
}

func TestRegistry_BoardPerSession(t *testing.T) {
	r := NewRegistry(&stubSource{}, nil, nil)
	a1 := r.Board("a")
	a2 := r.Board("a")
	b := r.Board("b")

	if a1 != a2 {
		t.Error("expected the same board for the same session")
	}
	if a1 == b {
		t.Error("expected separate boards per session")
	}

	if got := r.Sessions(); len(got) != 2 {
		t.Errorf("expected 2 sessions, got %v", got)
	}

	r.Drop("a")
	if r.Len() != 1 {
		t.Errorf("expected 1 board, got %d", r.Len())
	}
	if r.Board("a") == a1 {
		t.Error("expected a fresh board after drop")
	}
}
