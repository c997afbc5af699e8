package ui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bobmcallan/alpha-matrix/tests/common"
)

const sampleLatest = `{"data":[
	{"name":"KODEX 200","price_curr":35120,"grade_score":"S","alpha_1m":3.2,"trend_1w":"up","rvol":180,"vol_status":"surging","description":"Large cap leader"},
	{"name":"TIGER 2X","price_curr":12500.5,"grade_score":"B","alpha_1m":-1.1,"trend_1w":"down","rvol":90,"vol_status":"quiet","description":"Leveraged"},
	{"name":"ARIRANG","price_curr":8000,"grade_score":"X","alpha_1m":0,"trend_1w":"flat","rvol":40,"vol_status":"dry","description":"Neglected"}
]}`

// suite is one browser against an in-process portal and a stub backend.
type suite struct {
	t        *testing.T
	ctx      context.Context
	backend  *common.StubBackend
	portal   *common.Portal
	dialogs  *common.DialogRecorder
	jsErrors *common.JSErrorCollector
	password string
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if !common.ChromeAvailable() {
		t.Skip("no Chrome or Chromium found; set ALPHA_TEST_CHROME to its path")
	}

	password := common.LoadTestConfig().Server.Password

	backend := common.NewStubBackend(sampleLatest)
	t.Cleanup(backend.Close)

	portal := common.StartInProcessPortal(t, backend.APIURL(), password)

	ctx, cancel := common.NewBrowserContext(common.DefaultBrowserConfig())
	t.Cleanup(cancel)

	s := &suite{
		t:        t,
		ctx:      ctx,
		backend:  backend,
		portal:   portal,
		dialogs:  common.NewDialogRecorder(ctx),
		jsErrors: common.NewJSErrorCollector(ctx),
		password: password,
	}
	t.Cleanup(func() {
		if t.Failed() {
			path := filepath.Join(common.GetScreenshotDir("ui"), strings.ReplaceAll(t.Name(), "/", "_")+".png")
			common.Screenshot(ctx, path)
		}
		for _, e := range s.jsErrors.Errors() {
			t.Errorf("JS error: %s", e)
		}
	})
	return s
}

// login signs in and waits for the dashboard table to settle.
func (s *suite) login() {
	s.t.Helper()
	if err := common.Login(s.ctx, s.portal.URL, s.password); err != nil {
		s.t.Fatalf("login failed: %v", err)
	}
	s.waitLoaded()
}

func (s *suite) waitLoaded() {
	s.t.Helper()
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := common.WaitHidden(ctx, "#loading"); err != nil {
		s.t.Fatalf("loading placeholder never cleared: %v", err)
	}
}

func (s *suite) path() string {
	s.t.Helper()
	loc, err := common.Location(s.ctx)
	if err != nil {
		s.t.Fatalf("failed to read location: %v", err)
	}
	return strings.TrimPrefix(loc, s.portal.URL)
}

func (s *suite) rows() int {
	s.t.Helper()
	n, err := common.ElementCount(s.ctx, "#rows tr.row")
	if err != nil {
		s.t.Fatalf("failed to count rows: %v", err)
	}
	return n
}

func (s *suite) waitModalText(want string) string {
	s.t.Helper()
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	got, _ := common.WaitText(ctx, "#modal-text", want)
	return got
}

func (s *suite) text(selector string) string {
	s.t.Helper()
	got, err := common.Text(s.ctx, selector)
	if err != nil {
		s.t.Fatalf("failed to read %s: %v", selector, err)
	}
	return got
}
