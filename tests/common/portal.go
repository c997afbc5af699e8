package common

import (
	"net/http/httptest"
	"testing"

	"github.com/bobmcallan/alpha-matrix/internal/app"
	applog "github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/config"
	"github.com/bobmcallan/alpha-matrix/internal/server"
)

// Portal is a portal served in-process for browser tests.
type Portal struct {
	URL string
	App *app.App
}

// StartInProcessPortal serves the full portal on a local port against apiURL.
func StartInProcessPortal(t *testing.T, apiURL, password string) *Portal {
	t.Helper()

	cfg := config.NewDefaultConfig()
	cfg.API.URL = apiURL
	cfg.Auth.Password = password

	application, err := app.New(cfg, applog.NewSilentLogger())
	if err != nil {
		t.Fatalf("failed to create portal: %v", err)
	}

	ts := httptest.NewServer(server.New(application).Handler())
	t.Cleanup(func() {
		ts.Close()
		application.Close()
	})

	return &Portal{URL: ts.URL, App: application}
}
