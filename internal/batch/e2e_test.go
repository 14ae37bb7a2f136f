package batch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxtrack/itax-automation/internal/config"
	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/services"
	"github.com/taxtrack/itax-automation/internal/tasks"
)

// portalBrowser scripts one portal visit: after the login submit it
// serves the page configured for its company.
type portalBrowser struct {
	afterLogin string
	current    string
	closed     int
}

func (b *portalBrowser) Navigate(ctx context.Context, url string) error {
	b.current = `<html><input name="logid"></html>`
	return nil
}
func (b *portalBrowser) WaitVisible(ctx context.Context, selector string) error { return nil }
func (b *portalBrowser) Click(ctx context.Context, selector string) error {
	if selector == "#loginButton" {
		b.current = b.afterLogin
	}
	return nil
}
func (b *portalBrowser) SendKeys(ctx context.Context, selector, text string) error { return nil }
func (b *portalBrowser) Clear(ctx context.Context, selector string) error          { return nil }
func (b *portalBrowser) Text(ctx context.Context, selector string) (string, error) {
	return "", nil
}
func (b *portalBrowser) HTML(ctx context.Context) (string, error) { return b.current, nil }
func (b *portalBrowser) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	return []byte("png"), nil
}
func (b *portalBrowser) Evaluate(ctx context.Context, script string) (interface{}, error) {
	return nil, nil
}
func (b *portalBrowser) Exists(ctx context.Context, selector string) (bool, error) {
	return selector == "#menu_top" && strings.Contains(b.current, "menu_top"), nil
}
func (b *portalBrowser) AutoConfirmDialogs(ctx context.Context) error { return nil }
func (b *portalBrowser) WaitDownload(ctx context.Context) (string, error) {
	return "", errors.New("no downloads")
}
func (b *portalBrowser) Close() error    { b.closed++; return nil }
func (b *portalBrowser) IsHealthy() bool { return b.closed == 0 }
func (b *portalBrowser) ID() string      { return "portal" }

// portalFactory hands each open a browser scripted for the next
// company, in order.
type portalFactory struct {
	browsers []*portalBrowser
	opened   int
}

func (f *portalFactory) Open(ctx context.Context) (services.Browser, error) {
	if f.opened >= len(f.browsers) {
		return nil, errors.New("unexpected browser open")
	}
	b := f.browsers[f.opened]
	f.opened++
	return b, nil
}

func (f *portalFactory) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

type arithmeticOCR struct{}

func (arithmeticOCR) Text(string) (string, error) { return "6 + 2", nil }

// TestBatchEndToEnd drives the real task runner inside the real
// orchestrator over a mixed register: a company that logs in, one with
// no stored password, and one whose login never classifies.
func TestBatchEndToEnd(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	alphaBrowser := &portalBrowser{afterLogin: `<html><div id="menu_top"></div></html>`}
	gammaBrowser := &portalBrowser{afterLogin: `<html><body>still loading</body></html>`}
	factory := &portalFactory{browsers: []*portalBrowser{alphaBrowser, gammaBrowser}}

	portalCfg := config.PortalConfig{
		BaseURL:            "http://portal.test",
		LoginTimeout:       5 * time.Second,
		DetectorTimeout:    200 * time.Millisecond,
		MaxCaptchaAttempts: 3,
		MaxMenuClickRetry:  2,
	}
	runner := tasks.NewRunner(factory, arithmeticOCR{}, portalCfg, logger)

	companies := []models.Company{
		{ID: 1, Name: "Alpha", TaxPIN: strptr("P051234567A"), Password: strptr("pw")},
		{ID: 2, Name: "Beta", TaxPIN: strptr("P059876543B")},
		{ID: 3, Name: "Gamma", TaxPIN: strptr("P051111111C"), Password: strptr("pw")},
	}

	sink := &fakeSink{}
	runs := &fakeRunStore{}
	rep := &fakeReport{}

	registry := tasks.NewRegistry(tasks.NewPasswordCheck())
	orchestrator := NewOrchestrator(&fakeCompanyStore{companies: companies}, sink, runs, runner,
		registry, config.BatchConfig{ReportDir: t.TempDir()}, logger)
	orchestrator.newReport = func(dir, runID, taskName string) (ReportWriter, error) {
		return rep, nil
	}

	run, err := orchestrator.Run(context.Background(), tasks.TaskPasswordCheck, models.Selection{})
	require.NoError(t, err)

	require.Len(t, sink.saved, 3)
	assert.Equal(t, models.StatusValid, sink.saved[0].Status)
	assert.Equal(t, models.StatusPasswordMissing, sink.saved[1].Status)
	assert.Equal(t, models.StatusError, sink.saved[2].Status)

	// Results land in register order.
	assert.Equal(t, []int64{1, 2, 3}, []int64{
		sink.saved[0].CompanyID, sink.saved[1].CompanyID, sink.saved[2].CompanyID,
	})

	// Beta never got a browser; the other two got exactly one each,
	// closed exactly once.
	assert.Equal(t, 2, factory.opened)
	assert.Equal(t, 1, alphaBrowser.closed)
	assert.Equal(t, 1, gammaBrowser.closed)

	assert.Equal(t, 2, run.Succeeded, "missing credentials is a terminal status, not a failure")
	assert.Equal(t, 1, run.Failed)
	assert.Len(t, rep.rows, 3)
}
