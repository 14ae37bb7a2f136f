package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxtrack/itax-automation/internal/config"
	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/services"
)

func strptr(s string) *string { return &s }

// scriptedBrowser serves a fixed page after the login submit and,
// when download is set, a file path from WaitDownload.
type scriptedBrowser struct {
	afterLogin string
	current    string
	download   string
	closed     int
}

func (b *scriptedBrowser) Navigate(ctx context.Context, url string) error {
	b.current = `<html><input name="logid"></html>`
	return nil
}
func (b *scriptedBrowser) WaitVisible(ctx context.Context, selector string) error { return nil }
func (b *scriptedBrowser) Click(ctx context.Context, selector string) error {
	if selector == "#loginButton" {
		b.current = b.afterLogin
	}
	return nil
}
func (b *scriptedBrowser) SendKeys(ctx context.Context, selector, text string) error { return nil }
func (b *scriptedBrowser) Clear(ctx context.Context, selector string) error          { return nil }
func (b *scriptedBrowser) Text(ctx context.Context, selector string) (string, error) {
	return "", nil
}
func (b *scriptedBrowser) HTML(ctx context.Context) (string, error) { return b.current, nil }
func (b *scriptedBrowser) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	return []byte("png"), nil
}
func (b *scriptedBrowser) Evaluate(ctx context.Context, script string) (interface{}, error) {
	return nil, nil
}
func (b *scriptedBrowser) Exists(ctx context.Context, selector string) (bool, error) {
	return selector == "#menu_top" && strings.Contains(b.current, "menu_top"), nil
}
func (b *scriptedBrowser) AutoConfirmDialogs(ctx context.Context) error { return nil }
func (b *scriptedBrowser) WaitDownload(ctx context.Context) (string, error) {
	if b.download == "" {
		return "", errors.New("no downloads")
	}
	return b.download, nil
}
func (b *scriptedBrowser) Close() error    { b.closed++; return nil }
func (b *scriptedBrowser) IsHealthy() bool { return b.closed == 0 }
func (b *scriptedBrowser) ID() string      { return "scripted" }

type stubFactory struct {
	browser *scriptedBrowser
	opens   int
	openErr error
}

func (f *stubFactory) Open(ctx context.Context) (services.Browser, error) {
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.browser, nil
}

func (f *stubFactory) Health() map[string]interface{} {
	return map[string]interface{}{"status": "healthy"}
}

type stubOCR struct{}

func (stubOCR) Text(string) (string, error) { return "4 + 4", nil }

func testRunner(factory *stubFactory) *Runner {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cfg := config.PortalConfig{
		BaseURL:            "http://portal.test",
		LoginTimeout:       5 * time.Second,
		DetectorTimeout:    200 * time.Millisecond,
		MaxCaptchaAttempts: 3,
		MaxMenuClickRetry:  2,
	}
	return NewRunner(factory, stubOCR{}, cfg, logger)
}

func TestRunnerSkipsMissingCredentials(t *testing.T) {
	tests := []struct {
		name     string
		company  models.Company
		expected string
	}{
		{"no pin", models.Company{ID: 1, Password: strptr("pw")}, models.StatusPinMissing},
		{"no password", models.Company{ID: 2, TaxPIN: strptr("P051234567A")}, models.StatusPasswordMissing},
		{"neither", models.Company{ID: 3}, models.StatusBothMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := &stubFactory{}
			runner := testRunner(factory)

			result := runner.Run(context.Background(), NewPasswordCheck(), tt.company)
			assert.Equal(t, tt.expected, result.Status)
			assert.Zero(t, factory.opens, "no browser may be opened for missing credentials")
		})
	}
}

func TestRunnerLedgerPrecheckBeforeBrowser(t *testing.T) {
	factory := &stubFactory{}
	runner := testRunner(factory)

	company := models.Company{ID: 4, TaxPIN: strptr("X123456789Z"), Password: strptr("pw")}
	result := runner.Run(context.Background(), NewLedgerExtract(), company)

	assert.Equal(t, models.StatusSkipped, result.Status)
	assert.Contains(t, result.Detail, "no ledger")
	assert.Zero(t, factory.opens)
}

func TestRunnerSuccessfulPasswordCheck(t *testing.T) {
	browser := &scriptedBrowser{afterLogin: `<html><div id="menu_top"></div></html>`}
	factory := &stubFactory{browser: browser}
	runner := testRunner(factory)

	company := models.Company{ID: 5, Name: "Acme Ltd", TaxPIN: strptr("P051234567A"), Password: strptr("pw")}
	result := runner.Run(context.Background(), NewPasswordCheck(), company)

	assert.Equal(t, models.StatusValid, result.Status)
	assert.Equal(t, int64(5), result.CompanyID)
	assert.Equal(t, 1, browser.closed, "browser must be closed exactly once")
}

func TestRunnerInvalidCredentials(t *testing.T) {
	browser := &scriptedBrowser{afterLogin: `<html>Invalid Login Id or Password</html>`}
	factory := &stubFactory{browser: browser}
	runner := testRunner(factory)

	company := models.Company{ID: 6, TaxPIN: strptr("P051234567A"), Password: strptr("wrong")}
	result := runner.Run(context.Background(), NewPasswordCheck(), company)

	assert.Equal(t, models.StatusInvalid, result.Status)
	assert.Equal(t, 1, browser.closed)
}

func TestRunnerBrowserStartupFailure(t *testing.T) {
	factory := &stubFactory{openErr: errors.New("chrome exploded")}
	runner := testRunner(factory)

	company := models.Company{ID: 7, TaxPIN: strptr("P051234567A"), Password: strptr("pw")}
	result := runner.Run(context.Background(), NewPasswordCheck(), company)

	assert.Equal(t, models.StatusError, result.Status)
	assert.Contains(t, result.Detail, "browser startup failed")
}

type recordingStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (s *recordingStore) Upload(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	s.objects[objectName] = data
	s.contentTypes[objectName] = contentType
	return "https://storage.test/" + objectName, nil
}

func TestRunnerPayrollExport(t *testing.T) {
	exportPath := filepath.Join(t.TempDir(), "statutory.csv")
	require.NoError(t, os.WriteFile(exportPath, []byte("pin,paye,nssf\n"), 0o644))

	browser := &scriptedBrowser{
		afterLogin: `<html><div id="menu_top"></div></html>`,
		download:   exportPath,
	}
	factory := &stubFactory{browser: browser}
	runner := testRunner(factory)
	store := newRecordingStore()

	company := models.Company{ID: 8, Name: "Acme Ltd", TaxPIN: strptr("P051234567A"), Password: strptr("pw")}
	result := runner.Run(context.Background(), NewPayrollStatutoryExport(store), company)

	assert.Equal(t, models.StatusValid, result.Status)
	require.NotNil(t, result.Document)
	assert.Equal(t, models.DocumentPayrollStatutory, result.Document.Kind)
	assert.Equal(t, int64(len("pin,paye,nssf\n")), result.Document.Size)
	assert.Equal(t, 1, browser.closed)

	objectName := PayrollObjectName("P051234567A", ".csv", time.Now())
	assert.Contains(t, store.objects, objectName)
	assert.Equal(t, "text/csv", store.contentTypes[objectName])
	assert.Equal(t, "https://storage.test/"+objectName, result.Document.URL)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry(NewPasswordCheck(), NewObligationCheck(), NewLedgerExtract())

	ex, ok := reg.Get(TaskObligationCheck)
	require.True(t, ok)
	assert.Equal(t, TaskObligationCheck, ex.Name())

	_, ok = reg.Get("bogus")
	assert.False(t, ok)

	assert.Equal(t, []string{TaskLedger, TaskObligationCheck, TaskPasswordCheck}, reg.Names())
}
