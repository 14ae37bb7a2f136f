package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/portal"
	"github.com/taxtrack/itax-automation/internal/services"
)

// TaskPayrollExport pulls the statutory payroll data file the portal
// prepares for registered employers.
const TaskPayrollExport = "payroll-export"

// Statutory payroll page selectors.
const (
	selStatutoryConsult = `#consultStatutoryBtn`
	selStatutoryExport  = `#exportStatutoryBtn`
)

// PayrollStatutoryExport downloads the portal's statutory payroll
// export and pushes it to remote storage. Like the certificates, the
// object name is keyed by extraction date: re-running a company on the
// same day overwrites that day's file.
type PayrollStatutoryExport struct {
	store services.ObjectStore
}

// NewPayrollStatutoryExport creates the statutory payroll export task.
func NewPayrollStatutoryExport(store services.ObjectStore) *PayrollStatutoryExport {
	return &PayrollStatutoryExport{store: store}
}

func (p *PayrollStatutoryExport) Name() string { return TaskPayrollExport }

func (p *PayrollStatutoryExport) Precheck(models.Company) (string, string) { return "", "" }

func (p *PayrollStatutoryExport) Extract(ctx context.Context, session *portal.Session, company models.Company, result *models.ExtractionResult) error {
	browser := session.Browser()

	// The export button confirms through a confirm() dialog. Arm
	// auto-accept before anything can pop up.
	if err := browser.AutoConfirmDialogs(ctx); err != nil {
		return fmt.Errorf("failed to arm dialog handler: %w", err)
	}

	if err := session.OpenMenu(ctx, portal.MenuPayrollStatutory); err != nil {
		return err
	}

	// The export button only appears once the consult round-trip has
	// populated the page.
	if err := session.ClickWithRetry(ctx, selStatutoryConsult, selStatutoryExport); err != nil {
		return fmt.Errorf("statutory consult never loaded: %w", err)
	}
	if err := browser.Click(ctx, selStatutoryExport); err != nil {
		return fmt.Errorf("export click failed: %w", err)
	}

	path, err := browser.WaitDownload(ctx)
	if err != nil {
		return fmt.Errorf("statutory export download failed: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read downloaded export: %w", err)
	}

	ext := filepath.Ext(path)
	objectName := PayrollObjectName(company.PIN(), ext, time.Now())
	url, err := p.store.Upload(ctx, objectName, payrollContentType(ext), data)
	if err != nil {
		return fmt.Errorf("statutory export upload failed: %w", err)
	}

	result.Document = &models.DocumentRef{
		Kind:     models.DocumentPayrollStatutory,
		FileName: filepath.Base(objectName),
		URL:      url,
		Size:     int64(len(data)),
	}
	return nil
}

// PayrollObjectName builds the storage path for a statutory export.
// One object per PIN and calendar day; the extension follows whatever
// file the portal served, defaulting to CSV.
func PayrollObjectName(pin, ext string, at time.Time) string {
	if ext == "" {
		ext = ".csv"
	}
	return fmt.Sprintf("%s/payroll_statutory/%s%s", pin, at.Format("2006-01-02"), ext)
}

func payrollContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".csv", "":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
