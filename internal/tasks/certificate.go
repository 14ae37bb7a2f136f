package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/portal"
	"github.com/taxtrack/itax-automation/internal/services"
)

// Certificate task names.
const (
	TaskPINCertificate = "pin-certificate"
	TaskTCCCertificate = "tcc-certificate"
)

// Reprint page selectors.
const (
	selReprintConsult  = `#consultReprintBtn`
	selReprintDownload = `#downloadCertBtn`
)

// CertificateDownload fetches a certificate PDF from the portal's
// reprint page and pushes it to remote storage. The object name is
// keyed by the extraction date, so re-running a company on the same day
// overwrites that day's copy instead of accumulating duplicates.
type CertificateDownload struct {
	kind  models.DocumentKind
	store services.ObjectStore
}

// NewPINCertificateDownload creates the PIN certificate task.
func NewPINCertificateDownload(store services.ObjectStore) *CertificateDownload {
	return &CertificateDownload{kind: models.DocumentPINCertificate, store: store}
}

// NewTCCCertificateDownload creates the tax compliance certificate task.
func NewTCCCertificateDownload(store services.ObjectStore) *CertificateDownload {
	return &CertificateDownload{kind: models.DocumentTCC, store: store}
}

func (c *CertificateDownload) Name() string {
	if c.kind == models.DocumentTCC {
		return TaskTCCCertificate
	}
	return TaskPINCertificate
}

func (c *CertificateDownload) Precheck(models.Company) (string, string) { return "", "" }

func (c *CertificateDownload) menu() portal.MenuTarget {
	if c.kind == models.DocumentTCC {
		return portal.MenuReprintTCC
	}
	return portal.MenuReprintPIN
}

func (c *CertificateDownload) Extract(ctx context.Context, session *portal.Session, company models.Company, result *models.ExtractionResult) error {
	browser := session.Browser()

	// The reprint page confirms the download through a confirm()
	// dialog. Arm auto-accept before anything can pop up.
	if err := browser.AutoConfirmDialogs(ctx); err != nil {
		return fmt.Errorf("failed to arm dialog handler: %w", err)
	}

	if err := session.OpenMenu(ctx, c.menu()); err != nil {
		return err
	}

	if err := session.ClickWithRetry(ctx, selReprintConsult, selReprintDownload); err != nil {
		return fmt.Errorf("reprint consult never loaded: %w", err)
	}
	if err := browser.Click(ctx, selReprintDownload); err != nil {
		return fmt.Errorf("download click failed: %w", err)
	}

	path, err := browser.WaitDownload(ctx)
	if err != nil {
		return fmt.Errorf("certificate download failed: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read downloaded certificate: %w", err)
	}

	objectName := CertificateObjectName(c.kind, company.PIN(), time.Now())
	url, err := c.store.Upload(ctx, objectName, "application/pdf", data)
	if err != nil {
		return fmt.Errorf("certificate upload failed: %w", err)
	}

	result.Document = &models.DocumentRef{
		Kind:     c.kind,
		FileName: filepath.Base(objectName),
		URL:      url,
		Size:     int64(len(data)),
	}
	return nil
}

// CertificateObjectName builds the storage path for a certificate. One
// object per PIN, kind and calendar day.
func CertificateObjectName(kind models.DocumentKind, pin string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s.pdf", pin, kind, at.Format("2006-01-02"))
}
