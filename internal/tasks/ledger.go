package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/portal"
	"github.com/taxtrack/itax-automation/internal/utils"
)

// TaskLedger extracts the general ledger transaction table.
const TaskLedger = "ledger"

// Ledger page selectors.
const (
	selLedgerPageSize = `select[name="ledgerTbl_length"]`
	selLedgerRun      = `#runReportBtn`
	selLedgerTable    = `#ledgerTbl`
)

// LedgerExtract pulls every transaction row from the general ledger
// report. Only P- and A-prefixed PINs have a ledger on the portal;
// anything else is skipped before a browser is opened.
type LedgerExtract struct{}

// NewLedgerExtract creates the ledger extraction task.
func NewLedgerExtract() *LedgerExtract {
	return &LedgerExtract{}
}

func (l *LedgerExtract) Name() string { return TaskLedger }

func (l *LedgerExtract) Precheck(company models.Company) (string, string) {
	if !utils.HasLedgerPrefix(company.PIN()) {
		return models.StatusSkipped, fmt.Sprintf("PIN %q has no ledger on the portal", company.PIN())
	}
	return "", ""
}

func (l *LedgerExtract) Extract(ctx context.Context, session *portal.Session, company models.Company, result *models.ExtractionResult) error {
	if err := session.OpenMenu(ctx, portal.MenuGeneralLedger); err != nil {
		return err
	}

	browser := session.Browser()
	if err := session.ClickWithRetry(ctx, selLedgerRun, selLedgerTable); err != nil {
		return fmt.Errorf("ledger report never rendered: %w", err)
	}

	// The table paginates at 10 rows. Force the widest page size the
	// control offers so one scrape sees every transaction.
	script := fmt.Sprintf(`(() => {
		const sel = document.querySelector(%q);
		if (!sel) return false;
		sel.value = sel.options[sel.options.length - 1].value;
		sel.dispatchEvent(new Event("change", { bubbles: true }));
		return true;
	})()`, selLedgerPageSize)
	if _, err := browser.Evaluate(ctx, script); err != nil {
		return fmt.Errorf("failed to widen ledger page: %w", err)
	}

	html, err := browser.HTML(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger page: %w", err)
	}

	rows, err := parseLedgerRows(html)
	if err != nil {
		return err
	}

	result.LedgerRows = rows
	return nil
}

// parseLedgerRows scrapes the transaction table. Header rows and the
// "no data" placeholder row have the wrong cell count and drop out.
func parseLedgerRows(html string) ([]models.LedgerRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger page: %w", err)
	}

	var rows []models.LedgerRow
	doc.Find(selLedgerTable + " tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}
		rows = append(rows, models.LedgerRow{
			Obligation:      strings.TrimSpace(cells.Eq(0).Text()),
			TransactionDate: strings.TrimSpace(cells.Eq(1).Text()),
			Reference:       strings.TrimSpace(cells.Eq(2).Text()),
			Particulars:     strings.TrimSpace(cells.Eq(3).Text()),
			TransactionType: strings.TrimSpace(cells.Eq(4).Text()),
			Debit:           strings.TrimSpace(cells.Eq(5).Text()),
			Credit:          strings.TrimSpace(cells.Eq(6).Text()),
		})
	})

	return rows, nil
}
