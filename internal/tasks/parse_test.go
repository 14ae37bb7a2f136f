package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxtrack/itax-automation/internal/models"
)

const obligationsHTML = `
<html><body>
<table id="obligationResultTbl">
  <tr><th>Obligation</th><th>Status</th><th>From</th><th>To</th></tr>
  <tr><td>VAT</td><td>Registered</td><td>01/01/2019</td><td>-</td></tr>
  <tr><td>PAYE</td><td>Registered</td><td>15/06/2020</td><td>30/09/2024</td></tr>
  <tr><td>Digital Service Tax</td><td>Registered</td><td>01/01/2021</td><td>-</td></tr>
</table>
</body></html>`

func TestParseObligations(t *testing.T) {
	obligations, err := parseObligations(obligationsHTML)
	require.NoError(t, err)

	assert.Equal(t, models.ObligationStatus{
		Status:        "Registered",
		EffectiveFrom: "01/01/2019",
		EffectiveTo:   "Active",
	}, obligations["VAT"])

	assert.Equal(t, models.ObligationStatus{
		Status:        "Registered",
		EffectiveFrom: "15/06/2020",
		EffectiveTo:   "30/09/2024",
	}, obligations["PAYE"])

	// Absent known types carry the sentinel in every field.
	assert.Equal(t, models.ObligationStatus{
		Status:        models.NoObligation,
		EffectiveFrom: models.NoObligation,
		EffectiveTo:   models.NoObligation,
	}, obligations["Income Tax Company"])

	// Rows outside the known obligation set are dropped.
	assert.NotContains(t, obligations, "Digital Service Tax")
	assert.Len(t, obligations, len(models.KnownObligations))
}

func TestParseObligationsEmptyTable(t *testing.T) {
	obligations, err := parseObligations(`<html><table id="obligationResultTbl"></table></html>`)
	require.NoError(t, err)

	assert.Len(t, obligations, len(models.KnownObligations))
	for _, name := range models.KnownObligations {
		assert.Equal(t, models.NoObligation, obligations[name].Status, name)
	}
}

const ledgerHTML = `
<html><body>
<table id="ledgerTbl">
<thead><tr><th>Obligation</th><th>Date</th><th>Ref</th><th>Particulars</th><th>Type</th><th>Debit</th><th>Credit</th></tr></thead>
<tbody>
  <tr><td>VAT</td><td>05/03/2024</td><td>KRA2024001</td><td>Return filing</td><td>Debit</td><td>15,000.00</td><td></td></tr>
  <tr><td>PAYE</td><td>10/03/2024</td><td>KRA2024002</td><td>Payment received</td><td>Credit</td><td></td><td>15,000.00</td></tr>
  <tr><td colspan="7">No data available in table</td></tr>
</tbody>
</table>
</body></html>`

func TestParseLedgerRows(t *testing.T) {
	rows, err := parseLedgerRows(ledgerHTML)
	require.NoError(t, err)
	require.Len(t, rows, 2, "placeholder row must not be scraped")

	assert.Equal(t, models.LedgerRow{
		Obligation:      "VAT",
		TransactionDate: "05/03/2024",
		Reference:       "KRA2024001",
		Particulars:     "Return filing",
		TransactionType: "Debit",
		Debit:           "15,000.00",
		Credit:          "",
	}, rows[0])
	assert.Equal(t, "KRA2024002", rows[1].Reference)
}

func TestParseLedgerRowsEmpty(t *testing.T) {
	rows, err := parseLedgerRows(`<html><table id="ledgerTbl"><tbody></tbody></table></html>`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCertificateObjectName(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

	name := CertificateObjectName(models.DocumentPINCertificate, "P051234567A", at)
	assert.Equal(t, "P051234567A/pin_certificate/2024-03-05.pdf", name)

	// Same day, later hour: identical key, so the upload overwrites.
	later := at.Add(6 * time.Hour)
	assert.Equal(t, name, CertificateObjectName(models.DocumentPINCertificate, "P051234567A", later))
}

func TestPayrollObjectName(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

	assert.Equal(t, "P051234567A/payroll_statutory/2024-03-05.xlsx",
		PayrollObjectName("P051234567A", ".xlsx", at))

	// Extension falls back to CSV when the portal serves a bare file.
	assert.Equal(t, "P051234567A/payroll_statutory/2024-03-05.csv",
		PayrollObjectName("P051234567A", "", at))

	later := at.Add(6 * time.Hour)
	assert.Equal(t, PayrollObjectName("P051234567A", ".csv", at),
		PayrollObjectName("P051234567A", ".csv", later))
}
