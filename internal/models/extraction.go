package models

import "time"

// Known obligation types on the portal's Obligation Details panel.
// Every extraction reports exactly these, absent ones carrying the
// NoObligation sentinel. Rows outside this list are ignored.
var KnownObligations = []string{
	"Income Tax Company",
	"VAT",
	"PAYE",
	"Rent Income",
	"Resident Individual",
	"Turnover Tax",
}

// NoObligation is the sentinel written into status and both date fields
// of obligation types absent from the scraped panel. Downstream sheets
// key on the literal string, so it is never null or empty.
const NoObligation = "No obligation"

// ObligationStatus is one normalized row of the obligation panel.
type ObligationStatus struct {
	Status        string `json:"status"`
	EffectiveFrom string `json:"effective_from"`
	EffectiveTo   string `json:"effective_to"`
}

// LedgerRow is one scraped general-ledger transaction.
type LedgerRow struct {
	Obligation      string `json:"tax_obligation"`
	TransactionDate string `json:"transaction_date"`
	Reference       string `json:"reference_number"`
	Particulars     string `json:"particulars"`
	TransactionType string `json:"transaction_type"`
	Debit           string `json:"debit"`
	Credit          string `json:"credit"`
}

// DocumentKind identifies a downloadable certificate artifact.
type DocumentKind string

const (
	DocumentPINCertificate   DocumentKind = "pin_certificate"
	DocumentTCC              DocumentKind = "tcc"
	DocumentPayrollStatutory DocumentKind = "payroll_statutory"
)

// DocumentRef points at an uploaded document blob. Only the URL is
// retained once ownership transfers to object storage.
type DocumentRef struct {
	Kind     DocumentKind `json:"kind"`
	FileName string       `json:"file_name"`
	URL      string       `json:"url"`
	Size     int64        `json:"size"`
}

// ExtractionResult is the single terminal outcome of one task run for
// one company: either a structured payload or an error descriptor,
// never both halves empty.
type ExtractionResult struct {
	CompanyID   int64                       `json:"company_id"`
	CompanyName string                      `json:"company_name"`
	TaxPIN      string                      `json:"kra_pin"`
	TaskName    string                      `json:"task"`
	Status      string                      `json:"status"`
	Detail      string                      `json:"detail,omitempty"`
	Obligations map[string]ObligationStatus `json:"obligations,omitempty"`
	LedgerRows  []LedgerRow                 `json:"ledger_rows,omitempty"`
	Document    *DocumentRef                `json:"document,omitempty"`
	CompletedAt time.Time                   `json:"completed_at"`
}

// Failed reports whether the run ended in the Error status.
func (r ExtractionResult) Failed() bool {
	return r.Status == StatusError
}
