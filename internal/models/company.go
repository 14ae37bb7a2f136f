package models

import "time"

// Company is one row of the company register. TaxPIN and Password are
// nullable on purpose: a missing value is valid data, not an error, and
// short-circuits to a terminal "missing" status before any portal
// interaction.
type Company struct {
	ID          int64      `json:"id"`
	Name        string     `json:"company_name"`
	TaxPIN      *string    `json:"kra_pin"`
	Password    *string    `json:"kra_password"`
	Status      string     `json:"status"`
	LastChecked *time.Time `json:"last_checked"`
}

// HasPIN reports whether the company carries a non-empty tax PIN.
func (c Company) HasPIN() bool {
	return c.TaxPIN != nil && *c.TaxPIN != ""
}

// HasPassword reports whether the company carries a non-empty credential.
func (c Company) HasPassword() bool {
	return c.Password != nil && *c.Password != ""
}

// PIN returns the tax PIN or the empty string.
func (c Company) PIN() string {
	if c.TaxPIN == nil {
		return ""
	}
	return *c.TaxPIN
}

// Credentials is the pair handed to a portal session for login.
type Credentials struct {
	PIN      string
	Password string
}

// Selection describes which companies a batch run covers. Zero value
// means "all companies".
type Selection struct {
	IDs        []int64 `json:"ids,omitempty"`
	StartIndex int     `json:"start_index,omitempty"`
	BatchSize  int     `json:"batch_size,omitempty"`
}
