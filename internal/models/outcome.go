package models

// LoginOutcome classifies one login attempt against the portal. Produced
// once per attempt; consumed to decide retry vs terminal failure.
type LoginOutcome int

const (
	LoginUnknown LoginOutcome = iota
	LoginSuccess
	LoginWrongCaptcha
	LoginInvalidCredentials
	LoginPasswordExpired
	LoginAccountLocked
	LoginTimeout
)

var loginOutcomeNames = map[LoginOutcome]string{
	LoginUnknown:            "unknown",
	LoginSuccess:            "success",
	LoginWrongCaptcha:       "wrong_captcha",
	LoginInvalidCredentials: "invalid_credentials",
	LoginPasswordExpired:    "password_expired",
	LoginAccountLocked:      "account_locked",
	LoginTimeout:            "timeout",
}

func (o LoginOutcome) String() string {
	if name, ok := loginOutcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// Retryable reports whether the outcome permits another login attempt
// with a fresh captcha. Only a rejected captcha is retryable; every
// other terminal state is final.
func (o LoginOutcome) Retryable() bool {
	return o == LoginWrongCaptcha
}

// Status labels written back to the company register and the batch
// report. The exact strings are load-bearing: the dashboard filters on
// them.
const (
	StatusValid           = "Valid"
	StatusInvalid         = "Invalid"
	StatusPasswordExpired = "Password Expired"
	StatusLocked          = "Locked"
	StatusPinMissing      = "Pin Missing"
	StatusPasswordMissing = "Password Missing"
	StatusBothMissing     = "Pin and Password Missing"
	StatusError           = "Error"
	StatusSkipped         = "Skipped"
)

// StatusForOutcome maps a terminal login outcome to its register label.
func StatusForOutcome(o LoginOutcome) string {
	switch o {
	case LoginSuccess:
		return StatusValid
	case LoginInvalidCredentials:
		return StatusInvalid
	case LoginPasswordExpired:
		return StatusPasswordExpired
	case LoginAccountLocked:
		return StatusLocked
	default:
		return StatusError
	}
}

// MissingCredentialStatus returns the terminal status for a company with
// absent PIN and/or password, or "" when both are present.
func MissingCredentialStatus(c Company) string {
	switch {
	case !c.HasPIN() && !c.HasPassword():
		return StatusBothMissing
	case !c.HasPIN():
		return StatusPinMissing
	case !c.HasPassword():
		return StatusPasswordMissing
	default:
		return ""
	}
}
