package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func strptr(s string) *string { return &s }

func TestStatusForOutcome(t *testing.T) {
	tests := []struct {
		outcome  LoginOutcome
		expected string
	}{
		{LoginSuccess, StatusValid},
		{LoginInvalidCredentials, StatusInvalid},
		{LoginPasswordExpired, StatusPasswordExpired},
		{LoginAccountLocked, StatusLocked},
		{LoginTimeout, StatusError},
		{LoginWrongCaptcha, StatusError},
		{LoginUnknown, StatusError},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusForOutcome(tt.outcome))
		})
	}
}

func TestOnlyWrongCaptchaRetries(t *testing.T) {
	for outcome := LoginUnknown; outcome <= LoginTimeout; outcome++ {
		assert.Equal(t, outcome == LoginWrongCaptcha, outcome.Retryable(), outcome.String())
	}
}

func TestMissingCredentialStatus(t *testing.T) {
	tests := []struct {
		name     string
		company  Company
		expected string
	}{
		{"both present", Company{TaxPIN: strptr("P1"), Password: strptr("pw")}, ""},
		{"pin missing", Company{Password: strptr("pw")}, StatusPinMissing},
		{"empty pin counts as missing", Company{TaxPIN: strptr(""), Password: strptr("pw")}, StatusPinMissing},
		{"password missing", Company{TaxPIN: strptr("P1")}, StatusPasswordMissing},
		{"both missing", Company{}, StatusBothMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MissingCredentialStatus(tt.company))
		})
	}
}
