package tasks

import (
	"context"

	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/portal"
)

// TaskPasswordCheck verifies stored credentials by logging in and
// straight back out.
const TaskPasswordCheck = "password-check"

// PasswordCheck has no feature page of its own. The login outcome the
// runner already classified is the entire answer.
type PasswordCheck struct{}

// NewPasswordCheck creates the password verification task.
func NewPasswordCheck() *PasswordCheck {
	return &PasswordCheck{}
}

func (p *PasswordCheck) Name() string { return TaskPasswordCheck }

func (p *PasswordCheck) Precheck(models.Company) (string, string) { return "", "" }

func (p *PasswordCheck) Extract(ctx context.Context, session *portal.Session, company models.Company, result *models.ExtractionResult) error {
	return nil
}
