package tasks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/captcha"
	"github.com/taxtrack/itax-automation/internal/config"
	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/portal"
	"github.com/taxtrack/itax-automation/internal/services"
)

// Extractor is one kind of work performed against a logged-in portal
// session. The surrounding lifecycle (credential checks, browser,
// login, logout, teardown) lives in Runner; extractors only know their
// feature page.
type Extractor interface {
	// Name identifies the task in reports, logs and the API.
	Name() string

	// Precheck inspects the company before any browser is opened. A
	// non-empty status short-circuits the run with that status.
	Precheck(company models.Company) (status, detail string)

	// Extract does the task's work on an authenticated session. It is
	// only called after a successful login.
	Extract(ctx context.Context, session *portal.Session, company models.Company, result *models.ExtractionResult) error
}

// Runner executes one extractor against one company, owning the whole
// browser lifecycle. Exactly one browser is opened per company and it
// is always closed, whatever happens in between.
type Runner struct {
	factory services.BrowserFactory
	engine  captcha.OCREngine
	config  config.PortalConfig
	logger  *logrus.Logger
}

// NewRunner creates a task runner.
func NewRunner(factory services.BrowserFactory, engine captcha.OCREngine, cfg config.PortalConfig, logger *logrus.Logger) *Runner {
	return &Runner{
		factory: factory,
		engine:  engine,
		config:  cfg,
		logger:  logger,
	}
}

// Run executes the extractor for one company and always returns a
// result; failures land in the result's status, never in a panic or a
// leaked browser.
func (r *Runner) Run(ctx context.Context, ex Extractor, company models.Company) models.ExtractionResult {
	result := models.ExtractionResult{
		CompanyID:   company.ID,
		CompanyName: company.Name,
		TaxPIN:      company.PIN(),
		TaskName:    ex.Name(),
		CompletedAt: time.Now(),
	}

	log := r.logger.WithFields(logrus.Fields{
		"task":       ex.Name(),
		"company_id": company.ID,
	})

	// Credential gaps are decided from the record alone. No browser is
	// opened for a company that cannot possibly log in.
	if status := models.MissingCredentialStatus(company); status != "" {
		result.Status = status
		result.CompletedAt = time.Now()
		log.WithField("status", status).Info("Skipping company with missing credentials")
		return result
	}
	if status, detail := ex.Precheck(company); status != "" {
		result.Status = status
		result.Detail = detail
		result.CompletedAt = time.Now()
		log.WithField("status", status).Info("Precheck rejected company")
		return result
	}

	browser, err := r.factory.Open(ctx)
	if err != nil {
		result.Status = models.StatusError
		result.Detail = fmt.Sprintf("browser startup failed: %v", err)
		result.CompletedAt = time.Now()
		return result
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.WithError(err).Warn("Browser close failed")
		}
	}()

	solver := captcha.NewSolver(r.engine, r.logger)
	session := portal.NewSession(browser, solver, r.config, r.logger)

	outcome, err := session.Login(ctx, models.Credentials{
		PIN:      company.PIN(),
		Password: *company.Password,
	})
	if err != nil {
		result.Status = models.StatusError
		result.Detail = err.Error()
		result.CompletedAt = time.Now()
		return result
	}

	result.Status = models.StatusForOutcome(outcome)
	if outcome != models.LoginSuccess {
		result.CompletedAt = time.Now()
		log.WithField("outcome", outcome.String()).Info("Login did not succeed")
		return result
	}

	if err := ex.Extract(ctx, session, company, &result); err != nil {
		result.Status = models.StatusError
		result.Detail = err.Error()
	}

	// Logout is best effort. A stuck session is logged and abandoned;
	// the deferred Close discards the window either way.
	if err := session.Logout(ctx); err != nil {
		log.WithError(err).Warn("Logout failed, discarding browser")
	}

	result.CompletedAt = time.Now()
	return result
}

// Registry maps task names to extractors.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates a registry over the given extractors.
func NewRegistry(extractors ...Extractor) *Registry {
	reg := &Registry{extractors: make(map[string]Extractor)}
	for _, ex := range extractors {
		reg.extractors[ex.Name()] = ex
	}
	return reg
}

// Get returns the extractor registered under name.
func (r *Registry) Get(name string) (Extractor, bool) {
	ex, ok := r.extractors[name]
	return ex, ok
}

// Names lists registered task names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
