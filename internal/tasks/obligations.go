package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/portal"
)

// TaskObligationCheck queries the PIN checker for a company's
// registered tax obligations.
const TaskObligationCheck = "obligation-check"

// PIN checker page selectors.
const (
	selCheckerPIN          = `#vo\.pinNo`
	selCheckerCaptchaImage = `#captcha_img_pinchecker`
	selCheckerCaptchaInput = `input[name="checkerCaptcha"]`
	selCheckerConsult      = `#consultBtn`
	selCheckerResults      = `#obligationResultTbl`
)

// ObligationCheck runs the portal's PIN checker and reads the
// obligations table. Every known obligation type gets an entry in the
// result; types absent from the portal's table carry the "No
// obligation" sentinel in status and both dates.
type ObligationCheck struct{}

// NewObligationCheck creates the obligation lookup task.
func NewObligationCheck() *ObligationCheck {
	return &ObligationCheck{}
}

func (o *ObligationCheck) Name() string { return TaskObligationCheck }

func (o *ObligationCheck) Precheck(models.Company) (string, string) { return "", "" }

func (o *ObligationCheck) Extract(ctx context.Context, session *portal.Session, company models.Company, result *models.ExtractionResult) error {
	if err := session.OpenMenu(ctx, portal.MenuObligationChecker); err != nil {
		return err
	}

	browser := session.Browser()
	if err := browser.SendKeys(ctx, selCheckerPIN, company.PIN()); err != nil {
		return fmt.Errorf("failed to enter PIN: %w", err)
	}

	// The checker page carries its own captcha, separate from login.
	if err := session.SolveCaptchaInto(ctx, selCheckerCaptchaImage, selCheckerCaptchaInput); err != nil {
		return fmt.Errorf("checker captcha failed: %w", err)
	}

	if err := session.ClickWithRetry(ctx, selCheckerConsult, selCheckerResults); err != nil {
		return fmt.Errorf("consult never produced results: %w", err)
	}

	html, err := browser.HTML(ctx)
	if err != nil {
		return fmt.Errorf("failed to read results page: %w", err)
	}

	obligations, err := parseObligations(html)
	if err != nil {
		return err
	}

	result.Obligations = obligations
	return nil
}

// parseObligations reads the obligations table out of the results page.
// The result carries exactly the known obligation types: rows the
// portal shows under any other name are ignored, and known types absent
// from the table carry the sentinel.
func parseObligations(html string) (map[string]models.ObligationStatus, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	obligations := make(map[string]models.ObligationStatus, len(models.KnownObligations))
	for _, name := range models.KnownObligations {
		obligations[name] = models.ObligationStatus{
			Status:        models.NoObligation,
			EffectiveFrom: models.NoObligation,
			EffectiveTo:   models.NoObligation,
		}
	}

	doc.Find(selCheckerResults + " tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Text())
		if _, known := obligations[name]; !known {
			return
		}
		obligations[name] = models.ObligationStatus{
			Status:        strings.TrimSpace(cells.Eq(1).Text()),
			EffectiveFrom: strings.TrimSpace(cells.Eq(2).Text()),
			EffectiveTo:   effectiveTo(cells.Eq(3).Text()),
		}
	})

	return obligations, nil
}

// effectiveTo normalizes the open-ended date cell. Active obligations
// have no end date on the portal.
func effectiveTo(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "-" {
		return "Active"
	}
	return trimmed
}
