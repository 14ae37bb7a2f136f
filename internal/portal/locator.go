package portal

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// MenuTarget names a portal feature reachable from the top menu. The
// portal markup shifts between releases, so each target carries every
// way we know to reach it.
type MenuTarget struct {
	// Name is a human-readable feature name used in logs and errors.
	Name string

	// LinkSelector is a direct CSS selector for the menu link.
	LinkSelector string

	// LinkText matches the link by its visible text when the selector
	// misses.
	LinkText string

	// Script invokes the portal's own JavaScript navigation handler as
	// a last resort.
	Script string

	// LandingSelector must become visible once the feature page loads.
	LandingSelector string
}

// Known portal features.
var (
	MenuObligationChecker = MenuTarget{
		Name:            "PIN obligation checker",
		LinkSelector:    `a[href*="PINChecker"]`,
		LinkText:        "PIN Checker",
		Script:          `submitForPINChecker()`,
		LandingSelector: `#pinCheckerForm`,
	}

	MenuReprintPIN = MenuTarget{
		Name:            "PIN certificate reprint",
		LinkSelector:    `a[href*="ReprintPIN"]`,
		LinkText:        "Reprint PIN Certificate",
		Script:          `reprintCertificate('PIN')`,
		LandingSelector: `#reprintForm`,
	}

	MenuReprintTCC = MenuTarget{
		Name:            "tax compliance certificate reprint",
		LinkSelector:    `a[href*="ReprintTCC"]`,
		LinkText:        "Reprint TCC",
		Script:          `reprintCertificate('TCC')`,
		LandingSelector: `#reprintForm`,
	}

	MenuGeneralLedger = MenuTarget{
		Name:            "general ledger",
		LinkSelector:    `a[href*="LedgerReport"]`,
		LinkText:        "General Ledger",
		Script:          `openLedgerReport()`,
		LandingSelector: `#ledgerForm`,
	}

	MenuPayrollStatutory = MenuTarget{
		Name:            "payroll statutory data",
		LinkSelector:    `a[href*="StatutoryPayroll"]`,
		LinkText:        "Statutory Payroll Data",
		Script:          `openStatutoryPayroll()`,
		LandingSelector: `#statutoryForm`,
	}
)

// OpenMenu reaches a portal feature by trying each locator strategy in
// order: direct selector, link text match, then the portal's own
// JavaScript handler. A strategy counts only when the landing page
// actually loads. All strategies failing means the account does not
// have the feature, which callers surface as ErrFeatureNotFound.
func (s *Session) OpenMenu(ctx context.Context, target MenuTarget) error {
	strategies := []struct {
		name string
		run  func(context.Context) error
	}{
		{"selector", func(ctx context.Context) error {
			if target.LinkSelector == "" {
				return fmt.Errorf("no selector configured")
			}
			return s.browser.Click(ctx, target.LinkSelector)
		}},
		{"link-text", func(ctx context.Context) error {
			if target.LinkText == "" {
				return fmt.Errorf("no link text configured")
			}
			return s.clickByText(ctx, target.LinkText)
		}},
		{"script", func(ctx context.Context) error {
			if target.Script == "" {
				return fmt.Errorf("no script configured")
			}
			_, err := s.browser.Evaluate(ctx, target.Script)
			return err
		}},
	}

	for _, strategy := range strategies {
		if err := strategy.run(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{
				"feature":  target.Name,
				"strategy": strategy.name,
				"error":    err.Error(),
			}).Debug("Menu strategy failed")
			continue
		}

		if err := s.waitLanding(ctx, target.LandingSelector); err != nil {
			s.logger.WithFields(logrus.Fields{
				"feature":  target.Name,
				"strategy": strategy.name,
			}).Debug("Menu strategy clicked but feature page did not load")
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"feature":  target.Name,
			"strategy": strategy.name,
		}).Debug("Feature page opened")
		return nil
	}

	return fmt.Errorf("%w: %s", ErrFeatureNotFound, target.Name)
}

// ClickWithRetry clicks a selector repeatedly until the landing
// selector shows up. Some portal buttons silently swallow the first
// clicks while the page's scripts are still attaching handlers.
func (s *Session) ClickWithRetry(ctx context.Context, selector, landingSelector string) error {
	var lastErr error
	for attempt := 1; attempt <= s.config.MaxMenuClickRetry; attempt++ {
		if err := s.browser.Click(ctx, selector); err != nil {
			lastErr = err
		} else if err := s.waitLanding(ctx, landingSelector); err != nil {
			lastErr = err
		} else {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("click on %s never took effect after %d attempts: %w",
		selector, s.config.MaxMenuClickRetry, lastErr)
}

func (s *Session) clickByText(ctx context.Context, text string) error {
	script := fmt.Sprintf(`(() => {
		const links = document.querySelectorAll("a");
		for (const link of links) {
			if (link.textContent.trim() === %q) { link.click(); return true; }
		}
		return false;
	})()`, text)

	result, err := s.browser.Evaluate(ctx, script)
	if err != nil {
		return err
	}
	if clicked, ok := result.(bool); !ok || !clicked {
		return fmt.Errorf("no link with text %q", text)
	}
	return nil
}

func (s *Session) waitLanding(ctx context.Context, selector string) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.config.DetectorTimeout)
	defer cancel()
	return s.browser.WaitVisible(waitCtx, selector)
}
