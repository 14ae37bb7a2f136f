package portal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/captcha"
	"github.com/taxtrack/itax-automation/internal/config"
	"github.com/taxtrack/itax-automation/internal/models"
	"github.com/taxtrack/itax-automation/internal/services"
)

var (
	// ErrFeatureNotFound means no menu locator strategy could reach the
	// requested portal feature.
	ErrFeatureNotFound = errors.New("portal feature not found")

	// ErrSessionStuck means logout could not return the portal to the
	// login page. The browser must be discarded, not reused.
	ErrSessionStuck = errors.New("portal session stuck")
)

// Login page selectors.
const (
	selLoginPIN      = `input[name="logid"]`
	selLoginContinue = `#nextBtn`
	selPassword      = `input[name="xxZTT9p2wQ"]`
	selCaptchaImage  = `#captcha_img`
	selCaptchaInput  = `input[name="captcahText"]`
	selLoginSubmit   = `#loginButton`
	selMainMenu      = `#menu_top`
	selLogoutLink    = `a[href*="logOutUser"]`
)

// Failure markers in the post-submit page text.
const (
	markerWrongCaptcha    = "Wrong result of the arithmetic operation"
	markerInvalidLogin    = "Invalid Login Id or Password"
	markerPasswordExpired = "password has expired"
	markerAccountLocked   = "account has been locked"
)

// Session drives one authenticated portal visit over a single browser.
// Login, menu navigation and logout all happen here; what to do once a
// feature page is open belongs to the task layer.
type Session struct {
	browser services.Browser
	solver  *captcha.Solver
	config  config.PortalConfig
	logger  *logrus.Logger

	loggedIn bool
}

// NewSession wraps a browser in a portal session.
func NewSession(browser services.Browser, solver *captcha.Solver, cfg config.PortalConfig, logger *logrus.Logger) *Session {
	return &Session{
		browser: browser,
		solver:  solver,
		config:  cfg,
		logger:  logger,
	}
}

// Browser exposes the underlying browser to task code.
func (s *Session) Browser() services.Browser {
	return s.browser
}

// Login authenticates with the portal. A rejected captcha is retried
// up to MaxCaptchaAttempts times, and each retry starts over from the
// login page: the portal's rejection page does not keep the password
// form around, so the PIN step is replayed to get a fresh captcha.
// Every other outcome is terminal and reported as-is. The returned
// outcome is meaningful even when err is nil: wrong credentials are an
// outcome, not an error.
func (s *Session) Login(ctx context.Context, creds models.Credentials) (models.LoginOutcome, error) {
	loginCtx, cancel := context.WithTimeout(ctx, s.config.LoginTimeout)
	defer cancel()

	outcome := models.LoginUnknown
	for attempt := 1; attempt <= s.config.MaxCaptchaAttempts; attempt++ {
		if err := s.openLoginForm(loginCtx, creds.PIN); err != nil {
			return models.LoginUnknown, err
		}

		var err error
		outcome, err = s.submitPassword(loginCtx, creds.Password)
		if err != nil {
			return models.LoginUnknown, err
		}

		s.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"outcome": outcome.String(),
		}).Debug("Login attempt finished")

		if !outcome.Retryable() {
			break
		}
	}

	if outcome == models.LoginSuccess {
		s.loggedIn = true
	}
	return outcome, nil
}

// openLoginForm walks the PIN step until the password form shows.
func (s *Session) openLoginForm(ctx context.Context, pin string) error {
	if err := s.browser.Navigate(ctx, s.config.BaseURL); err != nil {
		return fmt.Errorf("failed to open portal: %w", err)
	}
	if err := s.browser.WaitVisible(ctx, selLoginPIN); err != nil {
		return fmt.Errorf("login page did not load: %w", err)
	}

	if err := s.browser.SendKeys(ctx, selLoginPIN, pin); err != nil {
		return fmt.Errorf("failed to enter PIN: %w", err)
	}
	if err := s.browser.Click(ctx, selLoginContinue); err != nil {
		return fmt.Errorf("failed to continue past PIN step: %w", err)
	}
	if err := s.browser.WaitVisible(ctx, selPassword); err != nil {
		return fmt.Errorf("password step did not load: %w", err)
	}
	return nil
}

// submitPassword runs one password+captcha round and classifies the
// page that comes back.
func (s *Session) submitPassword(ctx context.Context, password string) (models.LoginOutcome, error) {
	if err := s.browser.Clear(ctx, selPassword); err != nil {
		return models.LoginUnknown, fmt.Errorf("failed to clear password field: %w", err)
	}
	if err := s.browser.SendKeys(ctx, selPassword, password); err != nil {
		return models.LoginUnknown, fmt.Errorf("failed to enter password: %w", err)
	}

	if err := s.SolveCaptchaInto(ctx, selCaptchaImage, selCaptchaInput); err != nil {
		if errors.Is(err, captcha.ErrUnparseableCaptcha) {
			// Submit anyway; the portal rejects it as a wrong answer
			// and serves a fresh challenge for the next attempt.
			s.logger.Debug("Captcha did not parse, submitting blind")
		} else {
			return models.LoginUnknown, err
		}
	}

	if err := s.browser.Click(ctx, selLoginSubmit); err != nil {
		return models.LoginUnknown, fmt.Errorf("failed to submit login: %w", err)
	}

	return s.detectOutcome(ctx), nil
}

// SolveCaptchaInto screenshots the captcha element, solves it and types
// the answer into the given input. Feature pages carry their own
// captchas, so tasks reuse this beyond login.
func (s *Session) SolveCaptchaInto(ctx context.Context, imageSelector, inputSelector string) error {
	if err := s.browser.WaitVisible(ctx, imageSelector); err != nil {
		return fmt.Errorf("captcha image not visible: %w", err)
	}

	image, err := s.browser.Screenshot(ctx, imageSelector)
	if err != nil {
		return fmt.Errorf("failed to capture captcha: %w", err)
	}

	answer, err := s.solver.Solve(image)
	if err != nil {
		return err
	}

	if err := s.browser.Clear(ctx, inputSelector); err != nil {
		return fmt.Errorf("failed to clear captcha input: %w", err)
	}
	if err := s.browser.SendKeys(ctx, inputSelector, strconv.Itoa(answer)); err != nil {
		return fmt.Errorf("failed to enter captcha answer: %w", err)
	}
	return nil
}

// detectOutcome polls the page after a login submit until one of the
// known outcomes shows up or the detector window closes. An unreadable
// or unrecognized page degrades to LoginTimeout instead of failing, so
// one slow load never kills a batch.
func (s *Session) detectOutcome(ctx context.Context) models.LoginOutcome {
	deadline := time.Now().Add(s.config.DetectorTimeout)

	for {
		if present, err := s.browser.Exists(ctx, selMainMenu); err == nil && present {
			return models.LoginSuccess
		}

		html, err := s.browser.HTML(ctx)
		if err == nil {
			switch {
			case strings.Contains(html, markerWrongCaptcha):
				return models.LoginWrongCaptcha
			case strings.Contains(html, markerInvalidLogin):
				return models.LoginInvalidCredentials
			case strings.Contains(html, markerPasswordExpired):
				return models.LoginPasswordExpired
			case strings.Contains(html, markerAccountLocked):
				return models.LoginAccountLocked
			}
		}

		if time.Now().After(deadline) {
			return models.LoginTimeout
		}

		select {
		case <-ctx.Done():
			return models.LoginTimeout
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// Logout ends the portal session. Best effort: a failed logout is
// reported as ErrSessionStuck and the caller discards the browser, it
// never retries on the same window.
func (s *Session) Logout(ctx context.Context) error {
	if !s.loggedIn {
		return nil
	}
	s.loggedIn = false

	logoutCtx, cancel := context.WithTimeout(ctx, s.config.DetectorTimeout)
	defer cancel()

	if err := s.browser.Click(logoutCtx, selLogoutLink); err != nil {
		return fmt.Errorf("%w: logout click failed: %v", ErrSessionStuck, err)
	}
	if err := s.browser.WaitVisible(logoutCtx, selLoginPIN); err != nil {
		return fmt.Errorf("%w: login page did not return: %v", ErrSessionStuck, err)
	}

	s.logger.Debug("Logged out")
	return nil
}
