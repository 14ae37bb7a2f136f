package captcha

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"
)

// ErrUnparseableCaptcha is returned when the OCR text cannot be read as
// a two-operand arithmetic challenge. The caller decides whether to
// retry with a fresh screenshot; this package never retries on its own.
var ErrUnparseableCaptcha = errors.New("unparseable captcha")

var digitRuns = regexp.MustCompile(`\d+`)

// OCREngine extracts raw text from a captcha image file.
type OCREngine interface {
	Text(imagePath string) (string, error)
}

// TesseractEngine runs gosseract over a single image.
type TesseractEngine struct {
	tessdataPrefix string
}

// NewTesseractEngine creates an OCR engine with the given tessdata path.
func NewTesseractEngine(tessdataPrefix string) *TesseractEngine {
	return &TesseractEngine{tessdataPrefix: tessdataPrefix}
}

// Text runs OCR over the image at path.
func (e *TesseractEngine) Text(imagePath string) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if e.tessdataPrefix != "" {
		client.SetTessdataPrefix(e.tessdataPrefix)
	}
	if err := client.SetLanguage("eng"); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return text, nil
}

// Solver turns an arithmetic captcha image into its numeric answer.
type Solver struct {
	engine OCREngine
	logger *logrus.Logger
}

// NewSolver creates a new captcha solver.
func NewSolver(engine OCREngine, logger *logrus.Logger) *Solver {
	return &Solver{engine: engine, logger: logger}
}

// Solve writes the image to a temp file scoped to this attempt, runs
// OCR over it and parses the arithmetic expression.
func (s *Solver) Solve(image []byte) (int, error) {
	tempFile, err := os.CreateTemp("", "captcha-*.png")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(image); err != nil {
		tempFile.Close()
		return 0, fmt.Errorf("failed to write captcha image: %w", err)
	}
	tempFile.Close()

	text, err := s.engine.Text(tempFile.Name())
	if err != nil {
		return 0, fmt.Errorf("captcha OCR failed: %w", err)
	}

	result, err := ParseArithmetic(text)
	if err != nil {
		s.logger.WithField("ocr_text", text).Debug("Captcha text did not parse")
		return 0, err
	}

	s.logger.WithFields(logrus.Fields{
		"ocr_text": strings.TrimSpace(text),
		"result":   result,
	}).Debug("Captcha solved")
	return result, nil
}

// ParseArithmetic reads an OCR'd arithmetic challenge and computes its
// answer. The captcha font leaves one or two stray glyphs at the end of
// the OCR text; those are stripped before the digit scan. Only addition
// and subtraction exist in this captcha scheme; any other shape fails
// with ErrUnparseableCaptcha rather than guessing.
func ParseArithmetic(text string) (int, error) {
	cleaned := stripTrailingNoise(strings.TrimSpace(text))

	numbers := digitRuns.FindAllString(cleaned, -1)
	if len(numbers) < 2 {
		return 0, fmt.Errorf("%w: found %d numeric groups in %q", ErrUnparseableCaptcha, len(numbers), text)
	}

	a, err := strconv.Atoi(numbers[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnparseableCaptcha, err)
	}
	b, err := strconv.Atoi(numbers[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnparseableCaptcha, err)
	}

	switch {
	case strings.Contains(cleaned, "+"):
		return a + b, nil
	case strings.Contains(cleaned, "-"):
		return a - b, nil
	default:
		return 0, fmt.Errorf("%w: no supported operator in %q", ErrUnparseableCaptcha, text)
	}
}

// stripTrailingNoise drops up to two trailing characters that are
// neither digits nor operators.
func stripTrailingNoise(text string) string {
	for i := 0; i < 2 && text != ""; i++ {
		last := text[len(text)-1]
		if last >= '0' && last <= '9' || last == '+' || last == '-' {
			break
		}
		text = strings.TrimSpace(text[:len(text)-1])
	}
	return text
}
