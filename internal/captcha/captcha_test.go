package captcha

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"simple addition", "7 + 5", 12},
		{"simple subtraction", "9 - 4", 5},
		{"no spaces", "12+3", 15},
		{"trailing equals sign", "7 + 5 =", 12},
		{"trailing noise glyphs", "16 - 9 =?", 7},
		{"leading whitespace", "  3 + 8", 11},
		{"multi digit operands", "24 + 17", 41},
		{"negative result", "3 - 9", -6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseArithmetic(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseArithmeticErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty text", ""},
		{"single number", "42"},
		{"no operator", "7 5"},
		{"multiplication not supported", "7 * 5"},
		{"letters only", "abc def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArithmetic(tt.text)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnparseableCaptcha)
		})
	}
}

type stubEngine struct {
	text string
	err  error
}

func (s *stubEngine) Text(string) (string, error) {
	return s.text, s.err
}

func TestSolverSolve(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	t.Run("solves from engine text", func(t *testing.T) {
		solver := NewSolver(&stubEngine{text: "15 + 4 ="}, logger)
		result, err := solver.Solve([]byte("fake-png"))
		require.NoError(t, err)
		assert.Equal(t, 19, result)
	})

	t.Run("propagates engine failure", func(t *testing.T) {
		solver := NewSolver(&stubEngine{err: errors.New("tesseract crashed")}, logger)
		_, err := solver.Solve([]byte("fake-png"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "captcha OCR failed")
	})

	t.Run("propagates parse failure", func(t *testing.T) {
		solver := NewSolver(&stubEngine{text: "garbage"}, logger)
		_, err := solver.Solve([]byte("fake-png"))
		assert.ErrorIs(t, err, ErrUnparseableCaptcha)
	})
}
