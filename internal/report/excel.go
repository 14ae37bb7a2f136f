package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/taxtrack/itax-automation/internal/models"
)

const sheetName = "Results"

var headers = []string{"ID", "Company", "KRA PIN", "Task", "Status", "Detail", "Completed At"}

// Status fill colors in the report. Matches the register dashboard's
// palette.
var statusColors = map[string]string{
	models.StatusValid:           "C6EFCE",
	models.StatusInvalid:         "FFC7CE",
	models.StatusPasswordExpired: "FFEB9C",
	models.StatusLocked:          "FFC7CE",
	models.StatusPinMissing:      "FFEB9C",
	models.StatusPasswordMissing: "FFEB9C",
	models.StatusBothMissing:     "FFEB9C",
	models.StatusError:           "FFC7CE",
	models.StatusSkipped:         "D9D9D9",
}

// Writer builds the per-run Excel report. The workbook is saved to disk
// after every appended row, so however a run ends the report holds
// every company processed so far.
type Writer struct {
	path    string
	file    *excelize.File
	nextRow int
}

// NewWriter creates the report workbook for one run.
func NewWriter(dir, runID, taskName string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}

	fileName := fmt.Sprintf("%s_%s_%s.xlsx", taskName, time.Now().Format("2006-01-02"), runID)
	path := filepath.Join(dir, fileName)

	file := excelize.NewFile()
	index, err := file.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	file.SetActiveSheet(index)
	if err := file.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	w := &Writer{path: path, file: file, nextRow: 2}
	if err := w.writeHeader(); err != nil {
		return nil, err
	}
	if err := file.SaveAs(path); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return w, nil
}

// Path returns the workbook's location on disk.
func (w *Writer) Path() string {
	return w.path
}

// Append writes one result row and saves the workbook.
func (w *Writer) Append(result models.ExtractionResult) error {
	values := []interface{}{
		result.CompanyID,
		result.CompanyName,
		result.TaxPIN,
		result.TaskName,
		result.Status,
		result.Detail,
		result.CompletedAt.Format("2006-01-02 15:04:05"),
	}

	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, w.nextRow)
		if err != nil {
			return fmt.Errorf("bad cell coordinates: %w", err)
		}
		if err := w.file.SetCellValue(sheetName, cell, value); err != nil {
			return fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}

	if err := w.fillStatus(result.Status); err != nil {
		return err
	}

	w.nextRow++
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Close releases the workbook handle. The file on disk is already
// current; Append saves on every row.
func (w *Writer) Close() error {
	return w.file.Close()
}

func (w *Writer) writeHeader() error {
	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("bad cell coordinates: %w", err)
		}
		if err := w.file.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if err := w.file.SetCellStyle(sheetName, cell, cell, style); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}

	if err := w.file.SetColWidth(sheetName, "A", "G", 22); err != nil {
		return fmt.Errorf("failed to set column widths: %w", err)
	}
	return nil
}

func (w *Writer) fillStatus(status string) error {
	color, ok := statusColors[status]
	if !ok {
		return nil
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
	})
	if err != nil {
		return fmt.Errorf("failed to create status style: %w", err)
	}

	cell, err := excelize.CoordinatesToCellName(5, w.nextRow)
	if err != nil {
		return fmt.Errorf("bad cell coordinates: %w", err)
	}
	if err := w.file.SetCellStyle(sheetName, cell, cell, style); err != nil {
		return fmt.Errorf("failed to style status cell: %w", err)
	}
	return nil
}
