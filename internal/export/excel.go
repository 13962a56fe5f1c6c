package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"smena/internal/models"
	"smena/internal/service"
)

// ExcelizeWriter implements WorkbookWriter using the excelize library.
// Rows are appended top to bottom on the active sheet.
type ExcelizeWriter struct {
	file    *excelize.File
	sheet   string
	nextRow int
}

// NewExcelizeWriter creates a new workbook writer.
func NewExcelizeWriter() WorkbookWriter {
	return &ExcelizeWriter{file: excelize.NewFile()}
}

// AddSheet adds a sheet with the given name and makes it active.
func (w *ExcelizeWriter) AddSheet(name string) error {
	// Excel caps sheet names at 31 chars.
	if len(name) > 31 {
		name = name[:31]
	}

	if w.sheet == "" {
		w.file.SetSheetName("Sheet1", name)
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheet = name
	w.nextRow = 1
	return nil
}

func (w *ExcelizeWriter) appendRow(values []interface{}) (row int, err error) {
	if w.sheet == "" {
		return 0, fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.nextRow)
	if err != nil {
		return 0, err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return 0, fmt.Errorf("write row %d on %s: %w", w.nextRow, w.sheet, err)
	}
	row = w.nextRow
	w.nextRow++
	return row, nil
}

// WriteHeader writes bold column headers to the current sheet.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	values := make([]interface{}, len(columns))
	for i, col := range columns {
		values[i] = col
	}
	row, err := w.appendRow(values)
	if err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(columns), row)
		_ = w.file.SetCellStyle(w.sheet, start, end, style)
	}
	return nil
}

// WriteRow writes a data row to the current sheet.
func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	_, err := w.appendRow(row)
	return err
}

// Save writes the workbook to w.
func (w *ExcelizeWriter) Save(out io.Writer) error {
	return w.file.Write(out)
}

// SaveToFile writes the workbook to disk via Save.
func (w *ExcelizeWriter) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook %s: %w", path, err)
	}
	defer f.Close()
	if err := w.Save(f); err != nil {
		return fmt.Errorf("write workbook %s: %w", path, err)
	}
	return f.Close()
}

// WriteReport renders one payroll report as a sheet: per-staff rows, a
// totals row and the incomplete entries that need fixing.
func WriteReport(w WorkbookWriter, report *service.PayrollReport, loc *time.Location) error {
	if err := w.AddSheet(report.RestaurantID); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Staff", "Minutes", "Hourly rate", "Gross pay", "Incomplete"}); err != nil {
		return err
	}
	for _, row := range report.PerStaff {
		if err := w.WriteRow([]interface{}{row.StaffID, row.Minutes, row.HourlyRate, row.GrossPay, row.IncompleteCount}); err != nil {
			return err
		}
	}
	if err := w.WriteRow([]interface{}{"TOTAL", report.Totals.Minutes, "", report.Totals.GrossPay, report.Totals.IncompleteCount}); err != nil {
		return err
	}

	if len(report.IncompleteEntries) == 0 {
		return nil
	}
	if err := w.WriteRow([]interface{}{}); err != nil {
		return err
	}
	if err := w.WriteHeader([]string{"Incomplete entry", "Staff", "Day", "Clock in"}); err != nil {
		return err
	}
	for _, e := range report.IncompleteEntries {
		clockIn := time.UnixMilli(e.ClockInAt).In(loc).Format(time.RFC3339)
		if err := w.WriteRow([]interface{}{e.ID, e.StaffID, models.DayKeyFor(e.ClockInAt, loc), clockIn}); err != nil {
			return err
		}
	}
	return nil
}
