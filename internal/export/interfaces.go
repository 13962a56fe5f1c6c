package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"smena/internal/service"
)

// Reporter builds monthly payroll reports. Satisfied by service.PayrollService.
type Reporter interface {
	BuildMonthReport(ctx context.Context, restaurantID, month string, staff []string) (*service.PayrollReport, error)
}

// WorkbookWriter writes tabular report data to a workbook.
type WorkbookWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to the current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to the current sheet.
	WriteRow(row []interface{}) error

	// Save writes the workbook to w.
	Save(w io.Writer) error

	// SaveToFile writes the workbook to disk.
	SaveToFile(path string) error
}

// Filename returns the workbook filename for a month key ("2006-01").
func Filename(month string) string {
	return fmt.Sprintf("payroll_%s.xlsx", month)
}

// PreviousMonth returns the month key preceding now in loc. Stepping back
// from the first of the month avoids AddDate normalization on the 29th-31st.
func PreviousMonth(now time.Time, loc *time.Location) string {
	now = now.In(loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	return first.AddDate(0, -1, 0).Format("2006-01")
}
