package export

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smena/internal/service"
)

type fakeReporter struct {
	months []string
}

func (f *fakeReporter) BuildMonthReport(_ context.Context, restaurantID, month string, _ []string) (*service.PayrollReport, error) {
	f.months = append(f.months, month)
	report := sampleReport()
	report.RestaurantID = restaurantID
	return report, nil
}

func TestService_ExportMonth(t *testing.T) {
	dir := t.TempDir()
	logger := zerolog.New(io.Discard)
	reporter := &fakeReporter{}

	svc := NewService(Config{
		ReportsDir:  filepath.Join(dir, "reports"),
		Restaurants: []string{"r1", "r2"},
		Location:    msk,
	}, reporter, NewExcelizeWriter, &logger)

	require.NoError(t, svc.ExportMonth(context.Background(), "2026-02"))

	assert.Equal(t, []string{"2026-02", "2026-02"}, reporter.months)

	info, err := os.Stat(filepath.Join(dir, "reports", "payroll_2026-02.xlsx"))
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}
