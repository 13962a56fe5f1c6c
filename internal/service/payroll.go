package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"smena/internal/models"
)

// PayrollRow is one employee's monthly rollup.
type PayrollRow struct {
	StaffID         string  `json:"staff_id"`
	Minutes         int64   `json:"minutes"`
	HourlyRate      float64 `json:"hourly_rate"`
	GrossPay        float64 `json:"gross_pay"`
	IncompleteCount int     `json:"incomplete_count"`
}

// PayrollTotals is the restaurant-wide rollup.
type PayrollTotals struct {
	Minutes         int64   `json:"minutes"`
	GrossPay        float64 `json:"gross_pay"`
	IncompleteCount int     `json:"incomplete_count"`
}

// PayrollReport is the monthly payroll derived from the ledger. Incomplete
// entries, still open or closed before they opened, contribute nothing to
// totals and are listed for a manager to fix.
type PayrollReport struct {
	RestaurantID      string               `json:"restaurant_id"`
	Month             string               `json:"month"`
	PerStaff          []PayrollRow         `json:"per_staff"`
	Totals            PayrollTotals        `json:"totals"`
	IncompleteEntries []*models.ShiftEntry `json:"incomplete_entries"`
}

// ComputePayrollForMonth is a pure rollup over its inputs. Every staff id
// from staff gets a row even with zero minutes; staff appearing only in the
// entries are added too. Rates missing from rates count as zero.
func ComputePayrollForMonth(restaurantID, month string, staff []string, rates map[string]float64, entries []*models.ShiftEntry) *PayrollReport {
	minutes := make(map[string]int64)
	incomplete := make(map[string]int)
	seen := make(map[string]bool, len(staff))
	for _, id := range staff {
		seen[id] = true
	}

	report := &PayrollReport{RestaurantID: restaurantID, Month: month}
	for _, e := range entries {
		seen[e.StaffID] = true
		if e.IsOpen() || e.IsMalformed() {
			incomplete[e.StaffID]++
			report.IncompleteEntries = append(report.IncompleteEntries, e)
			continue
		}
		minutes[e.StaffID] += e.Minutes()
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rate := rates[id]
		row := PayrollRow{
			StaffID:         id,
			Minutes:         minutes[id],
			HourlyRate:      rate,
			GrossPay:        float64(minutes[id]) / 60.0 * rate,
			IncompleteCount: incomplete[id],
		}
		report.PerStaff = append(report.PerStaff, row)
		report.Totals.Minutes += row.Minutes
		report.Totals.GrossPay += row.GrossPay
		report.Totals.IncompleteCount += row.IncompleteCount
	}
	return report
}

// RateGetter reads hourly rates. Satisfied by rates.Store.
type RateGetter interface {
	GetMany(ctx context.Context, staffIDs []string) (map[string]float64, error)
}

// PayrollService gathers a month's ledger entries through the day index and
// joins them with the rate store.
type PayrollService struct {
	query  *QueryService
	rates  RateGetter
	logger *zerolog.Logger
}

// NewPayrollService constructs a payroll service.
func NewPayrollService(query *QueryService, rates RateGetter, logger *zerolog.Logger) *PayrollService {
	return &PayrollService{query: query, rates: rates, logger: logger}
}

// BuildMonthReport computes the payroll report for a restaurant and month
// ("2006-01"). staff lists the employees that must appear in the report
// even without entries.
func (s *PayrollService) BuildMonthReport(ctx context.Context, restaurantID, month string, staff []string) (*PayrollReport, error) {
	if restaurantID == "" {
		return nil, fmt.Errorf("payroll: restaurant id is required")
	}
	entries, err := s.query.CollectMonthEntries(ctx, restaurantID, month)
	if err != nil {
		return nil, fmt.Errorf("payroll %s %s: %w", restaurantID, month, err)
	}

	seen := make(map[string]bool, len(staff))
	ids := append([]string(nil), staff...)
	for _, id := range staff {
		seen[id] = true
	}
	for _, e := range entries {
		if !seen[e.StaffID] {
			seen[e.StaffID] = true
			ids = append(ids, e.StaffID)
		}
	}

	rates, err := s.rates.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("payroll %s %s: load rates: %w", restaurantID, month, err)
	}

	report := ComputePayrollForMonth(restaurantID, month, ids, rates, entries)
	s.logger.Info().Str("restaurant_id", restaurantID).Str("month", month).
		Int("staff", len(report.PerStaff)).Int("incomplete", report.Totals.IncompleteCount).
		Msg("payroll report built")
	return report, nil
}
