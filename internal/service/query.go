package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"smena/internal/ledger"
	"smena/internal/models"
)

// QueryService rebuilds attendance views from the day indices. It is a pure
// reader: a committed write is visible in the index and the entry together.
type QueryService struct {
	store  ledger.Store
	loc    *time.Location
	logger *zerolog.Logger
}

// NewQueryService constructs a query service.
func NewQueryService(store ledger.Store, loc *time.Location, logger *zerolog.Logger) *QueryService {
	return &QueryService{store: store, loc: loc, logger: logger}
}

// ListByRestaurantDay returns all entries filed under (restaurantID, day),
// ordered by clock-in time ascending.
func (s *QueryService) ListByRestaurantDay(ctx context.Context, restaurantID, day string) ([]*models.ShiftEntry, error) {
	if restaurantID == "" || day == "" {
		return nil, fmt.Errorf("list by restaurant day: restaurant id and day are required")
	}
	return s.listIndex(ctx, ledger.RestaurantDayKey(restaurantID, day))
}

// ListByStaffDay returns all entries filed under (staffID, day), ordered by
// clock-in time ascending.
func (s *QueryService) ListByStaffDay(ctx context.Context, staffID, day string) ([]*models.ShiftEntry, error) {
	if staffID == "" || day == "" {
		return nil, fmt.Errorf("list by staff day: staff id and day are required")
	}
	return s.listIndex(ctx, ledger.StaffDayKey(staffID, day))
}

// CollectMonthEntries gathers a restaurant's entries for every day of a
// month ("2006-01"), the input the payroll rollup works from.
func (s *QueryService) CollectMonthEntries(ctx context.Context, restaurantID, month string) ([]*models.ShiftEntry, error) {
	days, err := models.MonthDays(month, s.loc)
	if err != nil {
		return nil, fmt.Errorf("collect month %s: %w", month, err)
	}
	var all []*models.ShiftEntry
	for _, day := range days {
		entries, err := s.listIndex(ctx, ledger.RestaurantDayKey(restaurantID, day))
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

func (s *QueryService) listIndex(ctx context.Context, indexKey string) ([]*models.ShiftEntry, error) {
	ids, err := s.store.DayEntryIDs(ctx, indexKey)
	if err != nil {
		return nil, err
	}
	entries := make([]*models.ShiftEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := s.store.GetEntry(ctx, id)
		if errors.Is(err, ledger.ErrNotFound) {
			// Index members are non-authoritative; skip danglers.
			s.logger.Warn().Str("entry_id", id).Str("index", indexKey).Msg("dangling index member")
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ClockInAt < entries[j].ClockInAt
	})
	return entries, nil
}
