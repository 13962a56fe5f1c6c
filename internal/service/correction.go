package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"smena/internal/ledger"
	"smena/internal/metrics"
	"smena/internal/models"
)

// Actor identifies the administrator performing a manual correction.
type Actor struct {
	UserID string
	Role   string
}

// ManualEntryInput carries the fields of a manual correction. Nil pointer
// fields are left untouched on an existing entry; a pointer to zero clears
// the field (clearing ClockOutAt reopens the entry).
type ManualEntryInput struct {
	RestaurantID string
	StaffID      string
	Day          string // "2006-01-02" in the business timezone
	ClockInAt    *int64
	ClockOutAt   *int64
	Note         *string
	HourlyRate   *float64
}

// UpsertResult is the typed outcome of a manual correction.
type UpsertResult struct {
	OK    bool
	Entry *models.ShiftEntry
	Error string
	Open  *models.ShiftEntry
}

// RateSetter applies hourly-rate updates. Satisfied by rates.Store.
type RateSetter interface {
	Set(ctx context.Context, staffID string, rate float64) error
}

// CorrectionService lets a manager fix an entry for an arbitrary day with an
// audit stamp. Corrections preserve every invariant the automatic clock
// operations preserve: the single commit carries the entry, its index
// memberships and any open-pointer transition together.
type CorrectionService struct {
	store  ledger.Store
	rates  RateSetter
	bus    EventBus
	loc    *time.Location
	logger *zerolog.Logger
}

// NewCorrectionService constructs a correction service.
func NewCorrectionService(store ledger.Store, rates RateSetter, bus EventBus, loc *time.Location, logger *zerolog.Logger) *CorrectionService {
	return &CorrectionService{store: store, rates: rates, bus: bus, loc: loc, logger: logger}
}

// UpsertManualEntry creates or edits the staff member's entry for a day.
// Producing or keeping an open entry while a different shift is already
// open is rejected with conflict_open and nothing is written.
func (s *CorrectionService) UpsertManualEntry(ctx context.Context, in ManualEntryInput, actor Actor, now time.Time) (*UpsertResult, error) {
	if in.RestaurantID == "" || in.StaffID == "" || in.Day == "" {
		return nil, fmt.Errorf("manual entry: restaurant id, staff id and day are required")
	}
	if _, err := time.ParseInLocation("2006-01-02", in.Day, s.loc); err != nil {
		return nil, fmt.Errorf("manual entry: invalid day %q: %w", in.Day, err)
	}

	existing, err := s.findDayEntry(ctx, in.StaffID, in.Day)
	if err != nil {
		return nil, err
	}

	next, err := s.applyInput(existing, in, actor, now)
	if err != nil {
		return nil, err
	}

	// Administrator edits must not break the single-open-shift rule.
	openID, err := s.store.GetOpenPointer(ctx, in.StaffID)
	if err != nil {
		return nil, err
	}
	if next.IsOpen() && openID != "" && openID != next.ID {
		open, err := s.store.GetEntry(ctx, openID)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
		metrics.IncCorrection(ConflictOpenExists)
		return &UpsertResult{Error: ConflictOpenExists, Open: open}, nil
	}

	tx, err := s.buildTx(existing, next, openID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Commit(ctx, *tx); err != nil {
		if errors.Is(err, ledger.ErrTxConflict) {
			metrics.IncCommitConflict()
			return s.resolveUpsertConflict(ctx, in.StaffID, next.ID)
		}
		return nil, err
	}

	// The rate update rides along but is not part of the atomic commit.
	if in.HourlyRate != nil && s.rates != nil {
		if err := s.rates.Set(ctx, in.StaffID, *in.HourlyRate); err != nil {
			s.logger.Error().Err(err).Str("staff_id", in.StaffID).Msg("rate update after correction failed")
			return nil, fmt.Errorf("update hourly rate: %w", err)
		}
	}

	metrics.IncCorrection("ok")
	s.publish(next)
	s.logger.Info().Str("staff_id", in.StaffID).Str("entry_id", next.ID).Str("day", in.Day).
		Str("edited_by", actor.UserID).Msg("manual correction applied")
	return &UpsertResult{OK: true, Entry: next}, nil
}

// findDayEntry scans the staff-day index and selects the entry whose
// clock-in falls on day.
func (s *CorrectionService) findDayEntry(ctx context.Context, staffID, day string) (*models.ShiftEntry, error) {
	ids, err := s.store.DayEntryIDs(ctx, ledger.StaffDayKey(staffID, day))
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		entry, err := s.store.GetEntry(ctx, id)
		if errors.Is(err, ledger.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if entry.DayKey(s.loc) == day {
			return entry, nil
		}
	}
	return nil, nil
}

// applyInput produces the post-edit entry, validating the result.
func (s *CorrectionService) applyInput(existing *models.ShiftEntry, in ManualEntryInput, actor Actor, now time.Time) (*models.ShiftEntry, error) {
	ms := now.UnixMilli()

	var next models.ShiftEntry
	if existing != nil {
		next = *existing
	} else {
		if in.ClockInAt == nil || *in.ClockInAt == 0 {
			return nil, fmt.Errorf("manual entry: clock-in time is required for a new entry")
		}
		next = models.ShiftEntry{
			ID:           uuid.NewString(),
			RestaurantID: in.RestaurantID,
			StaffID:      in.StaffID,
			Source:       models.Source(actor.Role),
			CreatedAt:    ms,
		}
	}

	if in.ClockInAt != nil {
		next.ClockInAt = *in.ClockInAt
	}
	if in.ClockOutAt != nil {
		next.ClockOutAt = *in.ClockOutAt
	}
	if in.Note != nil {
		next.Note = *in.Note
	}
	next.UpdatedAt = ms
	next.EditedBy = &models.EditStamp{UserID: actor.UserID, Role: actor.Role, At: ms}

	if next.ClockInAt == 0 {
		return nil, fmt.Errorf("manual entry: entry cannot exist without a clock-in time")
	}
	if next.ClockOutAt != 0 && next.ClockOutAt < next.ClockInAt {
		return nil, fmt.Errorf("manual entry: clock-out before clock-in")
	}
	if got := next.DayKey(s.loc); got != in.Day {
		return nil, fmt.Errorf("manual entry: clock-in falls on %s, not %s", got, in.Day)
	}
	return &next, nil
}

// buildTx assembles the single conditional commit for a correction,
// including the open-pointer transition when the edit moves the entry
// between open and closed.
func (s *CorrectionService) buildTx(existing, next *models.ShiftEntry, openID string) (*ledger.Tx, error) {
	var tx ledger.Tx

	entryKey := ledger.EntryKey(next.ID)
	if existing != nil {
		oldDoc, err := ledger.EncodeEntry(existing)
		if err != nil {
			return nil, err
		}
		tx.RequireEquals(entryKey, oldDoc)
	} else {
		tx.RequireAbsent(entryKey)
	}
	if err := tx.SetEntry(next); err != nil {
		return nil, err
	}

	day := next.DayKey(s.loc)
	tx.IndexAdd(ledger.RestaurantDayKey(next.RestaurantID, day), next.ClockInAt, next.ID)
	tx.IndexAdd(ledger.StaffDayKey(next.StaffID, day), next.ClockInAt, next.ID)

	wasOpen := existing != nil && existing.IsOpen()
	openKey := ledger.OpenKey(next.StaffID)
	switch {
	case next.IsOpen() && !wasOpen:
		// Opening (or reopening a closed entry): claim the pointer.
		tx.RequireAbsent(openKey)
		tx.Set(openKey, next.ID)
	case !next.IsOpen() && wasOpen:
		// Closing: release the pointer it holds.
		tx.RequireEquals(openKey, next.ID)
		tx.Del(openKey)
	case next.IsOpen() && wasOpen:
		if openID == next.ID {
			// Still open: pin the pointer so a racing clock-out loses cleanly.
			tx.RequireEquals(openKey, next.ID)
		} else {
			// Open entry whose pointer was lost: restore it.
			tx.RequireAbsent(openKey)
			tx.Set(openKey, next.ID)
		}
	default:
		// Closed before and after: the pointer is not involved, but it must
		// not have moved onto this entry concurrently.
		if openID == "" {
			tx.RequireAbsent(openKey)
		}
	}
	return &tx, nil
}

// resolveUpsertConflict maps a lost commit onto a typed result when the
// employee's open shift caused the race.
func (s *CorrectionService) resolveUpsertConflict(ctx context.Context, staffID, entryID string) (*UpsertResult, error) {
	openID, err := s.store.GetOpenPointer(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if openID != "" && openID != entryID {
		open, err := s.store.GetEntry(ctx, openID)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return nil, err
		}
		metrics.IncCorrection(ConflictOpenExists)
		return &UpsertResult{Error: ConflictOpenExists, Open: open}, nil
	}
	metrics.IncCorrection("conflict")
	return nil, ledger.ErrTxConflict
}

func (s *CorrectionService) publish(entry *models.ShiftEntry) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(EventCorrected, entry); err != nil {
		s.logger.Warn().Err(err).Str("event", EventCorrected).Msg("publish event failed")
	}
}
