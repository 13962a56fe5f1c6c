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

// Conflict codes carried by typed results. These are expected outcomes of
// races or operator mistakes, not failures.
const (
	ConflictAlreadyOpen   = "already_open"
	ConflictNoOpen        = "no_open"
	ConflictNotFound      = "not_found"
	ConflictAlreadyClosed = "already_closed"
	ConflictOpenExists    = "conflict_open"
)

// Event types published on the bus.
const (
	EventClockIn   = "shift.clock_in"
	EventClockOut  = "shift.clock_out"
	EventCorrected = "shift.corrected"
)

// EventBus publishes domain events. Delivery is best-effort; failures are
// logged and never fail the operation.
type EventBus interface {
	PublishJSON(eventType string, payload interface{}) error
}

// ClockInResult is the typed outcome of a clock-in attempt.
type ClockInResult struct {
	OK          bool
	Entry       *models.ShiftEntry
	Error       string
	OpenEntryID string
}

// ClockOutResult is the typed outcome of a clock-out attempt.
type ClockOutResult struct {
	OK    bool
	Entry *models.ShiftEntry
	Error string
}

// ClockService enforces the single-open-shift rule. The open pointer in the
// ledger is the only synchronization primitive: every invariant-affecting
// write is exactly one conditional commit, and the loser of a race observes
// the winner's committed state instead of retrying.
type ClockService struct {
	store  ledger.Store
	bus    EventBus
	loc    *time.Location
	logger *zerolog.Logger
}

// NewClockService constructs a clock service.
func NewClockService(store ledger.Store, bus EventBus, loc *time.Location, logger *zerolog.Logger) *ClockService {
	return &ClockService{store: store, bus: bus, loc: loc, logger: logger}
}

// ClockIn opens a shift for staffID at now. If a shift is already open the
// result carries the open entry's id and nothing is written.
func (s *ClockService) ClockIn(ctx context.Context, restaurantID, staffID, actingUserID string, source models.Source, now time.Time) (*ClockInResult, error) {
	if restaurantID == "" || staffID == "" {
		return nil, fmt.Errorf("clock in: restaurant and staff ids are required")
	}

	openID, err := s.store.GetOpenPointer(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if openID != "" {
		metrics.IncClockEvent("clock_in", ConflictAlreadyOpen)
		return &ClockInResult{Error: ConflictAlreadyOpen, OpenEntryID: openID}, nil
	}

	ms := now.UnixMilli()
	entry := &models.ShiftEntry{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		StaffID:      staffID,
		ActingUserID: actingUserID,
		ClockInAt:    ms,
		Source:       source,
		CreatedAt:    ms,
		UpdatedAt:    ms,
	}
	day := entry.DayKey(s.loc)

	var tx ledger.Tx
	tx.RequireAbsent(ledger.OpenKey(staffID))
	if err := tx.SetEntry(entry); err != nil {
		return nil, err
	}
	tx.IndexAdd(ledger.RestaurantDayKey(restaurantID, day), ms, entry.ID)
	tx.IndexAdd(ledger.StaffDayKey(staffID, day), ms, entry.ID)
	tx.Set(ledger.OpenKey(staffID), entry.ID)

	if err := s.store.Commit(ctx, tx); err != nil {
		if errors.Is(err, ledger.ErrTxConflict) {
			// Another request won the race; report its entry.
			metrics.IncCommitConflict()
			winner, rerr := s.store.GetOpenPointer(ctx, staffID)
			if rerr != nil {
				return nil, rerr
			}
			metrics.IncClockEvent("clock_in", ConflictAlreadyOpen)
			return &ClockInResult{Error: ConflictAlreadyOpen, OpenEntryID: winner}, nil
		}
		return nil, err
	}

	metrics.IncClockEvent("clock_in", "ok")
	s.publish(EventClockIn, entry)
	s.logger.Info().Str("staff_id", staffID).Str("entry_id", entry.ID).Str("day", day).Msg("shift opened")
	return &ClockInResult{OK: true, Entry: entry}, nil
}

// ClockOut closes the open shift for staffID. Stale pointers are repaired in
// place, and replaying after a won race yields already_closed with the same
// entry, so callers can retry safely.
func (s *ClockService) ClockOut(ctx context.Context, staffID, actingUserID, roleForAudit string, now time.Time) (*ClockOutResult, error) {
	if staffID == "" {
		return nil, fmt.Errorf("clock out: staff id is required")
	}

	openID, err := s.store.GetOpenPointer(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if openID == "" {
		metrics.IncClockEvent("clock_out", ConflictNoOpen)
		return &ClockOutResult{Error: ConflictNoOpen}, nil
	}

	entry, err := s.store.GetEntry(ctx, openID)
	if errors.Is(err, ledger.ErrNotFound) {
		// Dangling pointer: repair and report, no exception.
		if derr := s.deletePointer(ctx, staffID, openID); derr != nil {
			return nil, derr
		}
		metrics.IncClockEvent("clock_out", ConflictNotFound)
		return &ClockOutResult{Error: ConflictNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	if !entry.IsOpen() {
		// Pointer went stale after a concurrent close.
		if derr := s.deletePointer(ctx, staffID, openID); derr != nil {
			return nil, derr
		}
		metrics.IncClockEvent("clock_out", ConflictAlreadyClosed)
		return &ClockOutResult{Error: ConflictAlreadyClosed, Entry: entry}, nil
	}

	ms := now.UnixMilli()
	closed := *entry
	closed.ClockOutAt = ms
	closed.UpdatedAt = ms
	closed.EditedBy = &models.EditStamp{UserID: actingUserID, Role: roleForAudit, At: ms}

	var tx ledger.Tx
	tx.RequireEquals(ledger.OpenKey(staffID), openID)
	if err := tx.SetEntry(&closed); err != nil {
		return nil, err
	}
	tx.Del(ledger.OpenKey(staffID))

	if err := s.store.Commit(ctx, tx); err != nil {
		if errors.Is(err, ledger.ErrTxConflict) {
			metrics.IncCommitConflict()
			return s.resolveCloseRace(ctx, openID)
		}
		return nil, err
	}

	metrics.IncClockEvent("clock_out", "ok")
	s.publish(EventClockOut, &closed)
	s.logger.Info().Str("staff_id", staffID).Str("entry_id", closed.ID).Int64("minutes", closed.Minutes()).Msg("shift closed")
	return &ClockOutResult{OK: true, Entry: &closed}, nil
}

// resolveCloseRace re-reads the entry after a lost commit: a concurrent
// close makes the operation effectively idempotent.
func (s *ClockService) resolveCloseRace(ctx context.Context, entryID string) (*ClockOutResult, error) {
	entry, err := s.store.GetEntry(ctx, entryID)
	if errors.Is(err, ledger.ErrNotFound) {
		metrics.IncClockEvent("clock_out", ConflictNoOpen)
		return &ClockOutResult{Error: ConflictNoOpen}, nil
	}
	if err != nil {
		return nil, err
	}
	if !entry.IsOpen() {
		metrics.IncClockEvent("clock_out", "ok")
		return &ClockOutResult{OK: true, Entry: entry}, nil
	}
	metrics.IncClockEvent("clock_out", ConflictNoOpen)
	return &ClockOutResult{Error: ConflictNoOpen}, nil
}

// GetOpenEntry returns the staff member's open shift, or nil when none is
// open. Read-only: a dangling pointer is reported as nil without repair.
func (s *ClockService) GetOpenEntry(ctx context.Context, staffID string) (*models.ShiftEntry, error) {
	openID, err := s.store.GetOpenPointer(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if openID == "" {
		return nil, nil
	}
	entry, err := s.store.GetEntry(ctx, openID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// deletePointer removes a stale pointer, conditioned on it still holding
// the stale id so a fresh clock-in is never wiped out.
func (s *ClockService) deletePointer(ctx context.Context, staffID, staleID string) error {
	var tx ledger.Tx
	tx.RequireEquals(ledger.OpenKey(staffID), staleID)
	tx.Del(ledger.OpenKey(staffID))
	err := s.store.Commit(ctx, tx)
	if errors.Is(err, ledger.ErrTxConflict) {
		// Someone else already moved the pointer; nothing to repair.
		return nil
	}
	return err
}

func (s *ClockService) publish(eventType string, entry *models.ShiftEntry) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishJSON(eventType, entry); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("publish event failed")
	}
}
