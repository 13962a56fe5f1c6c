package ledger

import (
	"context"
	"errors"
	"fmt"

	"smena/internal/models"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("ledger: not found")

	// ErrTxConflict is returned when a commit condition failed or a watched
	// key was modified concurrently. Nothing has been written.
	ErrTxConflict = errors.New("ledger: transaction conflict")
)

// Cond is an optimistic-concurrency condition on a single key.
// Either the key must be absent, or it must hold exactly Equals.
type Cond struct {
	Key    string
	Absent bool
	Equals string
}

// KV is a plain key write.
type KV struct {
	Key   string
	Value string
}

// ZMember is a day-index membership, scored for ordered enumeration.
type ZMember struct {
	Key    string
	Score  int64
	Member string
}

// Tx describes one atomic multi-key commit. All writes are applied only if
// every condition still holds at commit time; otherwise nothing is written
// and Commit returns ErrTxConflict.
type Tx struct {
	Conds []Cond
	Sets  []KV
	Dels  []string
	ZAdds []ZMember
	ZRems []ZMember
}

// RequireAbsent conditions the commit on key not existing.
func (tx *Tx) RequireAbsent(key string) {
	tx.Conds = append(tx.Conds, Cond{Key: key, Absent: true})
}

// RequireEquals conditions the commit on key holding exactly value.
func (tx *Tx) RequireEquals(key, value string) {
	tx.Conds = append(tx.Conds, Cond{Key: key, Equals: value})
}

// Set schedules a plain key write.
func (tx *Tx) Set(key, value string) {
	tx.Sets = append(tx.Sets, KV{Key: key, Value: value})
}

// SetEntry schedules a shift entry document write.
func (tx *Tx) SetEntry(e *models.ShiftEntry) error {
	doc, err := EncodeEntry(e)
	if err != nil {
		return err
	}
	tx.Set(EntryKey(e.ID), doc)
	return nil
}

// Del schedules a key deletion.
func (tx *Tx) Del(key string) {
	tx.Dels = append(tx.Dels, key)
}

// IndexAdd schedules a day-index membership write.
func (tx *Tx) IndexAdd(key string, score int64, member string) {
	tx.ZAdds = append(tx.ZAdds, ZMember{Key: key, Score: score, Member: member})
}

// IndexRemove schedules a day-index membership removal.
func (tx *Tx) IndexRemove(key, member string) {
	tx.ZRems = append(tx.ZRems, ZMember{Key: key, Member: member})
}

// Store is the ledger storage contract. All cross-cutting writes (entry +
// indices + open pointer) go through a single Commit so partial visibility
// is impossible.
type Store interface {
	// Commit applies tx atomically or returns ErrTxConflict.
	Commit(ctx context.Context, tx Tx) error

	// GetEntry returns the shift entry with the given id, or ErrNotFound.
	GetEntry(ctx context.Context, id string) (*models.ShiftEntry, error)

	// GetOpenPointer returns the id of the staff member's open entry,
	// or "" when no shift is open.
	GetOpenPointer(ctx context.Context, staffID string) (string, error)

	// DayEntryIDs enumerates a day index in clock-in order.
	DayEntryIDs(ctx context.Context, indexKey string) ([]string, error)
}

// Key layout. The open pointer is the only contended key; everything else is
// partitioned by entry id or by (scope, day).
func EntryKey(id string) string     { return "shift:" + id }
func OpenKey(staffID string) string { return "open:" + staffID }

func RestaurantDayKey(restaurantID, day string) string {
	return fmt.Sprintf("day:rest:%s:%s", restaurantID, day)
}
func StaffDayKey(staffID, day string) string {
	return fmt.Sprintf("day:staff:%s:%s", staffID, day)
}
