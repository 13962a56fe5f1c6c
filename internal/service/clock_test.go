package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"smena/internal/ledger"
	"smena/internal/models"
)

var testLoc = time.FixedZone("MSK", 3*3600)

func newTestStore(t *testing.T) *ledger.RedisStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ledger.NewRedisStore(client)
}

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newClockService(store ledger.Store) *ClockService {
	return NewClockService(store, nil, testLoc, testLogger())
}

func TestClockService_ClockInAndOut(t *testing.T) {
	store := newTestStore(t)
	svc := newClockService(store)
	ctx := context.Background()

	in := time.Date(2026, 3, 2, 9, 0, 0, 0, testLoc)
	out := time.Date(2026, 3, 2, 17, 30, 0, 0, testLoc)

	res, err := svc.ClockIn(ctx, "r1", "s1", "u1", models.SourceStaff, in)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.True(t, res.Entry.IsOpen())
	assert.Equal(t, "r1", res.Entry.RestaurantID)
	assert.Equal(t, in.UnixMilli(), res.Entry.ClockInAt)

	open, err := svc.GetOpenEntry(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, res.Entry.ID, open.ID)

	// Clocking in again while a shift is open is rejected with the open
	// entry's id and writes nothing.
	again, err := svc.ClockIn(ctx, "r1", "s1", "u1", models.SourceStaff, in.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, again.OK)
	assert.Equal(t, ConflictAlreadyOpen, again.Error)
	assert.Equal(t, res.Entry.ID, again.OpenEntryID)

	closed, err := svc.ClockOut(ctx, "s1", "u1", "staff", out)
	require.NoError(t, err)
	require.True(t, closed.OK)
	assert.Equal(t, int64(510), closed.Entry.Minutes())
	require.NotNil(t, closed.Entry.EditedBy)
	assert.Equal(t, "u1", closed.Entry.EditedBy.UserID)

	// Pointer is gone together with the close.
	open, err = svc.GetOpenEntry(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, open)

	// A sequential repeat finds no open shift.
	repeat, err := svc.ClockOut(ctx, "s1", "u1", "staff", out.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, repeat.OK)
	assert.Equal(t, ConflictNoOpen, repeat.Error)

	// After a successful clock-out an immediate clock-in always succeeds.
	next, err := svc.ClockIn(ctx, "r1", "s1", "u1", models.SourceStaff, out.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, next.OK)
}

func TestClockService_StalePointer(t *testing.T) {
	store := newTestStore(t)
	svc := newClockService(store)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, testLoc)

	t.Run("PointerToMissingEntry", func(t *testing.T) {
		var tx ledger.Tx
		tx.Set(ledger.OpenKey("ghost"), "no-such-entry")
		require.NoError(t, store.Commit(ctx, tx))

		res, err := svc.ClockOut(ctx, "ghost", "u1", "staff", now)
		require.NoError(t, err)
		assert.Equal(t, ConflictNotFound, res.Error)

		// The dangling pointer was repaired in place.
		ptr, err := store.GetOpenPointer(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, "", ptr)
	})

	t.Run("PointerToClosedEntry", func(t *testing.T) {
		res, err := svc.ClockIn(ctx, "r1", "s2", "u1", models.SourceStaff, now)
		require.NoError(t, err)
		closed, err := svc.ClockOut(ctx, "s2", "u1", "staff", now.Add(time.Hour))
		require.NoError(t, err)
		require.True(t, closed.OK)

		// Restore a stale pointer, as if a replayed request read it before
		// the close landed.
		var tx ledger.Tx
		tx.Set(ledger.OpenKey("s2"), res.Entry.ID)
		require.NoError(t, store.Commit(ctx, tx))

		repeat, err := svc.ClockOut(ctx, "s2", "u1", "staff", now.Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, ConflictAlreadyClosed, repeat.Error)
		require.NotNil(t, repeat.Entry)
		assert.Equal(t, closed.Entry, repeat.Entry)

		ptr, err := store.GetOpenPointer(ctx, "s2")
		require.NoError(t, err)
		assert.Equal(t, "", ptr)
	})
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Commit(ctx context.Context, tx ledger.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *mockStore) GetEntry(ctx context.Context, id string) (*models.ShiftEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShiftEntry), args.Error(1)
}

func (m *mockStore) GetOpenPointer(ctx context.Context, staffID string) (string, error) {
	args := m.Called(ctx, staffID)
	return args.String(0), args.Error(1)
}

func (m *mockStore) DayEntryIDs(ctx context.Context, indexKey string) ([]string, error) {
	args := m.Called(ctx, indexKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestClockService_LostRaces(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, testLoc)

	t.Run("ClockInLoserReportsWinner", func(t *testing.T) {
		store := new(mockStore)
		svc := newClockService(store)

		// Pointer is absent at read time, but the commit loses the race.
		store.On("GetOpenPointer", ctx, "s1").Return("", nil).Once()
		store.On("Commit", ctx, mock.Anything).Return(ledger.ErrTxConflict).Once()
		store.On("GetOpenPointer", ctx, "s1").Return("winner-id", nil).Once()

		res, err := svc.ClockIn(ctx, "r1", "s1", "u1", models.SourceStaff, now)
		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, ConflictAlreadyOpen, res.Error)
		assert.Equal(t, "winner-id", res.OpenEntryID)
		store.AssertExpectations(t)
	})

	t.Run("ClockOutLostRaceIsIdempotent", func(t *testing.T) {
		store := new(mockStore)
		svc := newClockService(store)

		open := &models.ShiftEntry{ID: "e1", StaffID: "s1", ClockInAt: now.UnixMilli()}
		closedByWinner := &models.ShiftEntry{ID: "e1", StaffID: "s1", ClockInAt: now.UnixMilli(), ClockOutAt: now.Add(time.Hour).UnixMilli()}

		store.On("GetOpenPointer", ctx, "s1").Return("e1", nil).Once()
		store.On("GetEntry", ctx, "e1").Return(open, nil).Once()
		store.On("Commit", ctx, mock.Anything).Return(ledger.ErrTxConflict).Once()
		store.On("GetEntry", ctx, "e1").Return(closedByWinner, nil).Once()

		res, err := svc.ClockOut(ctx, "s1", "u1", "staff", now.Add(time.Hour))
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, closedByWinner, res.Entry)
		store.AssertExpectations(t)
	})
}

func TestClockService_Validation(t *testing.T) {
	svc := newClockService(newTestStore(t))
	ctx := context.Background()
	now := time.Now()

	_, err := svc.ClockIn(ctx, "", "s1", "u1", models.SourceStaff, now)
	assert.Error(t, err)
	_, err = svc.ClockIn(ctx, "r1", "", "u1", models.SourceStaff, now)
	assert.Error(t, err)
	_, err = svc.ClockOut(ctx, "", "u1", "staff", now)
	assert.Error(t, err)
}
