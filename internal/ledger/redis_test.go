package ledger

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smena/internal/models"
)

func newTestStore(t *testing.T) *RedisStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestRedisStore_Commit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &models.ShiftEntry{
		ID:           "e1",
		RestaurantID: "r1",
		StaffID:      "s1",
		ClockInAt:    1000,
		CreatedAt:    1000,
		UpdatedAt:    1000,
	}

	t.Run("MultiKeyCommit", func(t *testing.T) {
		var tx Tx
		tx.RequireAbsent(OpenKey("s1"))
		require.NoError(t, tx.SetEntry(entry))
		tx.IndexAdd(RestaurantDayKey("r1", "2026-01-01"), 1000, "e1")
		tx.IndexAdd(StaffDayKey("s1", "2026-01-01"), 1000, "e1")
		tx.Set(OpenKey("s1"), "e1")

		require.NoError(t, store.Commit(ctx, tx))

		got, err := store.GetEntry(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, entry, got)

		ptr, err := store.GetOpenPointer(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "e1", ptr)

		ids, err := store.DayEntryIDs(ctx, StaffDayKey("s1", "2026-01-01"))
		require.NoError(t, err)
		assert.Equal(t, []string{"e1"}, ids)
	})

	t.Run("AbsentConditionFails", func(t *testing.T) {
		var tx Tx
		tx.RequireAbsent(OpenKey("s1")) // set by previous subtest
		tx.Set(EntryKey("e2"), "{}")
		tx.Set(OpenKey("s1"), "e2")

		err := store.Commit(ctx, tx)
		assert.ErrorIs(t, err, ErrTxConflict)

		// Nothing was written.
		_, err = store.GetEntry(ctx, "e2")
		assert.ErrorIs(t, err, ErrNotFound)
		ptr, err := store.GetOpenPointer(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "e1", ptr)
	})

	t.Run("EqualsCondition", func(t *testing.T) {
		var tx Tx
		tx.RequireEquals(OpenKey("s1"), "wrong-id")
		tx.Del(OpenKey("s1"))
		assert.ErrorIs(t, store.Commit(ctx, tx), ErrTxConflict)

		tx = Tx{}
		tx.RequireEquals(OpenKey("s1"), "e1")
		tx.Del(OpenKey("s1"))
		require.NoError(t, store.Commit(ctx, tx))

		ptr, err := store.GetOpenPointer(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, "", ptr)
	})
}

func TestRedisStore_DayIndexOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var tx Tx
	key := RestaurantDayKey("r1", "2026-01-02")
	tx.IndexAdd(key, 3000, "late")
	tx.IndexAdd(key, 1000, "early")
	tx.IndexAdd(key, 2000, "middle")
	require.NoError(t, store.Commit(ctx, tx))

	ids, err := store.DayEntryIDs(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "middle", "late"}, ids)

	var rm Tx
	rm.IndexRemove(key, "middle")
	require.NoError(t, store.Commit(ctx, rm))

	ids, err = store.DayEntryIDs(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, ids)
}

func TestRedisStore_GetEntryNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetEntry(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntryCodec(t *testing.T) {
	entry := &models.ShiftEntry{
		ID:        "e1",
		StaffID:   "s1",
		ClockInAt: 42,
		EditedBy:  &models.EditStamp{UserID: "u1", Role: "manager", At: 50},
		Note:      "forgot badge",
	}
	doc, err := EncodeEntry(entry)
	require.NoError(t, err)

	got, err := DecodeEntry(doc)
	require.NoError(t, err)
	assert.Equal(t, entry, got)

	_, err = DecodeEntry("not json")
	assert.Error(t, err)
}
