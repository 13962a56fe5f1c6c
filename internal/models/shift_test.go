package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var msk = time.FixedZone("MSK", 3*3600)

func TestShiftEntry_Minutes(t *testing.T) {
	in := time.Date(2026, 3, 2, 9, 0, 0, 0, msk)

	t.Run("FullShift", func(t *testing.T) {
		out := time.Date(2026, 3, 2, 17, 30, 0, 0, msk)
		e := &ShiftEntry{ClockInAt: in.UnixMilli(), ClockOutAt: out.UnixMilli()}
		assert.Equal(t, int64(510), e.Minutes())
	})

	t.Run("OpenShift", func(t *testing.T) {
		e := &ShiftEntry{ClockInAt: in.UnixMilli()}
		assert.True(t, e.IsOpen())
		assert.Equal(t, int64(0), e.Minutes())
	})

	t.Run("ClockOutBeforeClockIn", func(t *testing.T) {
		e := &ShiftEntry{ClockInAt: in.UnixMilli(), ClockOutAt: in.Add(-time.Hour).UnixMilli()}
		assert.Equal(t, int64(0), e.Minutes())
		assert.True(t, e.IsMalformed())
	})

	t.Run("ZeroLengthShiftIsWellFormed", func(t *testing.T) {
		e := &ShiftEntry{ClockInAt: in.UnixMilli(), ClockOutAt: in.UnixMilli()}
		assert.False(t, e.IsMalformed())
		assert.Equal(t, int64(0), e.Minutes())
	})

	t.Run("SubMinuteFloor", func(t *testing.T) {
		e := &ShiftEntry{ClockInAt: in.UnixMilli(), ClockOutAt: in.Add(90 * time.Second).UnixMilli()}
		assert.Equal(t, int64(1), e.Minutes())
	})
}

func TestDayKey_BusinessTimezone(t *testing.T) {
	// 00:30 local on March 2nd is still March 1st in UTC; the shift must
	// land on the business day it started.
	in := time.Date(2026, 3, 2, 0, 30, 0, 0, msk)
	assert.Equal(t, "2026-03-01", in.UTC().Format("2006-01-02"))

	e := &ShiftEntry{ClockInAt: in.UnixMilli()}
	assert.Equal(t, "2026-03-02", e.DayKey(msk))
}

func TestMonthDays(t *testing.T) {
	days, err := MonthDays("2026-02", msk)
	assert.NoError(t, err)
	assert.Len(t, days, 28)
	assert.Equal(t, "2026-02-01", days[0])
	assert.Equal(t, "2026-02-28", days[27])

	_, err = MonthDays("02-2026", msk)
	assert.Error(t, err)
}
