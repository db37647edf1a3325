package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: TimeOfDay{9, 0}},
		{in: "00:00", want: TimeOfDay{0, 0}},
		{in: "23:59", want: TimeOfDay{23, 59}},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "9:00", wantErr: true},
		{in: "09-00", wantErr: true},
		{in: "09:00:00", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTimeFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestResolveWallClockFollowsDaylightSaving(t *testing.T) {
	// New York is UTC-5 in winter and UTC-4 in summer.
	winter, err := ResolveWallClock("09:00", Date{2026, time.January, 12}, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.January, 12, 14, 0, 0, 0, time.UTC), winter.UTC())

	summer, err := ResolveWallClock("09:00", Date{2026, time.July, 13}, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.July, 13, 13, 0, 0, 0, time.UTC), summer.UTC())

	// 2026-03-08 is the spring-forward date; 09:00 is already on daylight time.
	switchDay, err := ResolveWallClock("09:00", Date{2026, time.March, 8}, "America/New_York")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.March, 8, 13, 0, 0, 0, time.UTC), switchDay.UTC())
}

func TestResolveWallClockErrors(t *testing.T) {
	_, err := ResolveWallClock("25:00", Date{2026, time.January, 1}, "UTC")
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)

	_, err = ResolveWallClock("10:00", Date{2026, time.January, 1}, "Mars/Olympus_Mons")
	assert.ErrorIs(t, err, ErrUnknownTimezone)
}

func TestIsWithinRangeInclusive(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	assert.True(t, IsWithinRange(start, start, end))
	assert.True(t, IsWithinRange(end, start, end))
	assert.True(t, IsWithinRange(start.Add(30*time.Minute), start, end))
	assert.False(t, IsWithinRange(start.Add(-time.Nanosecond), start, end))
	assert.False(t, IsWithinRange(end.Add(time.Nanosecond), start, end))
}

func TestDateHelpers(t *testing.T) {
	d := Date{2026, time.December, 31}
	assert.Equal(t, Date{2027, time.January, 1}, d.AddDays(1))
	assert.Equal(t, Thursday, d.Weekday())
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.After(d))
	assert.Equal(t, "2026-12-31", d.String())

	loc, err := LoadLocation("America/New_York")
	require.NoError(t, err)
	// 03:00 UTC on Jan 1 is still Dec 31 in New York.
	assert.Equal(t, d, DateOf(time.Date(2027, 1, 1, 3, 0, 0, 0, time.UTC), loc))
}
