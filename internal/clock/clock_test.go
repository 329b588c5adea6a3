package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toronto = "America/Toronto"

func TestToAbsoluteOutsideDST(t *testing.T) {
	got, err := ToAbsolute("2026-02-19T18:00", toronto)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-19T23:00:00Z", got.Format(time.RFC3339))
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"2026-02-19T18:00",
		"2026-07-04T09:15",
		"2026-12-31T23:59",
		"2026-01-01T00:00",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			abs, err := ToAbsolute(in, toronto)
			require.NoError(t, err)
			back, err := ToLocal(abs, toronto)
			require.NoError(t, err)
			assert.Equal(t, in, back)
		})
	}
}

func TestToAbsoluteSummerOffset(t *testing.T) {
	got, err := ToAbsolute("2026-07-04T09:15", toronto)
	require.NoError(t, err)
	assert.Equal(t, "2026-07-04T13:15:00Z", got.Format(time.RFC3339))
}

func TestToAbsoluteAmbiguousPicksEarlier(t *testing.T) {
	// 2026-11-01 01:30 happens twice in Toronto: EDT (05:30Z) then EST (06:30Z).
	got, err := ToAbsolute("2026-11-01T01:30", toronto)
	require.NoError(t, err)
	assert.Equal(t, "2026-11-01T05:30:00Z", got.Format(time.RFC3339))
}

func TestToAbsoluteGapShiftsForward(t *testing.T) {
	// 2026-03-08 02:30 does not exist in Toronto; clocks jump 02:00 -> 03:00.
	got, err := ToAbsolute("2026-03-08T02:30", toronto)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-08T07:30:00Z", got.Format(time.RFC3339))

	local, err := ToLocal(got, toronto)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-08T03:30", local)
}

func TestToAbsoluteAcceptedLayouts(t *testing.T) {
	for _, in := range []string{"2026-02-19T18:00:00", "2026-02-19 18:00", "2026-02-19 18:00:00"} {
		got, err := ToAbsolute(in, toronto)
		require.NoError(t, err, in)
		assert.Equal(t, "2026-02-19T23:00:00Z", got.Format(time.RFC3339), in)
	}
}

func TestToAbsoluteRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		local string
		tz    string
	}{
		{"date only", "2026-02-19", toronto},
		{"with offset", "2026-02-19T18:00-05:00", toronto},
		{"garbage", "tomorrow at 5", toronto},
		{"unknown zone", "2026-02-19T18:00", "Mars/Olympus"},
		{"empty zone", "2026-02-19T18:00", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToAbsolute(tt.local, tt.tz)
			assert.Error(t, err)
		})
	}
}

func TestTodayUsesZone(t *testing.T) {
	// 03:00Z on the 20th is still the 19th in Toronto.
	now := time.Date(2026, 2, 20, 3, 0, 0, 0, time.UTC)
	got, err := Today(now, toronto)
	require.NoError(t, err)
	assert.Equal(t, "2026-02-19", got)

	got, err = Today(now, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-20", got)
}
