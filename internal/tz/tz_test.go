package tz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	require.Equal(t, time.UTC, Resolve(""))
	require.Equal(t, time.UTC, Resolve("Mars/Olympus_Mons"))
	require.Equal(t, "America/New_York", Resolve("America/New_York").String())
	require.Equal(t, "Europe/Berlin", Resolve(" Europe/Berlin ").String())
}

func TestValid(t *testing.T) {
	require.True(t, Valid("UTC"))
	require.True(t, Valid("Asia/Tashkent"))
	require.False(t, Valid(""))
	require.False(t, Valid("Nowhere/City"))
}

func TestToUTC_NewYorkSummer(t *testing.T) {
	local := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	got := ToUTC(local, Resolve("America/New_York"))
	require.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), got)
	require.Equal(t, time.UTC, got.Location())
}

func TestToUTC_IgnoresSourceLocation(t *testing.T) {
	berlin := Resolve("Europe/Berlin")
	local := time.Date(2025, 1, 15, 10, 30, 0, 0, berlin)
	got := ToUTC(local, Resolve("UTC"))
	require.Equal(t, time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC), got)
}

func TestFromUTC_RoundTrip(t *testing.T) {
	loc := Resolve("Asia/Tokyo")
	utc := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	local := FromUTC(utc, loc)
	require.Equal(t, 9, local.Hour())
	require.True(t, ToUTC(local, loc).Equal(utc))
}

func TestPtrToUTC(t *testing.T) {
	require.Nil(t, PtrToUTC(nil, time.UTC))
	l := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	got := PtrToUTC(&l, nil)
	require.NotNil(t, got)
	require.True(t, got.Equal(l))
}
