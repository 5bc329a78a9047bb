package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCronTokenGeneratedAndRotated(t *testing.T) {
	now := time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	kv := newMemKV(clock)
	tok := NewCronToken(kv, "", 7*24*time.Hour)
	tok.now = clock

	first, err := tok.Current(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 32)

	again, err := tok.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, again)

	ok, err := tok.Valid(context.Background(), first)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tok.Valid(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(8 * 24 * time.Hour)
	rotated, err := tok.Current(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first, rotated)

	ok, err = tok.Valid(context.Background(), first)
	require.NoError(t, err)
	require.False(t, ok, "old token stops working after rotation")
}

func TestCronTokenConfigured(t *testing.T) {
	tok := NewCronToken(newMemKV(time.Now), " fixed-token ", time.Hour)

	got, err := tok.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fixed-token", got)

	ok, err := tok.Valid(context.Background(), "")
	require.NoError(t, err)
	require.False(t, ok)
}
