package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

var (
	_ frontier.Clock = (*Clock)(nil)
	_ frontier.Clock = (*Fixed)(nil)
)

// TestClockNowUTC ensures the clock returns UTC timestamps.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after), "got %v", got)
}

func TestFixedAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CST", 8*3600))
	clk := NewFixed(start)
	require.True(t, clk.Now().Equal(start))
	require.Equal(t, time.UTC, clk.Now().Location())

	clk.Advance(time.Minute)
	require.Equal(t, start.Add(time.Minute).UTC(), clk.Now())
}
