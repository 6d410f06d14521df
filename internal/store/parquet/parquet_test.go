package parquet

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest/internal/model"
)

func bars(symbol string, from, n int) []model.Bar {
	out := make([]model.Bar, n)
	for i := range out {
		d := from + i
		c := 50 + float64(d)
		out[i] = model.Bar{
			Symbol: symbol,
			Date:   time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
		}
	}
	return out
}

func TestStore_WriteMergeRead(t *testing.T) {
	ctx := context.Background()
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.WriteBars(ctx, "reliance", bars("RELIANCE", 0, 10)))

	// Overlapping rewrite: days 5..14, with day 5 revised.
	update := bars("RELIANCE", 5, 10)
	update[0].Close = 1000
	require.NoError(t, s.WriteBars(ctx, "RELIANCE", update))

	got, err := s.Bars(ctx, "RELIANCE")
	require.NoError(t, err)
	require.Len(t, got, 15)
	assert.Equal(t, 1000.0, got[5].Close)
	assert.Equal(t, bars("RELIANCE", 0, 1)[0], got[0])
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i].Date.After(got[i-1].Date))
	}
}

func TestStore_Symbols(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "universes.yaml"), []byte("banks: [HDFCBANK, sbin]\n"), 0o644))

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.WriteBars(ctx, "SBIN", bars("SBIN", 0, 2)))
	require.NoError(t, s.WriteBars(ctx, "HDFCBANK", bars("HDFCBANK", 0, 2)))

	all, err := s.Symbols(ctx, model.UniverseAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"HDFCBANK", "SBIN"}, all)

	banks, err := s.Symbols(ctx, "banks")
	require.NoError(t, err)
	assert.Equal(t, []string{"HDFCBANK", "SBIN"}, banks)

	_, err = s.Symbols(ctx, "pharma")
	assert.ErrorIs(t, err, model.ErrUnknownUniverse)

	_, err = s.Bars(ctx, "TATAMOTORS")
	assert.ErrorIs(t, err, model.ErrNoBars)
}
