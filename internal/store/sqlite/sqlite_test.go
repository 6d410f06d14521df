package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest/internal/model"
)

func day(i int) time.Time { return time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i) }

func sampleBars(symbol string, n int) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = model.Bar{Symbol: symbol, Date: day(i), Open: c - 1, High: c + 2, Low: c - 2, Close: c, High52W: 150, Low52W: 80}
	}
	return bars
}

func openPair(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.db")
	w, err := New(WriterConfig{DBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	r, err := NewReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return w, r
}

func TestWriteAndReadBars(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)

	// Written newest first; read back ascending.
	bars := sampleBars("INFY", 1200)
	rev := make([]model.Bar, len(bars))
	for i, b := range bars {
		rev[len(bars)-1-i] = b
	}
	require.NoError(t, w.WriteBars(ctx, "INFY", rev))
	require.NoError(t, w.WriteBars(ctx, "TCS", sampleBars("", 3)))

	got, err := r.Bars(ctx, "INFY")
	require.NoError(t, err)
	assert.Equal(t, bars, got)

	tcs, err := r.Bars(ctx, "TCS")
	require.NoError(t, err)
	require.Len(t, tcs, 3)
	assert.Equal(t, "TCS", tcs[0].Symbol)

	last, ok, err := w.LastDate(ctx, "INFY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(1199), last)
}

func TestWriteBars_Upsert(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)

	require.NoError(t, w.WriteBars(ctx, "X", sampleBars("X", 5)))
	fix := sampleBars("X", 5)[2:3]
	fix[0].Close = 999
	require.NoError(t, w.WriteBars(ctx, "X", fix))

	got, err := r.Bars(ctx, "X")
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 999.0, got[2].Close)
}

func TestBars_Missing(t *testing.T) {
	_, r := openPair(t)
	_, err := r.Bars(context.Background(), "NOPE")
	assert.ErrorIs(t, err, model.ErrNoBars)
}

func TestSymbolsAndUniverses(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)
	for _, s := range []string{"TCS", "INFY", "WIPRO"} {
		require.NoError(t, w.WriteBars(ctx, s, sampleBars(s, 2)))
	}
	require.NoError(t, w.SetUniverse(ctx, "nifty_it", []string{"WIPRO", "INFY"}))

	all, err := r.Symbols(ctx, model.UniverseAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY", "TCS", "WIPRO"}, all)

	it, err := r.Symbols(ctx, "nifty_it")
	require.NoError(t, err)
	assert.Equal(t, []string{"INFY", "WIPRO"}, it)

	_, err = r.Symbols(ctx, "nifty_pharma")
	assert.ErrorIs(t, err, model.ErrUnknownUniverse)

	names, err := r.Universes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nifty_it"}, names)

	require.NoError(t, w.SetUniverse(ctx, "nifty_it", []string{"TCS"}))
	it, err = r.Symbols(ctx, "nifty_it")
	require.NoError(t, err)
	assert.Equal(t, []string{"TCS"}, it)
}

func TestWriterRun_FlushesOnClose(t *testing.T) {
	ctx := context.Background()
	w, r := openPair(t)

	ch := make(chan model.Bar)
	done := make(chan int)
	go func() { done <- w.Run(ctx, ch) }()
	for _, b := range sampleBars("HDFC", 620) {
		ch <- b
	}
	close(ch)
	assert.Equal(t, 620, <-done)

	got, err := r.Bars(ctx, "HDFC")
	require.NoError(t, err)
	assert.Len(t, got, 620)
}

func TestJournal_RecordRun(t *testing.T) {
	ctx := context.Background()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	histories := map[string]*model.SymbolHistory{
		"INFY": {
			Symbol: "INFY", Days: 400, Buys: 2, Sells: 1,
			Trades: []model.Trade{model.NewTrade(day(3), 100, day(10), 120)},
			Open:   &model.OpenPosition{BuyDate: day(20), BuyPrice: 130},
		},
	}
	rep := &model.Report{
		RunID:    "ma_cross-20240102T000000",
		Strategy: "ma_cross",
		Params:   map[string]float64{"fast": 20, "slow": 50},
		Universe: "all",
		Rows:     []model.ResultRow{{Symbol: "INFY", ROI: 20, Wins: 1, WinRate: 1, Buys: 2, Sells: 1}},
	}
	require.NoError(t, j.RecordRun(ctx, rep, histories))
	// Re-recording the same run replaces it.
	require.NoError(t, j.RecordRun(ctx, rep, histories))

	runs, err := j.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "ma_cross", runs[0].Strategy)
	assert.JSONEq(t, `{"fast":20,"slow":50}`, runs[0].Params)

	back, err := j.Report(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.Rows, back.Rows)

	trades, open, err := j.Trades(ctx, rep.RunID, "INFY")
	require.NoError(t, err)
	assert.Equal(t, histories["INFY"].Trades, trades)
	require.NotNil(t, open)
	assert.Equal(t, 130.0, open.BuyPrice)

	_, err = j.Report(ctx, "missing")
	assert.Error(t, err)
}
