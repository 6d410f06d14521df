package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest/internal/model"
)

func history(symbol string, prices ...float64) *model.SymbolHistory {
	h := &model.SymbolHistory{Symbol: symbol, Days: 400}
	for i := 0; i+1 < len(prices); i += 2 {
		h.Trades = append(h.Trades, model.NewTrade(day(i*10), prices[i], day(i*10+5), prices[i+1]))
		h.Buys++
		h.Sells++
	}
	return h
}

func TestROI_Modes(t *testing.T) {
	h := history("MIX", 100, 110, 200, 190)

	agg, ok := ROI(h, ROIAggregate)
	require.True(t, ok)
	assert.Equal(t, 0.0, agg)

	per, ok := ROI(h, ROIPerTrade)
	require.True(t, ok)
	assert.Equal(t, 2.5, per)
}

func TestROI_ExcludesOpenPosition(t *testing.T) {
	h := history("OPEN", 100, 105)
	h.Buys++
	h.Open = &model.OpenPosition{BuyDate: day(50), BuyPrice: 500}

	roi, ok := ROI(h, ROIAggregate)
	require.True(t, ok)
	assert.Equal(t, 5.0, roi)
}

func TestROI_NoClosedTrade(t *testing.T) {
	h := &model.SymbolHistory{Symbol: "NONE", Buys: 1, Open: &model.OpenPosition{BuyPrice: 10}}
	_, ok := ROI(h, ROIAggregate)
	assert.False(t, ok)

	_, ok = Summarize(h, ROIAggregate)
	assert.False(t, ok)
}

func TestROI_NonFiniteTrade(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1)} {
		h := history("BAD", 100, 110, 100, 120)
		h.Trades[1] = model.NewTrade(day(20), 100, day(25), v)

		assert.NotPanics(t, func() {
			_, ok := ROI(h, ROIAggregate)
			assert.False(t, ok)
			_, ok = ROI(h, ROIPerTrade)
			assert.False(t, ok)
			_, ok = Summarize(h, ROIAggregate)
			assert.False(t, ok)
		})

		rows := Rank(map[string]*model.SymbolHistory{"BAD": h, "OK": history("OK", 100, 110)}, 0, ROIAggregate)
		assert.Equal(t, []string{"OK"}, symbolsOf(rows))
	}
}

func TestROI_Rounding(t *testing.T) {
	h := history("R", 3, 4)
	roi, _ := ROI(h, ROIAggregate)
	assert.Equal(t, 33.33, roi)
}

func TestSummarize(t *testing.T) {
	h := history("S", 100, 110, 100, 90, 100, 130)
	row, ok := Summarize(h, ROIAggregate)
	require.True(t, ok)

	assert.Equal(t, "S", row.Symbol)
	assert.Equal(t, 2, row.Wins)
	assert.Equal(t, 1, row.Losses)
	assert.Equal(t, 0.67, row.WinRate)
	assert.Equal(t, 30.0, row.TotalPnL)
	assert.Equal(t, 10.0, row.ROI)
	assert.Equal(t, 5.0, row.AvgHoldDays)
	assert.Equal(t, 3, row.Buys)
	assert.Equal(t, 3, row.Sells)
}

func rankFixture() map[string]*model.SymbolHistory {
	return map[string]*model.SymbolHistory{
		// win rate 1.0, 2 wins
		"AAA": history("AAA", 100, 101, 100, 101),
		"BBB": history("BBB", 100, 120, 100, 120),
		// win rate 1.0, 1 win
		"CCC": history("CCC", 100, 150),
		// win rate 0.5
		"DDD": history("DDD", 100, 200, 100, 90),
		"EEE": history("EEE", 100, 200, 100, 90),
		// win rate 0
		"FFF": history("FFF", 100, 90),
		// no closed trade
		"GGG": {Symbol: "GGG", Buys: 1, Open: &model.OpenPosition{BuyPrice: 10}},
	}
}

func symbolsOf(rows []model.ResultRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Symbol
	}
	return out
}

func TestRank_Order(t *testing.T) {
	rows := Rank(rankFixture(), 0, ROIAggregate)
	assert.Equal(t, []string{"BBB", "AAA", "CCC", "DDD", "EEE", "FFF"}, symbolsOf(rows))
}

func TestRank_TopN(t *testing.T) {
	hs := rankFixture()
	all := Rank(hs, 0, ROIAggregate)
	assert.Len(t, all, 6)
	assert.Len(t, Rank(hs, -1, ROIAggregate), 6)
	assert.Len(t, Rank(hs, 100, ROIAggregate), 6)

	for k := 1; k < len(all); k++ {
		assert.Equal(t, Rank(hs, k+1, ROIAggregate)[:k], Rank(hs, k, ROIAggregate), "k=%d", k)
	}
}

func TestBuildReport(t *testing.T) {
	rep := BuildReport(ReportInput{
		RunID:     "ma_cross-1",
		Strategy:  "ma_cross",
		Params:    map[string]float64{"fast": 20, "slow": 50},
		Universe:  "all",
		Histories: rankFixture(),
		Stats:     Stats{Ran: 7, Skipped: 3},
		TopN:      2,
		Warnings:  []string{"w"},
	})

	assert.Equal(t, "ma_cross-1", rep.RunID)
	assert.Equal(t, 3, rep.Skipped)
	assert.Equal(t, []string{"BBB", "AAA"}, symbolsOf(rep.Rows))
	assert.Equal(t, []string{"w"}, rep.Warnings)
}

func TestParseROIMode(t *testing.T) {
	for in, want := range map[string]ROIMode{"": ROIAggregate, "aggregate": ROIAggregate, "per_trade": ROIPerTrade} {
		got, err := ParseROIMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseROIMode("median")
	assert.Error(t, err)
}
