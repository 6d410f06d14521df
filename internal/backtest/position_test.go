package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest/internal/model"
	"equity-backtest/internal/strategy"
)

var epoch = time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return epoch.AddDate(0, 0, i) }

func ohlc(i int, o, h, l, c float64) model.Bar {
	return model.Bar{Symbol: "TEST", Date: day(i), Open: o, High: h, Low: l, Close: c}
}

func buyAt(kind strategy.OrderKind, trigger float64, b *strategy.Bracket) strategy.Decision {
	return strategy.Decision{
		Signal: model.SignalBuy,
		Order:  strategy.Order{Kind: kind, Trigger: trigger, Bracket: b},
	}
}

var sellNow = strategy.Decision{Signal: model.SignalSell}

func TestPosition_MarketRoundTrip(t *testing.T) {
	h := &model.SymbolHistory{Symbol: "TEST"}
	p := NewPosition(h)

	require.True(t, p.Step(buyAt(strategy.OrderMarket, 0, nil), ohlc(1, 100, 103, 99, 102)))
	assert.Equal(t, Long, p.State())

	// Buy while long is ignored.
	assert.False(t, p.Step(buyAt(strategy.OrderMarket, 0, nil), ohlc(2, 102, 104, 101, 103)))
	assert.Equal(t, 1, h.Buys)

	require.True(t, p.Step(sellNow, ohlc(3, 108, 109, 105, 106)))
	assert.Equal(t, Flat, p.State())

	// Sell while flat is ignored.
	assert.False(t, p.Step(sellNow, ohlc(4, 106, 107, 104, 105)))

	require.Len(t, h.Trades, 1)
	tr := h.Trades[0]
	assert.Equal(t, 100.0, tr.BuyPrice)
	assert.Equal(t, 108.0, tr.SellPrice)
	assert.Equal(t, 8.0, tr.PnL)
	assert.Equal(t, 2, tr.HoldDays)
	assert.Equal(t, 1, h.Sells)
}

func TestPosition_StopEntry(t *testing.T) {
	t.Run("not triggered", func(t *testing.T) {
		h := &model.SymbolHistory{}
		p := NewPosition(h)
		assert.False(t, p.Step(buyAt(strategy.OrderStop, 105, nil), ohlc(1, 101, 105, 99, 104)))
		assert.Equal(t, Flat, p.State())
		assert.Zero(t, h.Buys)
	})

	t.Run("trades through trigger", func(t *testing.T) {
		h := &model.SymbolHistory{}
		p := NewPosition(h)
		require.True(t, p.Step(buyAt(strategy.OrderStop, 105, nil), ohlc(1, 101, 107, 99, 106)))
		p.Finish()
		require.NotNil(t, h.Open)
		assert.Equal(t, 105.0, h.Open.BuyPrice)
	})

	t.Run("gap above trigger fills at open", func(t *testing.T) {
		h := &model.SymbolHistory{}
		p := NewPosition(h)
		require.True(t, p.Step(buyAt(strategy.OrderStop, 105, nil), ohlc(1, 108, 110, 107, 109)))
		p.Finish()
		assert.Equal(t, 108.0, h.Open.BuyPrice)
	})
}

func TestPosition_BracketLegs(t *testing.T) {
	br := &strategy.Bracket{Target: 120, StopLoss: 95, Cap: 125}
	enter := func() (*model.SymbolHistory, *Position) {
		h := &model.SymbolHistory{}
		p := NewPosition(h)
		require.True(t, p.Step(buyAt(strategy.OrderMarket, 0, br), ohlc(1, 100, 102, 98, 101)))
		return h, p
	}

	tests := []struct {
		name string
		next model.Bar
		want float64
	}{
		{"target", ohlc(2, 110, 121, 108, 119), 120},
		{"target gap", ohlc(2, 122, 123, 118, 121), 122},
		{"stop", ohlc(2, 99, 100, 94, 96), 95},
		{"stop gap", ohlc(2, 90, 92, 88, 91), 90},
		{"target checked before stop", ohlc(2, 100, 121, 94, 100), 120},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, p := enter()
			require.True(t, p.Step(strategy.Decision{}, tt.next))
			require.Len(t, h.Trades, 1)
			assert.Equal(t, tt.want, h.Trades[0].SellPrice)
			assert.Equal(t, Flat, p.State())
		})
	}

	t.Run("inside bracket holds", func(t *testing.T) {
		h, p := enter()
		assert.False(t, p.Step(strategy.Decision{}, ohlc(2, 101, 110, 97, 105)))
		assert.True(t, p.Holding())
		assert.Empty(t, h.Trades)
	})

	t.Run("signal sell beats bracket", func(t *testing.T) {
		h, p := enter()
		require.True(t, p.Step(sellNow, ohlc(2, 103, 121, 102, 119)))
		assert.Equal(t, 103.0, h.Trades[0].SellPrice)
	})
}

func TestPosition_FinishNeverCloses(t *testing.T) {
	h := &model.SymbolHistory{}
	p := NewPosition(h)
	require.True(t, p.Step(buyAt(strategy.OrderMarket, 0, nil), ohlc(1, 50, 51, 49, 50)))
	p.Finish()

	assert.Equal(t, 1, h.Buys)
	assert.Zero(t, h.Sells)
	assert.Empty(t, h.Trades)
	require.NotNil(t, h.Open)
	assert.Equal(t, day(1), h.Open.BuyDate)

	flat := &model.SymbolHistory{}
	NewPosition(flat).Finish()
	assert.Nil(t, flat.Open)
}
