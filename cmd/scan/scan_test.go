package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest/internal/markethours"
	"equity-backtest/internal/model"
	"equity-backtest/internal/notification"
	"equity-backtest/internal/risk"
	"equity-backtest/internal/screen"
	"equity-backtest/internal/strategy"
)

func wave(symbol string, n int) []model.Bar {
	d := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, n)
	for i := range bars {
		c := 200 + 0.1*float64(i) + 15*math.Sin(float64(i)/11)
		bars[i] = model.Bar{Symbol: symbol, Date: d.AddDate(0, 0, i), Open: c - 0.5, High: c + 2, Low: c - 2, Close: c}
	}
	return bars
}

type memDataset map[string][]model.Bar

func (m memDataset) Symbols(context.Context, string) ([]string, error) { return nil, nil }

func (m memDataset) Bars(_ context.Context, symbol string) ([]model.Bar, error) {
	if b, ok := m[symbol]; ok {
		return b, nil
	}
	return nil, errors.New("no such symbol")
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildStrategies(t *testing.T) {
	reg := strategy.NewDefaultRegistry()

	all, err := buildStrategies(reg, "", quiet())
	require.NoError(t, err)
	assert.Len(t, all, len(reg.List()))

	some, err := buildStrategies(reg, "rsi, macd", quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{"macd", "rsi"}, strategyNames(some))

	_, err = buildStrategies(reg, "nope", quiet())
	assert.ErrorIs(t, err, strategy.ErrUnknownStrategy)
}

func TestScanSymbol(t *testing.T) {
	strats, err := buildStrategies(strategy.NewDefaultRegistry(), "", quiet())
	require.NoError(t, err)

	// Last bar is Saturday 2022-10-29; Monday's session has closed.
	now := time.Date(2022, 10, 31, 16, 0, 0, 0, markethours.IST)
	set := settings{Strategies: strats, Plan: risk.Request{Budget: 100000, Risk: 2000}, Now: now}
	r, err := scanSymbol(wave("WAVE", 300), set)
	require.NoError(t, err)

	assert.Equal(t, "WAVE", r.Symbol)
	assert.Equal(t, 1, r.Behind)
	assert.Len(t, r.Signals, len(strats))
	for name, sig := range r.Signals {
		assert.Contains(t, []string{"BUY", "SELL", "NONE"}, sig, name)
	}
	require.NotNil(t, r.Plan)
	assert.Greater(t, r.Plan.Quantity, int64(0))
	assert.Empty(t, r.PlanErr)

	assert.Equal(t, screen.Candle{Green: true, Pattern: screen.Doji}, r.Candle)
	assert.False(t, r.NR7, "every range is equal")

	tight := wave("WAVE", 300)
	c := tight[len(tight)-1].Close
	tight[len(tight)-1].Open, tight[len(tight)-1].High, tight[len(tight)-1].Low = c-0.9, c+0.1, c-1.1
	r, err = scanSymbol(tight, set)
	require.NoError(t, err)
	assert.True(t, r.NR7)
	assert.Equal(t, "Green Normal", r.Candle.String())

	set.Plan.Budget = 10
	r, err = scanSymbol(wave("WAVE", 300), set)
	require.NoError(t, err)
	assert.Nil(t, r.Plan)
	assert.Contains(t, r.PlanErr, "budget")
}

func TestScanAll(t *testing.T) {
	ds := memDataset{"BBB": wave("BBB", 260), "AAA": wave("AAA", 260)}
	strats, err := buildStrategies(strategy.NewDefaultRegistry(), "rsi", quiet())
	require.NoError(t, err)

	now := time.Date(2022, 9, 19, 16, 0, 0, 0, markethours.IST)
	cols, err := parseColumns("sma:20, ATR:14")
	require.NoError(t, err)
	set := settings{Strategies: strats, Now: now, Columns: cols}
	rows, err := scanAll(context.Background(), ds, []string{"BBB", "MISSING", "AAA"}, set, 2, quiet())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAA", rows[0].Symbol)
	assert.Equal(t, "BBB", rows[1].Symbol)
	assert.Nil(t, rows[0].Plan)
	assert.Zero(t, rows[0].Behind)
	assert.Len(t, rows[0].Extra, 2)
	assert.InDelta(t, 4, rows[0].Extra["ATR_14"], 1e-9)

	var buf bytes.Buffer
	require.NoError(t, printRows(&buf, rows, set))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SYMBOL"))
	assert.Contains(t, lines[0], "RSI")
	assert.Contains(t, lines[0], "SMA_20")
	assert.Contains(t, lines[0], "CANDLE")
	assert.Contains(t, lines[1], "Green Doji")
	assert.True(t, strings.HasPrefix(lines[1], "AAA"))

	_, err = scanAll(context.Background(), ds, []string{"MISSING"}, set, 2, quiet())
	assert.Error(t, err)

	_, err = parseColumns("SMA")
	assert.Error(t, err)
}

func buyRow() row {
	return row{
		Summary: screen.Summary{
			Symbol:  "INFY",
			Date:    time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC),
			Close:   1500,
			Signals: map[string]string{"rsi": "BUY", "macd": "BUY", "cci": "SELL"},
		},
		Plan:   &risk.TradePlan{Entry: 1501.5, StopLoss: 1470, Target: 1564.5, Quantity: 10},
		Behind: 2,
	}
}

func TestAlertFor(t *testing.T) {
	a, ok := alertFor(buyRow())
	require.True(t, ok)
	assert.Equal(t, notification.AlertWarning, a.Level)
	assert.Equal(t, "INFY: BUY", a.Title)
	assert.Contains(t, a.Message, "closed at 1500.00 on 2026-10-14")
	assert.Contains(t, a.Message, "BUY from macd, rsi.")
	assert.Contains(t, a.Message, "qty 10")
	assert.Contains(t, a.Message, "2 session(s) behind")

	fresh := buyRow()
	fresh.Behind = 0
	fresh.Plan = nil
	a, ok = alertFor(fresh)
	require.True(t, ok)
	assert.Equal(t, notification.AlertInfo, a.Level)
	assert.NotContains(t, a.Message, "Entry")

	none := buyRow()
	none.Signals = map[string]string{"rsi": "NONE"}
	_, ok = alertFor(none)
	assert.False(t, ok)
}

type recorder struct {
	alerts []notification.Alert
	err    error
}

func (r *recorder) Send(_ context.Context, a notification.Alert) error {
	if r.err != nil {
		return r.err
	}
	r.alerts = append(r.alerts, a)
	return nil
}

func TestSendAlerts(t *testing.T) {
	none := buyRow()
	none.Symbol = "TCS"
	none.Signals = map[string]string{"rsi": "SELL"}
	rows := []row{buyRow(), none}

	rec := &recorder{}
	sent, err := sendAlerts(context.Background(), rec, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	require.Len(t, rec.alerts, 1)
	assert.Equal(t, "INFY: BUY", rec.alerts[0].Title)

	sent, err = sendAlerts(context.Background(), &recorder{err: errors.New("down")}, rows)
	assert.Zero(t, sent)
	assert.ErrorContains(t, err, "INFY: down")
}
