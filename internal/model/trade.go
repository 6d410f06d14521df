package model

import "time"

// Trade is a closed round trip: one buy fill followed by one sell fill.
type Trade struct {
	BuyDate   time.Time `json:"buy_date"`
	BuyPrice  float64   `json:"buy_price"`
	SellDate  time.Time `json:"sell_date"`
	SellPrice float64   `json:"sell_price"`
	PnL       float64   `json:"pnl"`
	HoldDays  int       `json:"hold_days"`
}

// Won reports whether the trade closed with positive P&L.
func (t Trade) Won() bool { return t.PnL > 0 }

// NewTrade builds a Trade and derives P&L and holding period in whole days.
func NewTrade(buyDate time.Time, buyPrice float64, sellDate time.Time, sellPrice float64) Trade {
	return Trade{
		BuyDate:   buyDate,
		BuyPrice:  buyPrice,
		SellDate:  sellDate,
		SellPrice: sellPrice,
		PnL:       sellPrice - buyPrice,
		HoldDays:  int(sellDate.Sub(buyDate).Hours() / 24),
	}
}

// OpenPosition is a buy fill that has not been closed by the end of a run.
type OpenPosition struct {
	BuyDate  time.Time `json:"buy_date"`
	BuyPrice float64   `json:"buy_price"`
}

// SymbolHistory is the per-symbol outcome of one backtest run.
// Invariant: Sells <= Buys <= Sells+1.
type SymbolHistory struct {
	Symbol string        `json:"symbol"`
	Days   int           `json:"days"`
	Buys   int           `json:"buys"`
	Sells  int           `json:"sells"`
	Trades []Trade       `json:"trades"`
	Open   *OpenPosition `json:"open,omitempty"`
}

// TotalPnL sums P&L across closed trades.
func (h *SymbolHistory) TotalPnL() float64 {
	var sum float64
	for _, t := range h.Trades {
		sum += t.PnL
	}
	return sum
}

// Wins counts closed trades with positive P&L.
func (h *SymbolHistory) Wins() int {
	n := 0
	for _, t := range h.Trades {
		if t.Won() {
			n++
		}
	}
	return n
}
