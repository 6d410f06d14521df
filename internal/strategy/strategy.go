// Package strategy converts indicator behavior into discrete buy/sell decisions.
//
// A Strategy is bound to one ascending bar series and yields a Rule. The Rule
// answers, for bar i, what the strategy wants to do given whether a position
// is currently held. Rules only read data at or before i; fills are the
// caller's concern and happen on bar i+1.
package strategy

import (
	"fmt"

	"equity-backtest/internal/model"
	"equity-backtest/internal/series"
)

// OrderKind describes how a decision is filled on the next bar.
type OrderKind int

const (
	// OrderMarket fills at the next bar's open.
	OrderMarket OrderKind = iota
	// OrderStop fills only if the next bar trades through Trigger.
	OrderStop
)

// Bracket holds exit levels attached to an entry. A zero level is unused.
// Legs are checked in the order Target, StopLoss, Cap.
type Bracket struct {
	Target   float64 `json:"target"`
	StopLoss float64 `json:"stop_loss"`
	Cap      float64 `json:"cap"`
}

// Order describes the fill of a decision.
type Order struct {
	Kind    OrderKind
	Trigger float64
	Bracket *Bracket
}

// Decision is a rule's answer for one bar.
type Decision struct {
	Signal model.Signal
	Order  Order
	Reason string
}

var none = Decision{}

func buy(reason string) Decision {
	return Decision{Signal: model.SignalBuy, Reason: reason}
}

func sell(reason string) Decision {
	return Decision{Signal: model.SignalSell, Reason: reason}
}

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Params returns the effective parameters after defaults are applied.
	Params() Params

	// Bind precomputes indicators over an ascending series.
	Bind(bars []model.Bar) Rule
}

// Rule evaluates a bound strategy bar by bar.
type Rule interface {
	// Decide returns the decision at bar i. holding reports whether a
	// position is open when bar i closes.
	Decide(i int, holding bool) Decision
}

// Signal evaluates s at the most recent bar of bars, which may be in either
// date order. A Buy is reported when a flat account would enter, a Sell when
// an open position would be closed by signal.
func Signal(s Strategy, bars []model.Bar) (model.Signal, error) {
	asc, _, err := series.Normalize(bars)
	if err != nil {
		return model.SignalNone, fmt.Errorf("strategy %s: %w", s.Name(), err)
	}
	rule := s.Bind(asc)
	last := len(asc) - 1
	if d := rule.Decide(last, false); d.Signal == model.SignalBuy {
		return model.SignalBuy, nil
	}
	if d := rule.Decide(last, true); d.Signal == model.SignalSell {
		return model.SignalSell, nil
	}
	return model.SignalNone, nil
}
