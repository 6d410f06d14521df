package model

import (
	"encoding/json"
	"time"
)

// Bar is one trading interval for a single symbol.
// Prices are in the listing currency; 52-week fields are zero when the
// source did not supply them.
type Bar struct {
	Symbol  string    `json:"symbol"`
	Date    time.Time `json:"date"`
	Open    float64   `json:"open"`
	High    float64   `json:"high"`
	Low     float64   `json:"low"`
	Close   float64   `json:"close"`
	High52W float64   `json:"high_52w,omitempty"`
	Low52W  float64   `json:"low_52w,omitempty"`
}

// Green reports whether the bar closed above its open.
func (b *Bar) Green() bool {
	return b.Close > b.Open
}

// TypicalPrice returns (high + low + close) / 3.
func (b *Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}

// JSON returns the JSON-encoded bar (ignoring errors).
func (b *Bar) JSON() []byte {
	out, _ := json.Marshal(b)
	return out
}
