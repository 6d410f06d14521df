package model

// ResultRow is one ranked line of a backtest report.
type ResultRow struct {
	Symbol      string  `json:"symbol"`
	ROI         float64 `json:"roi_pct"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
	Buys        int     `json:"buys"`
	Sells       int     `json:"sells"`
	Days        int     `json:"days"`
	AvgHoldDays float64 `json:"avg_hold_days"`
}

// Report is a ranked, truncated set of rows for one strategy run.
type Report struct {
	RunID    string             `json:"run_id"`
	Strategy string             `json:"strategy"`
	Params   map[string]float64 `json:"params,omitempty"`
	Universe string             `json:"universe"`
	Rows     []ResultRow        `json:"rows"`
	Skipped  int                `json:"skipped"`
	Warnings []string           `json:"warnings,omitempty"`
}
