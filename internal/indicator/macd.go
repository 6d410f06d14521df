package indicator

// MACDLines holds the MACD line, its signal line and their difference.
type MACDLines struct {
	MACD   []float64
	Signal []float64
	Diff   []float64
}

// MACD computes EMA(fast) - EMA(slow) of closes and its EMA(sign) signal
// line. Each EMA reports only after its span has been seen, so the MACD line
// starts at index slow-1 and the signal and difference at slow+sign-2.
func MACD(closes []float64, fast, slow, sign int) MACDLines {
	fastLine := Run(NewEMA(fast), closes)
	slowLine := Run(NewEMA(slow), closes)

	macd := nans(len(closes))
	for i := range closes {
		if !Missing(fastLine[i]) && !Missing(slowLine[i]) {
			macd[i] = fastLine[i] - slowLine[i]
		}
	}

	signal := runSkipping(NewEMA(sign), macd)
	diff := nans(len(closes))
	for i := range closes {
		if !Missing(macd[i]) && !Missing(signal[i]) {
			diff[i] = macd[i] - signal[i]
		}
	}
	return MACDLines{MACD: macd, Signal: signal, Diff: diff}
}

// MACDDiff returns only the MACD histogram (MACD line minus signal line).
func MACDDiff(closes []float64, fast, slow, sign int) []float64 {
	return MACD(closes, fast, slow, sign).Diff
}
