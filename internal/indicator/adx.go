package indicator

import (
	"math"

	"equity-backtest/internal/model"
)

// ADXLines holds the directional indicators and the Average Directional Index.
type ADXLines struct {
	Plus  []float64 // +DI
	Minus []float64 // -DI
	ADX   []float64
}

// DirectionalMovement computes Wilder's +DI, -DI and ADX over w bars.
//
// True range and directional movement start at the second bar and are
// Wilder-smoothed, so ±DI is first defined at index w and ADX at 2w-1.
func DirectionalMovement(bars []model.Bar, w int) ADXLines {
	n := len(bars)
	lines := ADXLines{Plus: nans(n), Minus: nans(n), ADX: nans(n)}
	if w < 1 {
		return lines
	}

	tr, plusDM, minusDM := NewSMMA(w), NewSMMA(w), NewSMMA(w)
	adx := NewSMMA(w)

	for i := 1; i < n; i++ {
		cur, prev := bars[i], bars[i-1]
		up := cur.High - prev.High
		down := prev.Low - cur.Low

		pdm, mdm := 0.0, 0.0
		if up > down && up > 0 {
			pdm = up
		}
		if down > up && down > 0 {
			mdm = down
		}
		trueRange := math.Max(cur.High-cur.Low, math.Max(math.Abs(cur.High-prev.Close), math.Abs(cur.Low-prev.Close)))

		tr.Update(trueRange)
		plusDM.Update(pdm)
		minusDM.Update(mdm)
		if !tr.Ready() {
			continue
		}

		pdi, mdi := 0.0, 0.0
		if atr := tr.Value(); atr != 0 {
			pdi = 100 * plusDM.Value() / atr
			mdi = 100 * minusDM.Value() / atr
		}
		lines.Plus[i], lines.Minus[i] = pdi, mdi

		dx := 0.0
		if sum := pdi + mdi; sum != 0 {
			dx = 100 * math.Abs(pdi-mdi) / sum
		}
		adx.Update(dx)
		if adx.Ready() {
			lines.ADX[i] = adx.Value()
		}
	}
	return lines
}
