package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-backtest/internal/model"
)

func twoBars() []model.Bar {
	d := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	return []model.Bar{
		{Symbol: "ACME", Date: d, Open: 99, High: 102, Low: 97, Close: 101},
		{Symbol: "ACME", Date: d.AddDate(0, 0, 1), Open: 101, High: 105, Low: 98, Close: 104},
	}
}

func TestPlan_FromBars(t *testing.T) {
	plan, warnings, err := Plan(twoBars(), Request{Budget: 10000, Risk: 400})
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "ACME", plan.Symbol)
	assert.Equal(t, 105.0, plan.Entry)
	assert.Equal(t, 97.0, plan.StopLoss)
	assert.Equal(t, 8.0, plan.RiskPerShare)
	assert.Equal(t, int64(50), plan.Quantity)
	assert.Equal(t, 121.0, plan.Target)
	assert.Equal(t, 16.0, plan.ProfitPerShare)
	assert.Equal(t, 7.62, plan.StopLossPct)
	assert.Equal(t, 15.24, plan.TargetPct)
	assert.Equal(t, 5250.0, plan.Investment)
	assert.Equal(t, 400.0, plan.MaxLoss)
	assert.Equal(t, 800.0, plan.MaxGain)
}

func TestPlan_OrderIndependent(t *testing.T) {
	bars := twoBars()
	desc := []model.Bar{bars[1], bars[0]}

	a, _, err := Plan(bars, Request{Budget: 10000, Risk: 400, Delta: DefaultDelta})
	require.NoError(t, err)
	b, _, err := Plan(desc, Request{Budget: 10000, Risk: 400, Delta: DefaultDelta})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPlan_Delta(t *testing.T) {
	plan, _, err := Plan(twoBars(), Request{Budget: 10000, Risk: 400, Delta: 0.01})
	require.NoError(t, err)

	assert.Equal(t, 106.05, plan.Entry)
	assert.Equal(t, 96.03, plan.StopLoss)
	assert.Equal(t, 10.02, plan.RiskPerShare)
	assert.Equal(t, int64(39), plan.Quantity)
	assert.Equal(t, 126.09, plan.Target)
}

func TestPlan_BudgetCapsQuantity(t *testing.T) {
	plan, _, err := Plan(twoBars(), Request{Budget: 1000, Risk: 400})
	require.NoError(t, err)
	assert.Equal(t, int64(9), plan.Quantity)

	plan, _, err = Plan(twoBars(), Request{Budget: 1000, Risk: 400, Leverage: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(47), plan.Quantity)
}

func TestPlan_Unaffordable(t *testing.T) {
	_, _, err := Plan(twoBars(), Request{Budget: 100, Risk: 400})
	assert.ErrorIs(t, err, ErrUnaffordable)

	_, _, err = Plan(twoBars(), Request{Budget: 10000, Risk: 5})
	assert.ErrorIs(t, err, ErrUnaffordable)

	plan, _, err := Plan(twoBars(), Request{Budget: 100, Risk: 400, Leverage: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1), plan.Quantity)
}

func TestPlan_GreedyRatioWarns(t *testing.T) {
	plan, warnings, err := Plan(twoBars(), Request{Budget: 10000, Risk: 400, RewardRatio: 3})
	require.NoError(t, err)
	assert.Len(t, warnings, 1)
	assert.Equal(t, 129.0, plan.Target)
}

func TestPlan_ManualLevels(t *testing.T) {
	plan, _, err := Plan(twoBars(), Request{Budget: 10000, Risk: 400, Entry: 110, StopLoss: 100})
	require.NoError(t, err)
	assert.Equal(t, 10.0, plan.RiskPerShare)
	assert.Equal(t, int64(40), plan.Quantity)
	assert.Equal(t, 130.0, plan.Target)

	_, _, err = Plan(twoBars(), Request{Budget: 10000, Risk: 400, Entry: 100, StopLoss: 100})
	assert.ErrorIs(t, err, ErrInvalidStop)
}

func TestPlan_NeedsTwoBars(t *testing.T) {
	_, _, err := Plan(twoBars()[:1], Request{Budget: 10000, Risk: 400})
	assert.Error(t, err)
}
