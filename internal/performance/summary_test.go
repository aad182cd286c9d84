package performance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"replaylab/internal/ledger"
)

func closedTrade(pnl float64, exitTime int64) ledger.Trade {
	return ledger.Trade{
		Side:        ledger.SideBuy,
		EntryPrice:  100,
		EntryTime:   exitTime - 60_000,
		Quantity:    1,
		ExitPrice:   100 + pnl,
		ExitTime:    exitTime,
		Status:      ledger.StatusClosed,
		RealizedPnL: pnl,
	}
}

func TestSummarize(t *testing.T) {
	t.Run("空集合全零", func(t *testing.T) {
		s := Summarize(nil, 10000)
		assert.Equal(t, Summary{}, s)
	})

	t.Run("混合盈亏", func(t *testing.T) {
		trades := []ledger.Trade{
			closedTrade(10, 1000),
			closedTrade(-5, 2000),
			closedTrade(20, 3000),
			closedTrade(-10, 4000),
		}
		s := Summarize(trades, 10000)
		assert.Equal(t, 4, s.TotalTrades)
		assert.Equal(t, 2, s.WinningTrades)
		assert.Equal(t, 2, s.LosingTrades)
		assert.InDelta(t, 50.0, s.WinRate, 1e-9)
		assert.InDelta(t, 30.0/15.0, s.ProfitFactor, 1e-9)
		assert.InDelta(t, 15.0, s.TotalReturn, 1e-9)
		assert.InDelta(t, 15.0, s.AverageWin, 1e-9)
		assert.InDelta(t, -7.5, s.AverageLoss, 1e-9)
		assert.InDelta(t, 20.0, s.BestTrade, 1e-9)
		assert.InDelta(t, -10.0, s.WorstTrade, 1e-9)
		// 峰值出现在 +10-5+20=25，随后 -10 → 回撤 10。
		assert.InDelta(t, 10.0, s.MaxDrawdown, 1e-9)
	})

	t.Run("全部盈利时 ProfitFactor 为正无穷", func(t *testing.T) {
		s := Summarize([]ledger.Trade{closedTrade(5, 1000), closedTrade(3, 2000)}, 10000)
		assert.True(t, math.IsInf(s.ProfitFactor, 1))
		assert.InDelta(t, 100.0, s.WinRate, 1e-9)
		assert.InDelta(t, 0.0, s.MaxDrawdown, 1e-9)
	})

	t.Run("全部亏损时 ProfitFactor 为 0", func(t *testing.T) {
		s := Summarize([]ledger.Trade{closedTrade(-5, 1000), closedTrade(-3, 2000)}, 10000)
		assert.InDelta(t, 0.0, s.ProfitFactor, 1e-9)
		assert.InDelta(t, 0.0, s.WinRate, 1e-9)
		assert.InDelta(t, 8.0, s.MaxDrawdown, 1e-9)
	})

	t.Run("盈亏全为零", func(t *testing.T) {
		s := Summarize([]ledger.Trade{closedTrade(0, 1000)}, 10000)
		assert.Equal(t, 1, s.TotalTrades)
		assert.Equal(t, 0, s.WinningTrades)
		assert.Equal(t, 0, s.LosingTrades)
		assert.InDelta(t, 0.0, s.ProfitFactor, 1e-9)
	})

	t.Run("回撤按平仓时间排序", func(t *testing.T) {
		// 乱序传入：时间序为 +30、-20、+5；若按传入序算会把 -20 记在峰值前。
		trades := []ledger.Trade{
			closedTrade(-20, 2000),
			closedTrade(5, 3000),
			closedTrade(30, 1000),
		}
		s := Summarize(trades, 10000)
		assert.InDelta(t, 20.0, s.MaxDrawdown, 1e-9)
	})

	t.Run("回撤百分比参照峰值权益", func(t *testing.T) {
		trades := []ledger.Trade{
			closedTrade(100, 1000),
			closedTrade(-50, 2000),
		}
		s := Summarize(trades, 900)
		assert.InDelta(t, 50.0, s.MaxDrawdown, 1e-9)
		assert.InDelta(t, 5.0, s.MaxDrawdownPct, 1e-9) // 50 / (900+100) * 100
	})
}

func TestSanitized(t *testing.T) {
	s := Summary{ProfitFactor: math.Inf(1)}
	assert.InDelta(t, 1e9, s.Sanitized().ProfitFactor, 1e-9)

	ok := Summary{ProfitFactor: 2.5}
	assert.InDelta(t, 2.5, ok.Sanitized().ProfitFactor, 1e-9)
}
