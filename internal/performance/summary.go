package performance

import (
	"math"
	"sort"

	"replaylab/internal/ledger"
)

// Summary 汇总已平仓位的绩效指标，只在请求时重算，无内部状态。
type Summary struct {
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`      // 百分比，空账本为 0
	ProfitFactor   float64 `json:"profit_factor"` // grossLoss 为 0 且有盈利时为 +Inf
	TotalReturn    float64 `json:"total_return"`
	AverageWin     float64 `json:"average_win"`
	AverageLoss    float64 `json:"average_loss"`
	BestTrade      float64 `json:"best_trade"`
	WorstTrade     float64 `json:"worst_trade"`
	MaxDrawdown    float64 `json:"max_drawdown"`     // 绝对金额
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // 相对峰值权益的百分比，附加口径
}

// Summarize 对已平仓集合计算绩效。传入切片可为任意顺序，
// 回撤按平仓时间升序处理。
func Summarize(closed []ledger.Trade, startingBalance float64) Summary {
	var s Summary
	if len(closed) == 0 {
		return s
	}

	ordered := make([]ledger.Trade, len(closed))
	copy(ordered, closed)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime < ordered[j].ExitTime
	})

	var grossProfit, grossLoss float64
	var sumWin, sumLoss float64
	best := math.Inf(-1)
	worst := math.Inf(1)

	// 回撤：按平仓序累计盈亏，跟踪运行峰值。
	var running, peak, maxDD float64
	var maxDDPct float64
	for _, t := range ordered {
		pnl := t.RealizedPnL
		s.TotalTrades++
		s.TotalReturn += pnl
		if pnl > 0 {
			s.WinningTrades++
			grossProfit += pnl
			sumWin += pnl
		} else if pnl < 0 {
			s.LosingTrades++
			grossLoss += -pnl
			sumLoss += pnl
		}
		if pnl > best {
			best = pnl
		}
		if pnl < worst {
			worst = pnl
		}
		running += pnl
		if running > peak {
			peak = running
		}
		dd := peak - running
		if dd > maxDD {
			maxDD = dd
		}
		if equityPeak := startingBalance + peak; equityPeak > 0 {
			if pct := dd / equityPeak * 100; pct > maxDDPct {
				maxDDPct = pct
			}
		}
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	default:
		s.ProfitFactor = 0
	}
	if s.WinningTrades > 0 {
		s.AverageWin = sumWin / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AverageLoss = sumLoss / float64(s.LosingTrades)
	}
	s.BestTrade = best
	s.WorstTrade = worst
	s.MaxDrawdown = maxDD
	s.MaxDrawdownPct = maxDDPct
	return s
}

// profitFactorCap 是 +Inf 在 JSON 输出中的替身（encoding/json 不接受 Inf）。
const profitFactorCap = 1e9

// Sanitized 返回可安全 JSON 序列化的副本。
func (s Summary) Sanitized() Summary {
	if math.IsInf(s.ProfitFactor, 1) || s.ProfitFactor > profitFactorCap {
		s.ProfitFactor = profitFactorCap
	}
	return s
}
