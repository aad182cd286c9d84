package market

import (
	"fmt"
)

// Series 是同一 symbol/interval 下按 open_time 严格递增的不可变 K 线序列。
// 构建后不会原地修改；换品种或换周期时整体替换。
type Series struct {
	symbol   string
	interval string
	candles  []Candle
}

// NewSeries 校验并构建序列：时间必须严格递增、无重复，且每根 K 线满足 OHLC 不变量。
func NewSeries(symbol, interval string, candles []Candle) (*Series, error) {
	own := make([]Candle, len(candles))
	copy(own, candles)
	var prev int64
	for i, c := range own {
		if !c.Valid() {
			return nil, fmt.Errorf("candle %d 非法: low=%.8f high=%.8f open=%.8f close=%.8f",
				i, c.Low, c.High, c.Open, c.Close)
		}
		if i > 0 && c.OpenTime <= prev {
			return nil, fmt.Errorf("candle %d 时间未递增: %d <= %d", i, c.OpenTime, prev)
		}
		prev = c.OpenTime
	}
	return &Series{symbol: symbol, interval: interval, candles: own}, nil
}

func (s *Series) Symbol() string   { return s.symbol }
func (s *Series) Interval() string { return s.interval }

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.candles)
}

// At 返回指定下标的 K 线；越界返回 false。
func (s *Series) At(idx int) (Candle, bool) {
	if s == nil || idx < 0 || idx >= len(s.candles) {
		return Candle{}, false
	}
	return s.candles[idx], true
}

// Prefix 返回 [0, endIdx] 的可见前缀（闭区间）。endIdx 超界时按末尾截断。
func (s *Series) Prefix(endIdx int) []Candle {
	if s == nil || endIdx < 0 {
		return nil
	}
	if endIdx >= len(s.candles) {
		endIdx = len(s.candles) - 1
	}
	return s.candles[:endIdx+1]
}

// Closes 提取前缀收盘价，供指标计算使用。
func (s *Series) Closes(endIdx int) []float64 {
	prefix := s.Prefix(endIdx)
	out := make([]float64, len(prefix))
	for i, c := range prefix {
		out[i] = c.Close
	}
	return out
}

// All 返回底层切片的拷贝。
func (s *Series) All() []Candle {
	if s == nil {
		return nil
	}
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}
