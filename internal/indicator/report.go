package indicator

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"replaylab/internal/market"
)

// Settings 描述扩展指标的参数。
type Settings struct {
	EMA EMASettings `json:"ema"`
	RSI RSISettings `json:"rsi"`
}

// EMASettings 描述 EMA 指标参数。
type EMASettings struct {
	Fast int `json:"fast,omitempty" mapstructure:"fast" yaml:"fast"`
	Mid  int `json:"mid,omitempty" mapstructure:"mid" yaml:"mid"`
	Slow int `json:"slow,omitempty" mapstructure:"slow" yaml:"slow"`
}

// RSISettings 描述 RSI 指标参数。
type RSISettings struct {
	Period     int     `json:"period,omitempty" mapstructure:"period" yaml:"period"`
	Oversold   float64 `json:"oversold,omitempty" mapstructure:"oversold" yaml:"oversold"`
	Overbought float64 `json:"overbought,omitempty" mapstructure:"overbought" yaml:"overbought"`
}

// Value 保存单个指标的最新值、序列与状态。
type Value struct {
	Latest float64   `json:"latest"`
	Series []float64 `json:"series,omitempty"`
	State  string    `json:"state,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// Report 汇总某个可见前缀的扩展指标输出，供图表叠加展示。
type Report struct {
	Count  int              `json:"count"`
	Values map[string]Value `json:"values"`
}

// ComputeReport 基于 talib 计算 EMA/MACD/ATR 等扩展指标。
// 仅用于展示叠加；核心的 SMA/RSI 序列由本包的纯实现产出。
func ComputeReport(candles []market.Candle, cfg Settings) (Report, error) {
	rep := Report{
		Count:  len(candles),
		Values: make(map[string]Value),
	}
	if len(candles) == 0 {
		return rep, fmt.Errorf("no candles")
	}
	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	if cfg.EMA.Fast <= 0 {
		cfg.EMA.Fast = 21
	}
	if cfg.EMA.Mid <= 0 {
		cfg.EMA.Mid = 50
	}
	if cfg.EMA.Slow <= 0 {
		cfg.EMA.Slow = 200
	}
	lastClose := closes[len(closes)-1]
	for name, period := range map[string]int{
		"ema_fast": cfg.EMA.Fast,
		"ema_mid":  cfg.EMA.Mid,
		"ema_slow": cfg.EMA.Slow,
	} {
		series := trimLeadingZeros(sanitizeSeries(talib.Ema(closes, period)))
		rep.Values[name] = Value{
			Latest: lastValid(series),
			Series: series,
			State:  relativeState(lastClose, lastValid(series)),
			Note:   fmt.Sprintf("EMA%d vs price", period),
		}
	}

	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	histSeries := sanitizeSeries(hist)
	macdState := "flat"
	switch {
	case lastValid(histSeries) > 0:
		macdState = "bullish"
	case lastValid(histSeries) < 0:
		macdState = "bearish"
	}
	rep.Values["macd"] = Value{
		Latest: lastValid(sanitizeSeries(macd)),
		Series: histSeries,
		State:  macdState,
		Note:   fmt.Sprintf("signal=%.4f", lastValid(sanitizeSeries(signal))),
	}

	atrSeries := sanitizeSeries(talib.Atr(highs, lows, closes, 14))
	rep.Values["atr"] = Value{
		Latest: lastValid(atrSeries),
		Series: atrSeries,
		State:  "volatility",
		Note:   "period=14",
	}

	return rep, nil
}

func sanitizeSeries(src []float64) []float64 {
	out := make([]float64, 0, len(src))
	for _, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// trimLeadingZeros drops TALib's zero-seeded EMA values so plots start when enough candles exist.
func trimLeadingZeros(series []float64) []float64 {
	start := 0
	for start < len(series) && math.Abs(series[start]) <= 1e-9 {
		start++
	}
	return series[start:]
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if !math.IsNaN(series[i]) && !math.IsInf(series[i], 0) {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	if ref == 0 {
		return "unknown"
	}
	switch {
	case price > ref*1.002:
		return "above"
	case price < ref*0.998:
		return "below"
	default:
		return "touch"
	}
}
