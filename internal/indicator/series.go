package indicator

import (
	"replaylab/internal/market"
)

// Point 是指标序列中的一个点，时间取自产生它的那根 K 线。
type Point struct {
	Time  int64   `json:"time"`
	Value float64 `json:"value"`
}

// SMA 对可见前缀计算简单移动平均：第 i 点（i 从 p-1 起）为
// closes[i-p+1..i] 的算术平均。滚动求和实现，整体 O(n)。
// period 不足或超过长度时返回空序列（配置缺陷按降级处理，不报错）。
func SMA(candles []market.Candle, period int) []Point {
	n := len(candles)
	if period <= 0 || n < period {
		return nil
	}
	out := make([]Point, 0, n-period+1)
	var sum float64
	for i := 0; i < n; i++ {
		sum += candles[i].Close
		if i >= period {
			sum -= candles[i-period].Close
		}
		if i >= period-1 {
			out = append(out, Point{
				Time:  candles[i].OpenTime,
				Value: sum / float64(period),
			})
		}
	}
	return out
}

// RSI 按 Wilder 平滑计算相对强弱指标：
// 种子 avgGain/avgLoss 为前 period 个涨跌的简单平均，之后
// avg = (avg*(p-1) + new) / p。avgLoss 为 0 时 RSI 定义为 100（不得除零）。
// 需要 n >= period+1，否则返回空序列。
func RSI(candles []market.Candle, period int) []Point {
	n := len(candles)
	if period <= 0 || n < period+1 {
		return nil
	}
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	out := make([]Point, 0, n-period)
	out = append(out, Point{Time: candles[period].OpenTime, Value: rsiValue(avgGain, avgLoss)})
	for i := period + 1; i < n; i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, Point{Time: candles[i].OpenTime, Value: rsiValue(avgGain, avgLoss)})
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	v := 100 - 100/(1+rs)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
