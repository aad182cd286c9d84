package market

import (
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"
)

// syntheticBasePrice 根据 symbol 选一个量级合理的起始价。
func syntheticBasePrice(symbol string) float64 {
	upper := strings.ToUpper(symbol)
	switch {
	case strings.HasPrefix(upper, "BTC"):
		return 40000
	case strings.HasPrefix(upper, "ETH"):
		return 2500
	case strings.Contains(upper, "JPY"):
		return 150
	case len(upper) == 6 || strings.Contains(upper, "/"):
		// FX 形态（EURUSD、EUR/USD）
		return 1.1
	default:
		return 100
	}
}

// Synthetic 生成确定性的随机游走 K 线序列：同样的 symbol/interval/limit
// 必然产出逐位相同的结果，保证离线降级后 UI 与测试均可复现。
func Synthetic(symbol, interval string, limit int) []Candle {
	if limit <= 0 {
		limit = 500
	}
	tf, err := ParseTimeframe(interval)
	if err != nil {
		tf = Timeframe{Key: "1h", Duration: time.Hour}
	}
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(strings.TrimSpace(symbol))))
	h.Write([]byte("@"))
	h.Write([]byte(strings.ToLower(strings.TrimSpace(interval))))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	price := syntheticBasePrice(symbol)
	// 起点对齐到周期网格，且与墙钟无关：固定锚点保证确定性。
	const anchorMs = int64(1_700_000_000_000) // 2023-11-14T22:13:20Z 对齐前
	step := tf.Millis()
	start := (anchorMs/step)*step - int64(limit)*step

	out := make([]Candle, 0, limit)
	for i := 0; i < limit; i++ {
		open := price
		drift := price * 0.002 * rng.NormFloat64()
		close := open + drift
		if close <= 0 {
			close = open * 0.99
		}
		span := math.Abs(drift) + price*0.001*rng.Float64()
		high := math.Max(open, close) + span*rng.Float64()
		low := math.Min(open, close) - span*rng.Float64()
		if low <= 0 {
			low = math.Min(open, close) * 0.995
		}
		openTime := start + int64(i)*step
		out = append(out, Candle{
			OpenTime:  openTime,
			CloseTime: openTime + step - 1,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    float64(rng.Intn(9000) + 1000),
		})
		price = close
	}
	return out
}
