package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replaylab/internal/market"
)

func candlesFromCloses(closes ...float64) []market.Candle {
	out := make([]market.Candle, 0, len(closes))
	for i, c := range closes {
		openTime := int64(1_700_000_000_000) + int64(i)*60_000
		out = append(out, market.Candle{
			OpenTime:  openTime,
			CloseTime: openTime + 60_000 - 1,
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		})
	}
	return out
}

func TestSMA(t *testing.T) {
	t.Run("基础窗口", func(t *testing.T) {
		candles := candlesFromCloses(10, 20, 30, 40)
		points := SMA(candles, 3)
		require.Len(t, points, 2)
		assert.Equal(t, candles[2].OpenTime, points[0].Time)
		assert.InDelta(t, 20.0, points[0].Value, 1e-9)
		assert.Equal(t, candles[3].OpenTime, points[1].Time)
		assert.InDelta(t, 30.0, points[1].Value, 1e-9)
	})

	t.Run("数据不足返回空", func(t *testing.T) {
		assert.Empty(t, SMA(candlesFromCloses(10, 20), 3))
		assert.Empty(t, SMA(nil, 3))
	})

	t.Run("period=1 原样返回", func(t *testing.T) {
		candles := candlesFromCloses(5, 7, 9)
		points := SMA(candles, 1)
		require.Len(t, points, 3)
		for i, p := range points {
			assert.InDelta(t, candles[i].Close, p.Value, 1e-9)
		}
	})

	t.Run("period 非法返回空", func(t *testing.T) {
		assert.Empty(t, SMA(candlesFromCloses(1, 2, 3), 0))
		assert.Empty(t, SMA(candlesFromCloses(1, 2, 3), -1))
	})

	t.Run("长序列滚动窗口", func(t *testing.T) {
		closes := make([]float64, 100)
		for i := range closes {
			closes[i] = float64(i + 1)
		}
		points := SMA(candlesFromCloses(closes...), 10)
		require.Len(t, points, 91)
		// 1..10 的均值是 5.5，窗口每右移一格均值 +1。
		for i, p := range points {
			assert.InDelta(t, 5.5+float64(i), p.Value, 1e-9)
		}
	})
}

func TestRSI(t *testing.T) {
	t.Run("Wilder 种子值", func(t *testing.T) {
		candles := candlesFromCloses(10, 12, 11, 13)
		points := RSI(candles, 2)
		require.Len(t, points, 2)
		// 前两个变动 +2、-1：avgGain=1 avgLoss=0.5 → RS=2 → RSI≈66.67
		assert.Equal(t, candles[2].OpenTime, points[0].Time)
		assert.InDelta(t, 100-100/(1+1.0/0.5), points[0].Value, 1e-9)
		// 第三个变动 +2：avgGain=(1*1+2)/2=1.5 avgLoss=(0.5*1+0)/2=0.25
		rs := 1.5 / 0.25
		assert.InDelta(t, 100-100/(1+rs), points[1].Value, 1e-9)
	})

	t.Run("单边上涨饱和到 100", func(t *testing.T) {
		candles := candlesFromCloses(1, 2, 3, 4, 5, 6, 7, 8)
		points := RSI(candles, 3)
		require.NotEmpty(t, points)
		for _, p := range points {
			assert.InDelta(t, 100.0, p.Value, 1e-9)
		}
	})

	t.Run("单边下跌趋近于 0", func(t *testing.T) {
		candles := candlesFromCloses(8, 7, 6, 5, 4, 3, 2, 1)
		points := RSI(candles, 3)
		require.NotEmpty(t, points)
		for _, p := range points {
			assert.InDelta(t, 0.0, p.Value, 1e-9)
		}
	})

	t.Run("值域钳制在 0..100", func(t *testing.T) {
		candles := candlesFromCloses(50, 51.3, 49.2, 52.8, 48.1, 53.9, 47.5, 55, 46, 57)
		for _, p := range RSI(candles, 4) {
			assert.GreaterOrEqual(t, p.Value, 0.0)
			assert.LessOrEqual(t, p.Value, 100.0)
		}
	})

	t.Run("数据不足返回空", func(t *testing.T) {
		// 需要 period+1 根才有第一个点。
		assert.Empty(t, RSI(candlesFromCloses(1, 2, 3), 3))
		assert.NotEmpty(t, RSI(candlesFromCloses(1, 2, 3, 4), 3))
	})

	t.Run("首点落在 period 下标", func(t *testing.T) {
		candles := candlesFromCloses(10, 11, 12, 13, 14, 15)
		points := RSI(candles, 4)
		require.Len(t, points, 2)
		assert.Equal(t, candles[4].OpenTime, points[0].Time)
		assert.Equal(t, candles[5].OpenTime, points[1].Time)
	})

	t.Run("确定性", func(t *testing.T) {
		candles := candlesFromCloses(50, 51.3, 49.2, 52.8, 48.1, 53.9, 47.5)
		a := RSI(candles, 3)
		b := RSI(candles, 3)
		assert.Equal(t, a, b)
	})
}
