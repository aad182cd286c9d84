package indicator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replaylab/internal/market"
)

func TestComputeReport(t *testing.T) {
	t.Run("空序列报错", func(t *testing.T) {
		_, err := ComputeReport(nil, Settings{})
		assert.Error(t, err)
	})

	t.Run("默认参数齐全", func(t *testing.T) {
		candles := market.Synthetic("BTCUSDT", "1h", 300)
		rep, err := ComputeReport(candles, Settings{})
		require.NoError(t, err)
		assert.Equal(t, 300, rep.Count)
		for _, key := range []string{"ema_fast", "ema_mid", "ema_slow", "macd", "atr"} {
			assert.Contains(t, rep.Values, key)
		}
		assert.NotZero(t, rep.Values["ema_fast"].Latest)
		assert.NotZero(t, rep.Values["atr"].Latest)
		assert.Contains(t, []string{"above", "below", "touch"}, rep.Values["ema_fast"].State)
		assert.Contains(t, []string{"bullish", "bearish", "flat"}, rep.Values["macd"].State)
	})
}

func TestRelativeState(t *testing.T) {
	assert.Equal(t, "above", relativeState(101, 100))
	assert.Equal(t, "below", relativeState(99, 100))
	assert.Equal(t, "touch", relativeState(100.1, 100))
	assert.Equal(t, "unknown", relativeState(100, 0))
}

func TestTrimLeadingZeros(t *testing.T) {
	assert.Equal(t, []float64{1.5, 2}, trimLeadingZeros([]float64{0, 0, 1.5, 2}))
	assert.Empty(t, trimLeadingZeros([]float64{0, 0}))
	assert.Equal(t, []float64{3}, trimLeadingZeros([]float64{3}))
}
