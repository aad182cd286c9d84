package visual

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replaylab/internal/indicator"
	"replaylab/internal/market"
)

func TestRenderHTML(t *testing.T) {
	candles := market.Synthetic("EURUSD", "1h", 30)

	t.Run("空序列报错", func(t *testing.T) {
		_, err := RenderHTML(ChartInput{Symbol: "EURUSD", Interval: "1h"})
		assert.Error(t, err)
	})

	t.Run("纯 K 线", func(t *testing.T) {
		html, err := RenderHTML(ChartInput{Symbol: "eurusd", Interval: "1h", Candles: candles})
		require.NoError(t, err)
		assert.Contains(t, string(html), "EURUSD 1h replay")
		assert.Contains(t, string(html), "kline")
	})

	t.Run("MA 叠加", func(t *testing.T) {
		ma := indicator.SMA(candles, 5)
		html, err := RenderHTML(ChartInput{
			Symbol:   "EURUSD",
			Interval: "1h",
			Candles:  candles,
			MA:       ma,
			MAPeriod: 5,
		})
		require.NoError(t, err)
		assert.Contains(t, string(html), "MA5")
	})
}
