package binance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replaylab/internal/market"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "https://fapi.binance.com", cfg.RESTBaseURL)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)

	custom := Config{RESTBaseURL: "http://localhost:9999", HTTPTimeout: time.Second}.withDefaults()
	assert.Equal(t, "http://localhost:9999", custom.RESTBaseURL)
	assert.Equal(t, time.Second, custom.HTTPTimeout)
}

func TestNew(t *testing.T) {
	src, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, "binance", src.Name())

	_, err = New(Config{ProxyURL: "://bad"})
	assert.Error(t, err)
}

func TestDropUnclosedKline(t *testing.T) {
	interval := time.Minute
	base := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	klines := []market.Candle{
		{OpenTime: base.UnixMilli()},
		{OpenTime: base.Add(time.Minute).UnixMilli()},
	}

	t.Run("末根未收盘被丢弃", func(t *testing.T) {
		now := base.Add(time.Minute + 30*time.Second)
		out := dropUnclosedKline(klines, interval, now)
		assert.Len(t, out, 1)
	})

	t.Run("宽限期内仍视作未收盘", func(t *testing.T) {
		now := base.Add(2*time.Minute + 5*time.Second)
		out := dropUnclosedKline(klines, interval, now)
		assert.Len(t, out, 1)
	})

	t.Run("已收盘保留", func(t *testing.T) {
		now := base.Add(2*time.Minute + 30*time.Second)
		out := dropUnclosedKline(klines, interval, now)
		assert.Len(t, out, 2)
	})

	t.Run("空输入", func(t *testing.T) {
		assert.Empty(t, dropUnclosedKline(nil, interval, time.Now()))
	})
}
