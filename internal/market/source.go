package market

import (
	"context"
	"errors"
	"fmt"

	"replaylab/internal/logger"
)

// ErrDataUnavailable 表示数据源失败或返回空结果，调用方应降级到合成数据。
var ErrDataUnavailable = errors.New("market data unavailable")

// FetchRequest 描述一次远端 K 线请求。
type FetchRequest struct {
	Symbol   string
	Interval string
	Limit    int
}

// Source 统一不同数据提供方的拉取行为。
type Source interface {
	Fetch(ctx context.Context, req FetchRequest) ([]Candle, error)
	Name() string
}

// Load 拉取一次 K 线并构建 Series。任何失败（包括空结果）立即降级到
// 确定性的合成序列，不做内部重试——回测工具必须在离线环境下可用。
// 返回值第二项标记是否使用了合成数据。
func Load(ctx context.Context, src Source, symbol, interval string, limit int) (*Series, bool, error) {
	if limit <= 0 {
		limit = 500
	}
	if src != nil {
		candles, err := src.Fetch(ctx, FetchRequest{Symbol: symbol, Interval: interval, Limit: limit})
		if err == nil && len(candles) > 0 {
			series, serr := NewSeries(symbol, interval, candles)
			if serr == nil {
				return series, false, nil
			}
			logger.Warnf("[market] %s %s 数据校验失败: %v，降级合成数据", symbol, interval, serr)
		} else if err != nil {
			logger.Warnf("[market] %s %s 拉取失败: %v，降级合成数据", symbol, interval, err)
		} else {
			logger.Warnf("[market] %s %s 返回空结果，降级合成数据", symbol, interval)
		}
	}
	series, err := NewSeries(symbol, interval, Synthetic(symbol, interval, limit))
	if err != nil {
		return nil, false, fmt.Errorf("合成序列构建失败: %w", err)
	}
	return series, true, nil
}
