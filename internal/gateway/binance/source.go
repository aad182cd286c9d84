package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"replaylab/internal/market"
	symbolpkg "replaylab/internal/pkg/symbol"
)

const maxHistoryLimit = 1500

// Config 描述 Binance 数据源参数。
type Config struct {
	RESTBaseURL string
	ProxyURL    string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.RESTBaseURL == "" {
		c.RESTBaseURL = "https://fapi.binance.com"
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	return c
}

// Source 基于 go-binance SDK 实现 market.Source（USDT 合约 K 线）。
type Source struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = strings.TrimSpace(final.RESTBaseURL)
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) Name() string { return "binance" }

func (s *Source) Fetch(ctx context.Context, req market.FetchRequest) ([]market.Candle, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	sym := strings.TrimSpace(req.Symbol)
	if sym == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	// Binance 要求无斜杠形态（ETH/USDT -> ETHUSDT）
	cleanSymbol := symbolpkg.ToExchange(sym)

	interval := strings.ToLower(strings.TrimSpace(req.Interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	svc := s.client.NewKlinesService().Symbol(cleanSymbol).Interval(interval).Limit(limit)
	kls, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrDataUnavailable, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	if tf, err := market.ParseTimeframe(interval); err == nil {
		out = dropUnclosedKline(out, tf.Duration, time.Now().UTC())
	}
	if len(out) == 0 {
		return nil, market.ErrDataUnavailable
	}
	return out, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

const klineGrace = 10 * time.Second

// dropUnclosedKline 去掉末尾尚未收盘的那根 K 线；Binance 的最后一根
// 可能是进行中的当前周期。
func dropUnclosedKline(klines []market.Candle, interval time.Duration, now time.Time) []market.Candle {
	if len(klines) == 0 || interval <= 0 {
		return klines
	}
	last := klines[len(klines)-1]
	if last.OpenTime <= 0 {
		return klines
	}
	closeTimeMs := last.OpenTime + interval.Milliseconds()
	if now.UnixMilli() < closeTimeMs+klineGrace.Milliseconds() {
		return klines[:len(klines)-1]
	}
	return klines
}
