package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"replaylab/internal/market"
	symbolpkg "replaylab/internal/pkg/symbol"
)

// Source 基于 Yahoo Finance 公共 chart API，覆盖股指与外汇品种。
type Source struct {
	baseURL string
	client  *http.Client
}

func New(base, proxyURL string) *Source {
	if base == "" {
		base = "https://query1.finance.yahoo.com"
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Source{
		baseURL: base,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (s *Source) Name() string { return "yahoo" }

// yahooSymbol 将内部形态转为 Yahoo ticker：外汇加 =X 后缀，指数原样。
func yahooSymbol(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	switch upper {
	case "SPX", "SPX500", "SP500":
		return "^GSPC"
	case "NDX", "NAS100":
		return "^NDX"
	}
	if symbolpkg.IsFX(upper) {
		return symbolpkg.ToExchange(upper) + "=X"
	}
	return upper
}

var intervalMap = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
	"1h": "60m", "4h": "60m", "1d": "1d", "1w": "1wk",
}

func (s *Source) Fetch(ctx context.Context, req market.FetchRequest) ([]market.Candle, error) {
	interval, ok := intervalMap[strings.ToLower(strings.TrimSpace(req.Interval))]
	if !ok {
		return nil, fmt.Errorf("yahoo 不支持周期: %s", req.Interval)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 500
	}
	u, _ := url.Parse(s.baseURL)
	u.Path = "/v8/finance/chart/" + yahooSymbol(req.Symbol)
	q := u.Query()
	q.Set("interval", interval)
	q.Set("range", rangeForInterval(interval))
	u.RawQuery = q.Encode()

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	httpReq.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: yahoo 状态码 %d", market.ErrDataUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrDataUnavailable, err)
	}
	candles := parseChart(body)
	if len(candles) == 0 {
		return nil, market.ErrDataUnavailable
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// parseChart 用 gjson 从 chart 响应中抽取并行数组并拼成 K 线。
// Yahoo 偶尔在个别槽位返回 null，遇到即跳过整根。
func parseChart(body []byte) []market.Candle {
	root := gjson.GetBytes(body, "chart.result.0")
	if !root.Exists() {
		return nil
	}
	timestamps := root.Get("timestamp").Array()
	quote := root.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	n := len(timestamps)
	out := make([]market.Candle, 0, n)
	for i := 0; i < n; i++ {
		if i >= len(opens) || i >= len(highs) || i >= len(lows) || i >= len(closes) {
			break
		}
		if opens[i].Type == gjson.Null || closes[i].Type == gjson.Null {
			continue
		}
		openMs := timestamps[i].Int() * 1000
		c := market.Candle{
			OpenTime:  openMs,
			CloseTime: openMs, // chart API 不给收盘时间，后续由周期推导
			Open:      opens[i].Float(),
			High:      highs[i].Float(),
			Low:       lows[i].Float(),
			Close:     closes[i].Float(),
		}
		if i < len(volumes) && volumes[i].Type != gjson.Null {
			c.Volume = volumes[i].Float()
		}
		if !c.Valid() {
			continue
		}
		out = append(out, c)
	}
	return out
}

func rangeForInterval(interval string) string {
	switch interval {
	case "1m", "5m":
		return "5d"
	case "15m", "30m", "60m":
		return "1mo"
	case "1d":
		return "2y"
	default:
		return "5y"
	}
}
