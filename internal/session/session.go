package session

import (
	"fmt"
	"time"

	"replaylab/internal/indicator"
	"replaylab/internal/ledger"
	"replaylab/internal/market"
	"replaylab/internal/performance"
	"replaylab/internal/pkg/symbol"
	"replaylab/internal/replay"
)

// Session 是一次回测复盘：一条 K 线序列、一个回放游标、一本模拟账本。
// 领域状态全部在这里，渲染层只读快照。
type Session struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"`
	Synthetic bool      `json:"synthetic"`
	CreatedAt time.Time `json:"created_at"`

	series     *market.Series
	controller *replay.Controller
	book       *ledger.Ledger
}

// Series 返回底层序列。
func (s *Session) Series() *market.Series { return s.series }

// Controller 返回回放控制器。
func (s *Session) Controller() *replay.Controller { return s.controller }

// Ledger 返回模拟账本。
func (s *Session) Ledger() *ledger.Ledger { return s.book }

// quote 取游标当前 K 线的收盘价与时间作为成交基准。
func (s *Session) quote() (ledger.Quote, error) {
	candle, err := s.controller.Current()
	if err != nil {
		return ledger.Quote{}, ledger.ErrNoCurrentPrice
	}
	return ledger.Quote{Price: candle.Close, Time: candle.OpenTime}, nil
}

// OpenTrade 以游标当前收盘价开仓。
func (s *Session) OpenTrade(req ledger.OpenRequest) (ledger.Trade, error) {
	quote, err := s.quote()
	if err != nil {
		return ledger.Trade{}, err
	}
	return s.book.Open(req, quote)
}

// CloseTrade 以游标当前收盘价平仓。
func (s *Session) CloseTrade(tradeID string) (ledger.Trade, error) {
	quote, err := s.quote()
	if err != nil {
		return ledger.Trade{}, err
	}
	return s.book.Close(tradeID, quote)
}

// UnrealizedPnL 基于当前游标即时计算浮盈；seek 之后立即生效。
func (s *Session) UnrealizedPnL() float64 {
	quote, err := s.quote()
	if err != nil {
		return 0
	}
	return s.book.UnrealizedPnL(quote)
}

// Performance 对已平仓子集按需聚合绩效。
func (s *Session) Performance() performance.Summary {
	return performance.Summarize(s.book.ClosedTrades(), s.book.StartingBalance())
}

// IndicatorSeries 对可见前缀整段重算指标（不做增量补点，避免漂移）。
// kind 为 ma 或 rsi；period 不足时返回空序列。
func (s *Session) IndicatorSeries(kind string, period int) ([]indicator.Point, error) {
	prefix := s.series.Prefix(s.controller.Index())
	switch kind {
	case "ma", "sma":
		return indicator.SMA(prefix, period), nil
	case "rsi":
		return indicator.RSI(prefix, period), nil
	default:
		return nil, fmt.Errorf("未知指标类型: %s", kind)
	}
}

// IndicatorReport 对可见前缀计算扩展指标报告。
func (s *Session) IndicatorReport(cfg indicator.Settings) (indicator.Report, error) {
	return indicator.ComputeReport(s.series.Prefix(s.controller.Index()), cfg)
}

// VisibleCandles 返回可见前缀。
func (s *Session) VisibleCandles() []market.Candle {
	return s.series.Prefix(s.controller.Index())
}

// IsFX 判断会话品种是否为外汇（决定价格展示精度）。
func (s *Session) IsFX() bool {
	return symbol.IsFX(s.Symbol)
}

// Status 是会话状态快照，供接口层返回。
type Status struct {
	ID              string          `json:"id"`
	Symbol          string          `json:"symbol"`
	Interval        string          `json:"interval"`
	Synthetic       bool            `json:"synthetic"`
	Cursor          replay.Snapshot `json:"cursor"`
	StartingBalance float64         `json:"starting_balance"`
	Balance         float64         `json:"balance"`
	UnrealizedPnL   float64         `json:"unrealized_pnl"`
	Equity          float64         `json:"equity"`
	OpenTrades      int             `json:"open_trades"`
	ClosedTrades    int             `json:"closed_trades"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Status 汇总快照：游标、余额、浮盈等。
func (s *Session) Status() Status {
	cursor := s.controller.Snapshot()
	cursor.Synthetic = s.Synthetic
	upnl := s.UnrealizedPnL()
	balance := s.book.Balance()
	return Status{
		ID:              s.ID,
		Symbol:          s.Symbol,
		Interval:        s.Interval,
		Synthetic:       s.Synthetic,
		Cursor:          cursor,
		StartingBalance: s.book.StartingBalance(),
		Balance:         balance,
		UnrealizedPnL:   upnl,
		Equity:          balance + upnl,
		OpenTrades:      len(s.book.OpenTrades()),
		ClosedTrades:    len(s.book.ClosedTrades()),
		CreatedAt:       s.CreatedAt,
	}
}

// Close 回收会话资源，确保 tick 源不再存活。
func (s *Session) Close() {
	s.controller.Close()
}
