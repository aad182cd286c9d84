package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"replaylab/internal/logger"
)

// Side 是模拟仓位方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Status 是模拟仓位的生命周期状态。
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

var (
	// ErrNoCurrentPrice 表示游标无效（空序列），无法确定成交价。
	ErrNoCurrentPrice = errors.New("no current price at cursor")
	// ErrTradeNotFound 表示指定 ID 的模拟仓位不存在。
	ErrTradeNotFound = errors.New("trade not found")
	// ErrTradeAlreadyClosed 表示仓位已平，拒绝重复平仓。
	ErrTradeAlreadyClosed = errors.New("trade already closed")
)

// Quote 是游标当前 K 线给出的成交基准：收盘价 + 回放时间（非墙钟）。
type Quote struct {
	Price float64
	Time  int64
}

// Trade 是一笔模拟仓位。StopLoss/TakeProfit 仅存储展示，回放过程中
// 不会自动触发平仓（历史行为如此，自动触发属于将来的显式功能）。
// Closed 之后 ExitPrice/ExitTime/RealizedPnL 永久固定。
type Trade struct {
	ID          string  `json:"id"`
	Side        Side    `json:"side"`
	EntryPrice  float64 `json:"entry_price"`
	EntryTime   int64   `json:"entry_time"`
	Quantity    float64 `json:"quantity"`
	StopLoss    float64 `json:"stop_loss,omitempty"`
	TakeProfit  float64 `json:"take_profit,omitempty"`
	ExitPrice   float64 `json:"exit_price,omitempty"`
	ExitTime    int64   `json:"exit_time,omitempty"`
	Status      Status  `json:"status"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// pnlAt 返回该仓位在 price 下的盈亏（开仓时方向已定）。
func (t Trade) pnlAt(price float64) float64 {
	if t.Side == SideBuy {
		return (price - t.EntryPrice) * t.Quantity
	}
	return (t.EntryPrice - price) * t.Quantity
}

// Events 是账本变更事件钩子，持久化协作方借此落库；核心自身无持久化义务。
type Events struct {
	TradeOpened func(Trade)
	TradeClosed func(Trade)
}

// OpenRequest 描述一次开仓。
type OpenRequest struct {
	Side       Side    `json:"side"`
	Quantity   float64 `json:"quantity"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
}

// Ledger 维护单个会话的模拟仓位与余额。
// 恒等式：balance - startingBalance == 所有已平仓位 RealizedPnL 之和。
type Ledger struct {
	mu              sync.Mutex
	startingBalance float64
	balance         float64
	trades          []Trade
	byID            map[string]int
	events          Events
}

// New 创建账本。
func New(startingBalance float64) *Ledger {
	return &Ledger{
		startingBalance: startingBalance,
		balance:         startingBalance,
		byID:            make(map[string]int),
	}
}

// SetEvents 注册变更事件；传入零值可清除。
func (l *Ledger) SetEvents(ev Events) {
	l.mu.Lock()
	l.events = ev
	l.mu.Unlock()
}

// Open 以游标当前收盘价开仓。入场时间取 K 线时间（回放时间，非墙钟）。
// 开仓不动余额，平仓时才结算。
func (l *Ledger) Open(req OpenRequest, quote Quote) (Trade, error) {
	if quote.Price <= 0 || quote.Time <= 0 {
		return Trade{}, ErrNoCurrentPrice
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return Trade{}, fmt.Errorf("非法方向: %q", req.Side)
	}
	if req.Quantity <= 0 {
		return Trade{}, fmt.Errorf("数量必须为正: %v", req.Quantity)
	}
	trade := Trade{
		ID:         uuid.NewString(),
		Side:       req.Side,
		EntryPrice: quote.Price,
		EntryTime:  quote.Time,
		Quantity:   req.Quantity,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Status:     StatusOpen,
	}
	l.mu.Lock()
	l.byID[trade.ID] = len(l.trades)
	l.trades = append(l.trades, trade)
	fn := l.events.TradeOpened
	l.mu.Unlock()
	logger.Debugf("[ledger] 开仓 %s %s qty=%v @%v", trade.ID, trade.Side, trade.Quantity, trade.EntryPrice)
	if fn != nil {
		fn(trade)
	}
	return trade, nil
}

// Close 以游标当前收盘价平仓并结算余额。已平仓位拒绝重复平仓，
// 绝不静默重放。
func (l *Ledger) Close(tradeID string, quote Quote) (Trade, error) {
	if quote.Price <= 0 || quote.Time <= 0 {
		return Trade{}, ErrNoCurrentPrice
	}
	l.mu.Lock()
	idx, ok := l.byID[tradeID]
	if !ok {
		l.mu.Unlock()
		return Trade{}, ErrTradeNotFound
	}
	if l.trades[idx].Status == StatusClosed {
		l.mu.Unlock()
		return Trade{}, ErrTradeAlreadyClosed
	}
	t := &l.trades[idx]
	t.ExitPrice = quote.Price
	t.ExitTime = quote.Time
	t.RealizedPnL = t.pnlAt(quote.Price)
	t.Status = StatusClosed
	l.balance += t.RealizedPnL
	closed := *t
	fn := l.events.TradeClosed
	l.mu.Unlock()
	logger.Debugf("[ledger] 平仓 %s pnl=%v", closed.ID, closed.RealizedPnL)
	if fn != nil {
		fn(closed)
	}
	return closed, nil
}

// UnrealizedPnL 对游标当前报价重新计算全部持仓浮盈，不做缓存——
// seek 之后必须立即反映新游标。
func (l *Ledger) UnrealizedPnL(quote Quote) float64 {
	if quote.Price <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var sum float64
	for _, t := range l.trades {
		if t.Status == StatusOpen {
			sum += t.pnlAt(quote.Price)
		}
	}
	return sum
}

// Trade 按 ID 查询。
func (l *Ledger) Trade(tradeID string) (Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx, ok := l.byID[tradeID]
	if !ok {
		return Trade{}, ErrTradeNotFound
	}
	return l.trades[idx], nil
}

// Trades 返回全部仓位（按开仓顺序）。
func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// ClosedTrades 返回已平仓子集，供绩效聚合使用。
func (l *Ledger) ClosedTrades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Trade
	for _, t := range l.trades {
		if t.Status == StatusClosed {
			out = append(out, t)
		}
	}
	return out
}

// OpenTrades 返回未平仓子集。
func (l *Ledger) OpenTrades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Trade
	for _, t := range l.trades {
		if t.Status == StatusOpen {
			out = append(out, t)
		}
	}
	return out
}

// StartingBalance 返回初始余额。
func (l *Ledger) StartingBalance() float64 {
	return l.startingBalance
}

// Balance 返回当前余额（仅含已实现盈亏）。
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Restore 从持久化记录恢复账本状态；仅在会话加载时调用。
func (l *Ledger) Restore(trades []Trade) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.trades) > 0 {
		return fmt.Errorf("账本非空，拒绝覆盖恢复")
	}
	balance := l.startingBalance
	for _, t := range trades {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Status == StatusClosed {
			balance += t.RealizedPnL
		}
		l.byID[t.ID] = len(l.trades)
		l.trades = append(l.trades, t)
	}
	l.balance = balance
	return nil
}

// HoldingDuration 返回已平仓位的持仓时长。
func HoldingDuration(t Trade) time.Duration {
	if t.ExitTime <= 0 || t.EntryTime <= 0 {
		return 0
	}
	return time.Duration(t.ExitTime-t.EntryTime) * time.Millisecond
}
