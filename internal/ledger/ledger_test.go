package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quoteAt(price float64, idx int) Quote {
	return Quote{Price: price, Time: int64(1_700_000_000_000) + int64(idx)*60_000}
}

func TestLedgerOpenClose(t *testing.T) {
	// 五根收盘价 [100,101,99,102,103] 的标准场景。
	closes := []float64{100, 101, 99, 102, 103}

	t.Run("买入后平仓结算", func(t *testing.T) {
		l := New(10000)
		trade, err := l.Open(OpenRequest{Side: SideBuy, Quantity: 1}, quoteAt(closes[1], 1))
		require.NoError(t, err)
		assert.Equal(t, StatusOpen, trade.Status)
		assert.InDelta(t, 101.0, trade.EntryPrice, 1e-9)
		// 开仓不动余额。
		assert.InDelta(t, 10000.0, l.Balance(), 1e-9)

		assert.InDelta(t, 2.0, l.UnrealizedPnL(quoteAt(closes[4], 4)), 1e-9)

		closed, err := l.Close(trade.ID, quoteAt(closes[4], 4))
		require.NoError(t, err)
		assert.Equal(t, StatusClosed, closed.Status)
		assert.InDelta(t, 2.0, closed.RealizedPnL, 1e-9)
		assert.InDelta(t, 103.0, closed.ExitPrice, 1e-9)
		assert.InDelta(t, 10002.0, l.Balance(), 1e-9)
		// 平仓后浮盈归零。
		assert.InDelta(t, 0.0, l.UnrealizedPnL(quoteAt(closes[4], 4)), 1e-9)
	})

	t.Run("卖出方向盈亏取反", func(t *testing.T) {
		l := New(10000)
		trade, err := l.Open(OpenRequest{Side: SideSell, Quantity: 2}, quoteAt(102, 3))
		require.NoError(t, err)
		assert.InDelta(t, -2.0, l.UnrealizedPnL(quoteAt(103, 4)), 1e-9)
		closed, err := l.Close(trade.ID, quoteAt(99, 5))
		require.NoError(t, err)
		assert.InDelta(t, 6.0, closed.RealizedPnL, 1e-9)
		assert.InDelta(t, 10006.0, l.Balance(), 1e-9)
	})

	t.Run("余额恒等式", func(t *testing.T) {
		l := New(5000)
		a, _ := l.Open(OpenRequest{Side: SideBuy, Quantity: 3}, quoteAt(100, 0))
		b, _ := l.Open(OpenRequest{Side: SideSell, Quantity: 1}, quoteAt(101, 1))
		c, _ := l.Open(OpenRequest{Side: SideBuy, Quantity: 2}, quoteAt(99, 2))
		_, err := l.Close(a.ID, quoteAt(102, 3))
		require.NoError(t, err)
		_, err = l.Close(b.ID, quoteAt(103, 4))
		require.NoError(t, err)
		_, err = l.Close(c.ID, quoteAt(103, 5))
		require.NoError(t, err)

		var sum float64
		for _, tr := range l.ClosedTrades() {
			sum += tr.RealizedPnL
		}
		assert.InDelta(t, l.Balance()-l.StartingBalance(), sum, 1e-9)
	})

	t.Run("止损止盈只存储不触发", func(t *testing.T) {
		l := New(10000)
		trade, err := l.Open(OpenRequest{Side: SideBuy, Quantity: 1, StopLoss: 90, TakeProfit: 120}, quoteAt(100, 0))
		require.NoError(t, err)
		assert.InDelta(t, 90.0, trade.StopLoss, 1e-9)
		assert.InDelta(t, 120.0, trade.TakeProfit, 1e-9)
		// 价格穿越止损后仓位仍然在。
		assert.InDelta(t, -15.0, l.UnrealizedPnL(quoteAt(85, 3)), 1e-9)
		assert.Len(t, l.OpenTrades(), 1)
	})
}

func TestLedgerErrors(t *testing.T) {
	t.Run("非法报价", func(t *testing.T) {
		l := New(10000)
		_, err := l.Open(OpenRequest{Side: SideBuy, Quantity: 1}, Quote{})
		assert.ErrorIs(t, err, ErrNoCurrentPrice)
		_, err = l.Close("whatever", Quote{})
		assert.ErrorIs(t, err, ErrNoCurrentPrice)
		assert.InDelta(t, 0.0, l.UnrealizedPnL(Quote{}), 1e-9)
	})

	t.Run("非法请求", func(t *testing.T) {
		l := New(10000)
		_, err := l.Open(OpenRequest{Side: "hold", Quantity: 1}, quoteAt(100, 0))
		assert.Error(t, err)
		_, err = l.Open(OpenRequest{Side: SideBuy, Quantity: 0}, quoteAt(100, 0))
		assert.Error(t, err)
	})

	t.Run("仓位不存在", func(t *testing.T) {
		l := New(10000)
		_, err := l.Close("missing", quoteAt(100, 1))
		assert.ErrorIs(t, err, ErrTradeNotFound)
		_, err = l.Trade("missing")
		assert.ErrorIs(t, err, ErrTradeNotFound)
	})

	t.Run("重复平仓被拒绝", func(t *testing.T) {
		l := New(10000)
		trade, err := l.Open(OpenRequest{Side: SideBuy, Quantity: 1}, quoteAt(100, 0))
		require.NoError(t, err)
		first, err := l.Close(trade.ID, quoteAt(105, 1))
		require.NoError(t, err)
		_, err = l.Close(trade.ID, quoteAt(110, 2))
		assert.ErrorIs(t, err, ErrTradeAlreadyClosed)
		// 首次平仓结果固定不变。
		got, err := l.Trade(trade.ID)
		require.NoError(t, err)
		assert.Equal(t, first, got)
		assert.InDelta(t, 10005.0, l.Balance(), 1e-9)
	})
}

func TestLedgerEvents(t *testing.T) {
	l := New(10000)
	var opened, closed []Trade
	l.SetEvents(Events{
		TradeOpened: func(tr Trade) { opened = append(opened, tr) },
		TradeClosed: func(tr Trade) { closed = append(closed, tr) },
	})
	trade, err := l.Open(OpenRequest{Side: SideBuy, Quantity: 1}, quoteAt(100, 0))
	require.NoError(t, err)
	_, err = l.Close(trade.ID, quoteAt(101, 1))
	require.NoError(t, err)
	require.Len(t, opened, 1)
	require.Len(t, closed, 1)
	assert.Equal(t, trade.ID, opened[0].ID)
	assert.Equal(t, StatusClosed, closed[0].Status)
}

func TestLedgerRestore(t *testing.T) {
	t.Run("恢复余额与索引", func(t *testing.T) {
		l := New(10000)
		err := l.Restore([]Trade{
			{ID: "a", Side: SideBuy, EntryPrice: 100, EntryTime: 1, Quantity: 1, ExitPrice: 105, ExitTime: 2, Status: StatusClosed, RealizedPnL: 5},
			{ID: "b", Side: SideSell, EntryPrice: 110, EntryTime: 3, Quantity: 2, Status: StatusOpen},
		})
		require.NoError(t, err)
		assert.InDelta(t, 10005.0, l.Balance(), 1e-9)
		assert.Len(t, l.OpenTrades(), 1)
		assert.Len(t, l.ClosedTrades(), 1)
		// 恢复后仍可正常平仓。
		_, err = l.Close("b", quoteAt(100, 4))
		require.NoError(t, err)
		assert.InDelta(t, 10025.0, l.Balance(), 1e-9)
	})

	t.Run("非空账本拒绝恢复", func(t *testing.T) {
		l := New(10000)
		_, err := l.Open(OpenRequest{Side: SideBuy, Quantity: 1}, quoteAt(100, 0))
		require.NoError(t, err)
		assert.Error(t, l.Restore([]Trade{{ID: "x"}}))
	})
}

func TestHoldingDuration(t *testing.T) {
	tr := Trade{EntryTime: 1_700_000_000_000, ExitTime: 1_700_000_060_000}
	assert.Equal(t, time.Minute, HoldingDuration(tr))
	assert.Equal(t, time.Duration(0), HoldingDuration(Trade{EntryTime: 1}))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "10002.35", FormatCurrency(10002.345))
	assert.Equal(t, "1.08655", FormatPrice(1.086549, true))
	assert.Equal(t, "101.99", FormatPrice(101.994, false))
	assert.InDelta(t, 3.14, RoundCurrency(3.14159), 1e-9)
}
