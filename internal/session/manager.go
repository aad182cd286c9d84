package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"replaylab/internal/ledger"
	"replaylab/internal/logger"
	"replaylab/internal/market"
	"replaylab/internal/pkg/symbol"
	"replaylab/internal/replay"
	"replaylab/internal/store/candlecache"
	"replaylab/internal/store/journal"
)

// ErrSessionNotFound 表示指定 ID 的会话不存在。
var ErrSessionNotFound = errors.New("session not found")

// CreateRequest 描述一次会话创建。
type CreateRequest struct {
	Symbol          string  `json:"symbol" binding:"required"`
	Interval        string  `json:"interval" binding:"required"`
	Limit           int     `json:"limit"`
	StartingBalance float64 `json:"starting_balance"`
}

// ManagerConfig 汇总 Manager 的依赖。Cache/Journal 可为 nil（纯内存模式）。
type ManagerConfig struct {
	Source         market.Source
	Cache          *candlecache.Store
	Journal        *journal.Store
	BasePeriod     time.Duration
	MaxSpeed       float64
	DefaultBalance float64
	DefaultLimit   int
}

// Manager 维护活跃会话注册表并负责装配与回收。
type Manager struct {
	cfg ManagerConfig

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.BasePeriod <= 0 {
		cfg.BasePeriod = replay.DefaultBasePeriod
	}
	if cfg.DefaultBalance <= 0 {
		cfg.DefaultBalance = 10000
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 500
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Create 装配会话：加载序列（数据源→缓存→合成，依次降级）、
// 接好游标与账本，并把账本事件接到持久化层。
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	sym := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if sym == "" {
		return nil, fmt.Errorf("symbol 不能为空")
	}
	if norm := symbol.Normalize(sym); norm != "" {
		sym = symbol.ToExchange(norm)
	}
	if _, err := market.ParseTimeframe(req.Interval); err != nil {
		return nil, err
	}
	interval := strings.ToLower(strings.TrimSpace(req.Interval))
	limit := req.Limit
	if limit <= 0 {
		limit = m.cfg.DefaultLimit
	}
	balance := req.StartingBalance
	if balance <= 0 {
		balance = m.cfg.DefaultBalance
	}

	series, synthetic := m.loadSeries(ctx, sym, interval, limit)

	sess := &Session{
		ID:        uuid.NewString(),
		Symbol:    sym,
		Interval:  interval,
		Synthetic: synthetic,
		CreatedAt: time.Now(),

		series:     series,
		controller: replay.NewController(series, m.cfg.BasePeriod),
		book:       ledger.New(balance),
	}
	m.wirePersistence(sess)

	if m.cfg.Journal != nil {
		err := m.cfg.Journal.SaveSession(ctx, journal.SessionModel{
			ID:              sess.ID,
			Symbol:          sym,
			Interval:        interval,
			StartingBalance: balance,
			CurrentBalance:  balance,
			Synthetic:       synthetic,
		})
		if err != nil {
			logger.Warnf("[session] %s 落库失败: %v", sess.ID, err)
		}
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	logger.Infof("[session] 创建 %s %s@%s candles=%d synthetic=%v", sess.ID, sym, interval, series.Len(), synthetic)
	return sess, nil
}

// loadSeries 依次尝试：远端数据源（成功则回填缓存）→ 本地缓存 → 合成序列。
// 单次失败立即降级，不做重试。
func (m *Manager) loadSeries(ctx context.Context, sym, interval string, limit int) (*market.Series, bool) {
	if m.cfg.Source != nil {
		candles, err := m.cfg.Source.Fetch(ctx, market.FetchRequest{Symbol: sym, Interval: interval, Limit: limit})
		if err == nil && len(candles) > 0 {
			if series, serr := market.NewSeries(sym, interval, candles); serr == nil {
				if m.cfg.Cache != nil {
					if _, cerr := m.cfg.Cache.Put(ctx, sym, interval, candles); cerr != nil {
						logger.Debugf("[session] 缓存回填失败: %v", cerr)
					}
				}
				return series, false
			} else {
				logger.Warnf("[session] %s %s 数据校验失败: %v", sym, interval, serr)
			}
		} else if err != nil {
			logger.Warnf("[session] %s %s 拉取失败: %v", sym, interval, err)
		}
	}
	if m.cfg.Cache != nil {
		cached, err := m.cfg.Cache.Recent(ctx, sym, interval, limit)
		if err == nil && len(cached) > 0 {
			if series, serr := market.NewSeries(sym, interval, cached); serr == nil {
				logger.Infof("[session] %s %s 使用本地缓存（%d 根）", sym, interval, len(cached))
				return series, false
			}
		}
	}
	logger.Infof("[session] %s %s 使用合成序列", sym, interval)
	series, err := market.NewSeries(sym, interval, market.Synthetic(sym, interval, limit))
	if err != nil {
		// 合成生成器保证不变量，这里不应发生。
		panic(fmt.Sprintf("synthetic series invalid: %v", err))
	}
	return series, true
}

// wirePersistence 把账本事件接到 journal 落库；核心只发事件。
func (m *Manager) wirePersistence(sess *Session) {
	if m.cfg.Journal == nil {
		return
	}
	store := m.cfg.Journal
	id := sess.ID
	book := sess.book
	sess.book.SetEvents(ledger.Events{
		TradeOpened: func(t ledger.Trade) {
			if err := store.UpsertTrade(context.Background(), id, t); err != nil {
				logger.Warnf("[session] %s 开仓落库失败: %v", id, err)
			}
		},
		TradeClosed: func(t ledger.Trade) {
			ctx := context.Background()
			if err := store.UpsertTrade(ctx, id, t); err != nil {
				logger.Warnf("[session] %s 平仓落库失败: %v", id, err)
			}
			if err := store.UpdateBalance(ctx, id, book.Balance()); err != nil {
				logger.Warnf("[session] %s 余额落库失败: %v", id, err)
			}
		},
	})
}

// Restore 从 journal 恢复历史会话到内存（重启后继续复盘）。
func (m *Manager) Restore(ctx context.Context, sessionID string) (*Session, error) {
	if m.cfg.Journal == nil {
		return nil, fmt.Errorf("journal store 未启用")
	}
	rec, err := m.cfg.Journal.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	series, synthetic := m.loadSeries(ctx, rec.Symbol, rec.Interval, m.cfg.DefaultLimit)
	sess := &Session{
		ID:        rec.ID,
		Symbol:    rec.Symbol,
		Interval:  rec.Interval,
		Synthetic: synthetic,
		CreatedAt: rec.CreatedAt,

		series:     series,
		controller: replay.NewController(series, m.cfg.BasePeriod),
		book:       ledger.New(rec.StartingBalance),
	}
	trades, err := m.cfg.Journal.ListTrades(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.book.Restore(journal.ToLedgerTrades(trades)); err != nil {
		return nil, err
	}
	m.wirePersistence(sess)
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess, nil
}

// Get 返回活跃会话。
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// List 返回全部活跃会话（创建时间倒序）。
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// MaxSpeed 返回允许的最大速度倍率。
func (m *Manager) MaxSpeed() float64 {
	if m.cfg.MaxSpeed <= 0 {
		return 64
	}
	return m.cfg.MaxSpeed
}

// Remove 关闭并移除会话；必须先停掉 tick 源再删注册表。
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.Close()
	return nil
}

// CloseAll 关停全部会话（进程退出路径）。
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
