package journal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"replaylab/internal/ledger"
)

// ErrSessionNotFound 表示会话记录不存在。
var ErrSessionNotFound = errors.New("session not found")

// Store 用 Gorm + SQLite 持久化会话与交易账本。
// 核心引擎只发事件，落库由这里完成。
type Store struct {
	db *gorm.DB
}

// Open 打开（或创建）journal 库并迁移 schema。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal store: 路径不能为空")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	// DriverName points the gorm dialector at the pure-Go modernc.org/sqlite
	// driver (registered as "sqlite"); the DSN pragmas use its syntax and the
	// binary is built with CGO_ENABLED=0, so the default cgo driver is unusable.
	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SessionModel{}, &TradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a small amount of parallelism for concurrent HTTP
	// reads while keeping lock contention low.
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSession 新建或更新会话记录。
func (s *Store) SaveSession(ctx context.Context, m SessionModel) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_balance", "synthetic", "config", "updated_at",
		}),
	}).Create(&m).Error
}

// UpdateBalance 刷新会话当前余额。
func (s *Store) UpdateBalance(ctx context.Context, sessionID string, balance float64) error {
	res := s.db.WithContext(ctx).Model(&SessionModel{}).
		Where("id = ?", sessionID).
		Update("current_balance", balance)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetSession 按 ID 读取会话。
func (s *Store) GetSession(ctx context.Context, id string) (SessionModel, error) {
	var m SessionModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SessionModel{}, ErrSessionNotFound
	}
	return m, err
}

// ListSessions 返回最近的会话（按创建时间倒序）。
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var list []SessionModel
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&list).Error
	return list, err
}

// UpsertTrade 写入或更新一笔仓位记录（开仓插入，平仓更新同一行）。
func (s *Store) UpsertTrade(ctx context.Context, sessionID string, t ledger.Trade) error {
	m := TradeModel{
		ID:          t.ID,
		SessionID:   sessionID,
		Side:        string(t.Side),
		EntryPrice:  t.EntryPrice,
		EntryTime:   t.EntryTime,
		Quantity:    t.Quantity,
		StopLoss:    t.StopLoss,
		TakeProfit:  t.TakeProfit,
		ExitPrice:   t.ExitPrice,
		ExitTime:    t.ExitTime,
		Status:      string(t.Status),
		RealizedPnL: t.RealizedPnL,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"exit_price", "exit_time", "status", "realized_pn_l", "updated_at",
		}),
	}).Create(&m).Error
}

// ListTrades 返回会话的全部仓位记录（按开仓时间升序）。
func (s *Store) ListTrades(ctx context.Context, sessionID string) ([]TradeModel, error) {
	var list []TradeModel
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("entry_time ASC").
		Find(&list).Error
	return list, err
}

// ToLedgerTrades 将持久化记录转回账本结构，供会话恢复使用。
func ToLedgerTrades(models []TradeModel) []ledger.Trade {
	out := make([]ledger.Trade, 0, len(models))
	for _, m := range models {
		out = append(out, ledger.Trade{
			ID:          m.ID,
			Side:        ledger.Side(m.Side),
			EntryPrice:  m.EntryPrice,
			EntryTime:   m.EntryTime,
			Quantity:    m.Quantity,
			StopLoss:    m.StopLoss,
			TakeProfit:  m.TakeProfit,
			ExitPrice:   m.ExitPrice,
			ExitTime:    m.ExitTime,
			Status:      ledger.Status(m.Status),
			RealizedPnL: m.RealizedPnL,
		})
	}
	return out
}
