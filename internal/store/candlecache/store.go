package candlecache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"replaylab/internal/market"
)

// Store 在本地 SQLite 缓存 K 线，让会话在离线或限流时仍可重开。
// 单文件库，symbol+timeframe+open_time 作为主键。
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open 打开（或创建）缓存库。
func Open(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "candles.db")
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol     TEXT NOT NULL,
			timeframe  TEXT NOT NULL,
			open_time  INTEGER NOT NULL,
			close_time INTEGER NOT NULL,
			open       REAL NOT NULL,
			high       REAL NOT NULL,
			low        REAL NOT NULL,
			close      REAL NOT NULL,
			volume     REAL NOT NULL DEFAULT 0,
			inserted_at INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000),
			PRIMARY KEY (symbol, timeframe, open_time)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_candles_lookup ON candles (symbol, timeframe, open_time);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func keyParts(symbol, timeframe string) (string, string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	tf := strings.ToLower(strings.TrimSpace(timeframe))
	if sym == "" || tf == "" {
		return "", "", fmt.Errorf("symbol/timeframe 不能为空")
	}
	return sym, tf, nil
}

// Put 批量写入 K 线（重复 open_time 将被覆盖）。
func (s *Store) Put(ctx context.Context, symbol, timeframe string, candles []market.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	sym, tf, err := keyParts(symbol, timeframe)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, timeframe, open_time, close_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, timeframe, open_time) DO UPDATE SET
		    close_time=excluded.close_time,
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, sym, tf, c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// Recent 返回最近的 limit 根 K 线，按 open_time 升序。
func (s *Store) Recent(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	sym, tf, err := keyParts(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 200
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume
		FROM candles WHERE symbol = ? AND timeframe = ?
		ORDER BY open_time DESC LIMIT ?`, sym, tf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// Count 返回指定 symbol@timeframe 的缓存条数与最新写入时间。
func (s *Store) Count(ctx context.Context, symbol, timeframe string) (int64, time.Time, error) {
	sym, tf, err := keyParts(symbol, timeframe)
	if err != nil {
		return 0, time.Time{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1), COALESCE(MAX(inserted_at), 0)
		FROM candles WHERE symbol = ? AND timeframe = ?`, sym, tf)
	var n, insertedMs int64
	if err := row.Scan(&n, &insertedMs); err != nil {
		return 0, time.Time{}, err
	}
	var at time.Time
	if insertedMs > 0 {
		at = time.UnixMilli(insertedMs)
	}
	return n, at, nil
}
