package journal

import (
	"time"

	"gorm.io/datatypes"
)

// SessionModel 持久化会话元数据。
type SessionModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	Symbol          string `gorm:"size:32;index"`
	Interval        string `gorm:"size:8"`
	StartingBalance float64
	CurrentBalance  float64
	Synthetic       bool
	Config          datatypes.JSON `gorm:"type:json"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (SessionModel) TableName() string { return "sessions" }

// TradeModel 持久化一笔模拟仓位。
type TradeModel struct {
	ID          string `gorm:"primaryKey;size:64"`
	SessionID   string `gorm:"size:64;index"`
	Side        string `gorm:"size:8"`
	EntryPrice  float64
	EntryTime   int64
	Quantity    float64
	StopLoss    float64
	TakeProfit  float64
	ExitPrice   float64
	ExitTime    int64
	Status      string `gorm:"size:8;index"`
	RealizedPnL float64
	Meta        datatypes.JSON `gorm:"type:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TradeModel) TableName() string { return "trades" }
