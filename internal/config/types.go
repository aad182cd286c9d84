package config

// Config 是应用配置树，按模块分组。
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Data    DataConfig    `mapstructure:"data"`
	Replay  ReplayConfig  `mapstructure:"replay"`
	Session SessionConfig `mapstructure:"session"`
	Presets PresetsConfig `mapstructure:"presets"`
	Visual  VisualConfig  `mapstructure:"visual"`
}

// AppConfig 为应用级开关。
type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	LogPath  string `mapstructure:"log_path"`
}

// ServerConfig 为 HTTP 服务配置。
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DataConfig 为行情数据配置。
type DataConfig struct {
	Root         string `mapstructure:"root"`         // 本地缓存目录
	Provider     string `mapstructure:"provider"`     // binance / yahoo / synthetic
	BinanceBase  string `mapstructure:"binance_base"` // REST base，可留空用默认
	YahooBase    string `mapstructure:"yahoo_base"`
	ProxyURL     string `mapstructure:"proxy_url"`
	DefaultLimit int    `mapstructure:"default_limit"` // 单次会话拉取的 K 线数量
}

// ReplayConfig 为回放控制配置。
type ReplayConfig struct {
	BasePeriodMs int     `mapstructure:"base_period_ms"` // 1x 速度下的推进周期
	MaxSpeed     float64 `mapstructure:"max_speed"`
}

// SessionConfig 为会话默认值。
type SessionConfig struct {
	StartingBalance float64 `mapstructure:"starting_balance"`
	JournalPath     string  `mapstructure:"journal_path"` // gorm sqlite 文件
}

// PresetsConfig 为指标预设文件。
type PresetsConfig struct {
	Path string `mapstructure:"path"`
}

// VisualConfig 为图表导出配置。
type VisualConfig struct {
	Enabled bool `mapstructure:"enabled"`
	WidthPx int  `mapstructure:"width_px"`
}
