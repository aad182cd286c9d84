package config

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":9980"
	}
	if c.Data.Root == "" {
		c.Data.Root = "data"
	}
	if c.Data.Provider == "" {
		c.Data.Provider = "binance"
	}
	if c.Data.DefaultLimit <= 0 {
		c.Data.DefaultLimit = 500
	}
	if c.Replay.BasePeriodMs <= 0 {
		c.Replay.BasePeriodMs = 1000
	}
	if c.Replay.MaxSpeed <= 0 {
		c.Replay.MaxSpeed = 64
	}
	if c.Session.StartingBalance <= 0 {
		c.Session.StartingBalance = 10000
	}
	if c.Session.JournalPath == "" {
		c.Session.JournalPath = "data/journal.db"
	}
	if c.Visual.WidthPx <= 0 {
		c.Visual.WidthPx = 1200
	}
}
