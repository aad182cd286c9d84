package config

import (
	"fmt"
	"strings"
)

func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Data.Provider) {
	case "binance", "yahoo", "synthetic":
	default:
		return fmt.Errorf("data.provider 不支持: %s", cfg.Data.Provider)
	}
	if cfg.Replay.MaxSpeed < 1 {
		return fmt.Errorf("replay.max_speed 不能小于 1: %v", cfg.Replay.MaxSpeed)
	}
	if cfg.Session.StartingBalance <= 0 {
		return fmt.Errorf("session.starting_balance 必须为正: %v", cfg.Session.StartingBalance)
	}
	return nil
}
