package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"replaylab/internal/config"
	"replaylab/internal/gateway/binance"
	"replaylab/internal/gateway/yahoo"
	"replaylab/internal/logger"
	"replaylab/internal/market"
	"replaylab/internal/preset"
	"replaylab/internal/replay"
	"replaylab/internal/session"
	"replaylab/internal/store/candlecache"
	"replaylab/internal/store/journal"
	replayhttp "replaylab/internal/transport/http"
)

type AppBuilder struct {
	cfg *config.Config

	sourceFn  func(*config.Config) (market.Source, error)
	cacheFn   func(*config.Config) (*candlecache.Store, error)
	journalFn func(*config.Config) (*journal.Store, error)
	presetsFn func(*config.Config) (*preset.Registry, error)

	sourceOverride market.Source
}

type AppBuilderOption func(*AppBuilder)

// WithSource 注入替代数据源（测试用）。
func WithSource(src market.Source) AppBuilderOption {
	return func(b *AppBuilder) { b.sourceOverride = src }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		sourceFn:  buildSource,
		cacheFn:   buildCache,
		journalFn: buildJournal,
		presetsFn: buildPresets,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	a := &App{cfg: cfg}

	source := b.sourceOverride
	if source == nil {
		src, err := b.sourceFn(cfg)
		if err != nil {
			return nil, err
		}
		source = src
	}
	if source != nil {
		logger.Infof("✓ 数据源: %s", source.Name())
	} else {
		logger.Infof("✓ 数据源: synthetic（无远端）")
	}

	cache, err := b.cacheFn(cfg)
	if err != nil {
		logger.Warnf("本地 K 线缓存不可用，将跳过回填: %v", err)
		cache = nil
	}
	if cache != nil {
		a.cleanup = append(a.cleanup, func() { _ = cache.Close() })
	}

	journalStore, err := b.journalFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化交易日志库失败: %w", err)
	}
	if journalStore != nil {
		a.cleanup = append(a.cleanup, func() { _ = journalStore.Close() })
	}

	presets, err := b.presetsFn(cfg)
	if err != nil {
		logger.Warnf("指标预设不可用: %v", err)
		presets = nil
	}

	basePeriod := replay.DefaultBasePeriod
	if cfg.Replay.BasePeriodMs > 0 {
		basePeriod = time.Duration(cfg.Replay.BasePeriodMs) * time.Millisecond
	}
	a.mgr = session.NewManager(session.ManagerConfig{
		Source:         source,
		Cache:          cache,
		Journal:        journalStore,
		BasePeriod:     basePeriod,
		MaxSpeed:       cfg.Replay.MaxSpeed,
		DefaultBalance: cfg.Session.StartingBalance,
		DefaultLimit:   cfg.Data.DefaultLimit,
	})

	a.server, err = replayhttp.NewServer(replayhttp.Config{
		Addr:    cfg.Server.Addr,
		Manager: a.mgr,
		Presets: presets,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ HTTP 服务监听 %s", cfg.Server.Addr)
	return a, nil
}

// buildSource 根据 provider 建数据源；synthetic 表示不接远端。
func buildSource(cfg *config.Config) (market.Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Data.Provider)) {
	case "", "binance":
		return binance.New(binance.Config{
			RESTBaseURL: cfg.Data.BinanceBase,
			ProxyURL:    cfg.Data.ProxyURL,
		})
	case "yahoo":
		return yahoo.New(cfg.Data.YahooBase, cfg.Data.ProxyURL), nil
	case "synthetic":
		return nil, nil
	default:
		return nil, fmt.Errorf("未知数据源: %s", cfg.Data.Provider)
	}
}

func buildCache(cfg *config.Config) (*candlecache.Store, error) {
	if strings.TrimSpace(cfg.Data.Root) == "" {
		return nil, nil
	}
	return candlecache.Open(cfg.Data.Root)
}

func buildJournal(cfg *config.Config) (*journal.Store, error) {
	if strings.TrimSpace(cfg.Session.JournalPath) == "" {
		return nil, nil
	}
	return journal.Open(cfg.Session.JournalPath)
}

func buildPresets(cfg *config.Config) (*preset.Registry, error) {
	if strings.TrimSpace(cfg.Presets.Path) == "" {
		return nil, nil
	}
	return preset.NewRegistry(cfg.Presets.Path)
}
