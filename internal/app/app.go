package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"replaylab/internal/config"
	"replaylab/internal/logger"
	"replaylab/internal/session"
	replayhttp "replaylab/internal/transport/http"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务。
type App struct {
	cfg     *config.Config
	mgr     *session.Manager
	server  *replayhttp.Server
	cleanup []func()
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务，阻塞直到 ctx 取消或出错。退出时回收全部会话。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.server == nil {
		return fmt.Errorf("http server not initialized")
	}
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Manager 暴露底层会话管理器（测试用）。
func (a *App) Manager() *session.Manager {
	if a == nil {
		return nil
	}
	return a.mgr
}

func (a *App) close() {
	if a.mgr != nil {
		a.mgr.CloseAll()
	}
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}
