package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"replaylab/internal/indicator"
	"replaylab/internal/ledger"
	"replaylab/internal/preset"
	"replaylab/internal/replay"
	"replaylab/internal/session"
	"replaylab/internal/visual"
)

// Server 提供 Gin 接口，供前端控制回放与下单。
type Server struct {
	addr    string
	mgr     *session.Manager
	presets *preset.Registry
	router  *gin.Engine
}

type Config struct {
	Addr    string
	Manager *session.Manager
	Presets *preset.Registry
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Manager == nil {
		return nil, errors.New("session manager 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:    cfg.Addr,
		mgr:     cfg.Manager,
		presets: cfg.Presets,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.GET("/presets", s.handlePresets)
	api.POST("/sessions", s.handleSessionCreate)
	api.GET("/sessions", s.handleSessionList)
	api.GET("/sessions/:id", s.handleSessionStatus)
	api.DELETE("/sessions/:id", s.handleSessionRemove)
	api.POST("/sessions/:id/restore", s.handleSessionRestore)

	api.POST("/sessions/:id/replay/play", s.handlePlay)
	api.POST("/sessions/:id/replay/pause", s.handlePause)
	api.POST("/sessions/:id/replay/step", s.handleStep)
	api.POST("/sessions/:id/replay/seek", s.handleSeek)
	api.POST("/sessions/:id/replay/speed", s.handleSpeed)

	api.GET("/sessions/:id/candles", s.handleCandles)
	api.GET("/sessions/:id/indicators", s.handleIndicators)
	api.GET("/sessions/:id/report", s.handleReport)
	api.GET("/sessions/:id/chart.png", s.handleChart)

	api.POST("/sessions/:id/trades", s.handleTradeOpen)
	api.POST("/sessions/:id/trades/:tradeID/close", s.handleTradeClose)
	api.GET("/sessions/:id/trades", s.handleTrades)
	api.GET("/sessions/:id/performance", s.handlePerformance)
}

// statusFor 把领域错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, ledger.ErrTradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrTradeAlreadyClosed), errors.Is(err, replay.ErrInvalidCursorState):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (s *Server) sessionOf(c *gin.Context) (*session.Session, bool) {
	sess, err := s.mgr.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": len(s.mgr.List())})
}

func (s *Server) handlePresets(c *gin.Context) {
	if s.presets == nil {
		c.JSON(http.StatusOK, gin.H{"presets": []preset.Preset{}})
		return
	}
	snap := s.presets.Snapshot()
	c.JSON(http.StatusOK, gin.H{"presets": snap.Presets, "version": snap.Version})
}

func (s *Server) handleSessionCreate(c *gin.Context) {
	var req session.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, err := s.mgr.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": sess.Status()})
}

func (s *Server) handleSessionList(c *gin.Context) {
	sessions := s.mgr.List()
	out := make([]session.Status, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Status())
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) handleSessionStatus(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess.Status()})
}

func (s *Server) handleSessionRemove(c *gin.Context) {
	if err := s.mgr.Remove(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": c.Param("id")})
}

func (s *Server) handleSessionRestore(c *gin.Context) {
	sess, err := s.mgr.Restore(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess.Status()})
}

func (s *Server) handlePlay(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	if err := sess.Controller().Play(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cursor": sess.Controller().Snapshot()})
}

func (s *Server) handlePause(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	sess.Controller().Pause()
	c.JSON(http.StatusOK, gin.H{"cursor": sess.Controller().Snapshot()})
}

func (s *Server) handleStep(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	if err := sess.Controller().Step(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cursor": sess.Controller().Snapshot()})
}

func (s *Server) handleSeek(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	var req struct {
		Fraction float64 `json:"fraction"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := sess.Controller().Seek(req.Fraction); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cursor": sess.Controller().Snapshot()})
}

func (s *Server) handleSpeed(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	var req struct {
		Multiplier float64 `json:"multiplier" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Multiplier > s.mgr.MaxSpeed() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "速度倍率超过上限"})
		return
	}
	if err := sess.Controller().SetSpeed(req.Multiplier); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cursor": sess.Controller().Snapshot()})
}

func (s *Server) handleCandles(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	candles := sess.VisibleCandles()
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"candles": candles, "cursor": sess.Controller().Snapshot()})
}

func (s *Server) handleIndicators(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	kind := c.DefaultQuery("kind", "ma")
	period, err := strconv.Atoi(c.DefaultQuery("period", "0"))
	if err != nil || period < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period 非法"})
		return
	}
	// 指定 preset 时用配置档里的周期，覆盖 query 参数。
	if id := c.Query("preset"); id != "" && s.presets != nil {
		p, found := s.presets.Preset(id)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "preset 不存在"})
			return
		}
		switch kind {
		case "rsi":
			period = p.RSIPeriod
		default:
			period = p.MAPeriod
		}
	}
	if period <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period 必填"})
		return
	}
	points, err := sess.IndicatorSeries(kind, period)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": kind, "period": period, "points": points})
}

func (s *Server) handleReport(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	rep, err := sess.IndicatorReport(indicator.Settings{})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": rep})
}

func (s *Server) handleChart(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	maPeriod, _ := strconv.Atoi(c.DefaultQuery("ma_period", "20"))
	input := visual.ChartInput{
		Symbol:   sess.Symbol,
		Interval: sess.Interval,
		Candles:  sess.VisibleCandles(),
		MAPeriod: maPeriod,
	}
	if maPeriod > 0 {
		ma, err := sess.IndicatorSeries("ma", maPeriod)
		if err == nil {
			input.MA = ma
		}
	}
	png, err := visual.RenderPNG(c.Request.Context(), input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) handleTradeOpen(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	var req ledger.OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trade, err := sess.OpenTrade(req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trade": trade})
}

func (s *Server) handleTradeClose(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	trade, err := sess.CloseTrade(c.Param("tradeID"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade": trade, "balance": sess.Ledger().Balance()})
}

func (s *Server) handleTrades(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	var trades []ledger.Trade
	switch c.DefaultQuery("status", "all") {
	case "open":
		trades = sess.Ledger().OpenTrades()
	case "closed":
		trades = sess.Ledger().ClosedTrades()
	default:
		trades = sess.Ledger().Trades()
	}
	c.JSON(http.StatusOK, gin.H{
		"trades":         trades,
		"unrealized_pnl": sess.UnrealizedPnL(),
		"balance":        sess.Ledger().Balance(),
	})
}

func (s *Server) handlePerformance(c *gin.Context) {
	sess, ok := s.sessionOf(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"performance": sess.Performance().Sanitized()})
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Router 暴露路由，主要供测试注入请求。
func (s *Server) Router() *gin.Engine {
	return s.router
}
