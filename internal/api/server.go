package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/recorder"
	"TradeSentinel/internal/scheduler"
	"TradeSentinel/internal/snapshot"
)

// Scanner triggers an on-demand pipeline run.
type Scanner interface {
	RunNow(ctx context.Context) (*model.RunReport, error)
}

// Server exposes the latest run, signals and the paper portfolio over HTTP.
type Server struct {
	Board     *snapshot.Board
	Portfolio *portfolio.Manager
	Recorder  recorder.Recorder
	Scanner   Scanner // nil disables POST /api/scan
	Logger    *zap.Logger

	engine *gin.Engine
	srv    *http.Server
}

// NewServer builds the gin engine and registers every route.
func NewServer(addr string, board *snapshot.Board, pm *portfolio.Manager, rec recorder.Recorder,
	scanner Scanner, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		Board:     board,
		Portfolio: pm,
		Recorder:  rec,
		Scanner:   scanner,
		Logger:    logger,
		engine:    engine,
	}
	s.Register(engine)
	s.srv = &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) Register(r *gin.Engine) {
	r.GET("/healthz", s.health)
	r.GET("/ws", s.stream)

	group := r.Group("/api")
	group.GET("/runs/latest", s.latestRun)
	group.GET("/signals", s.listSignals)
	group.GET("/signals/:symbol", s.getSignal)
	group.GET("/portfolio", s.portfolio)
	group.POST("/scan", s.scan)
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.Logger.Info("api listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	Ok(c, gin.H{"status": "ok"}, nil)
}

func (s *Server) latestRun(c *gin.Context) {
	r, ok := s.Board.Latest()
	if !ok {
		Error(c, http.StatusNotFound, "no run yet", nil)
		return
	}
	Ok(c, r, nil)
}

func (s *Server) listSignals(c *gin.Context) {
	var typ model.SignalType
	if raw := strings.ToUpper(strings.TrimSpace(c.Query("type"))); raw != "" {
		typ = model.SignalType(raw)
		if typ != model.SignalBuy && typ != model.SignalSell && typ != model.SignalHold {
			Error(c, http.StatusBadRequest, "type must be BUY, SELL or HOLD", nil)
			return
		}
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	items := s.Board.Signals(typ, limit)
	Ok(c, items, map[string]any{"count": len(items)})
}

func (s *Server) getSignal(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	limit, err := queryInt(c, "history", 20)
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	latest, ok := s.Board.Signal(symbol)

	var history []model.TradingSignal
	if s.Recorder != nil && limit > 0 {
		history, err = s.Recorder.RecentSignals(c.Request.Context(), symbol, limit)
		if err != nil {
			s.Logger.Warn("load signal history", zap.String("symbol", symbol), zap.Error(err))
			Error(c, http.StatusBadGateway, err.Error(), nil)
			return
		}
	}
	if !ok && len(history) == 0 {
		Error(c, http.StatusNotFound, "no signal for "+symbol, nil)
		return
	}
	data := gin.H{"history": history}
	if ok {
		data["latest"] = latest
	}
	Ok(c, data, nil)
}

func (s *Server) portfolio(c *gin.Context) {
	Ok(c, s.Portfolio.Snapshot(nil), nil)
}

func (s *Server) scan(c *gin.Context) {
	if s.Scanner == nil {
		Error(c, http.StatusServiceUnavailable, "scanner unavailable", nil)
		return
	}
	r, err := s.Scanner.RunNow(c.Request.Context())
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		Error(c, http.StatusConflict, err.Error(), nil)
	case err != nil:
		Error(c, http.StatusInternalServerError, err.Error(), nil)
	default:
		Ok(c, r, map[string]any{"actionable": len(r.Actionable())})
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return v, nil
}
