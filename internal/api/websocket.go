package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"TradeSentinel/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// runEvent is pushed to websocket clients after every run.
type runEvent struct {
	RunID      string                `json:"run_id"`
	FinishedAt time.Time             `json:"finished_at"`
	Signals    []model.TradingSignal `json:"signals"`
	Orders     []model.Order         `json:"orders,omitempty"`
}

func newRunEvent(r model.RunReport) runEvent {
	sigs := r.Actionable()
	if sigs == nil {
		sigs = []model.TradingSignal{}
	}
	return runEvent{RunID: r.RunID, FinishedAt: r.FinishedAt, Signals: sigs, Orders: r.Orders}
}

// stream sends the latest run on connect, then every new run's actionable signals.
func (s *Server) stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()

	runs, cancel := s.Board.Subscribe(4)
	defer cancel()

	// Reader detects client close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v any) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			s.Logger.Debug("websocket write", zap.Error(err))
			return false
		}
		return true
	}

	if r, ok := s.Board.Latest(); ok {
		if !send(newRunEvent(r)) {
			return
		}
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case r, ok := <-runs:
			if !ok || !send(newRunEvent(r)) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
