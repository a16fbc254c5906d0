package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"TradeSentinel/internal/model"
	"TradeSentinel/internal/notifier"
	"TradeSentinel/internal/pipeline"
	"TradeSentinel/internal/portfolio"
	"TradeSentinel/internal/snapshot"
)

// ErrRunInProgress is returned when a cycle is triggered while another is running.
var ErrRunInProgress = errors.New("a scan is already running")

// Notifier delivers messages to the operator.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// MarketHours is the regular session in the exchange's time zone.
type MarketHours struct {
	Location *time.Location
	Open     int // minutes after midnight
	Close    int
}

// IsOpen reports whether t falls on a weekday inside [Open, Close).
func (h MarketHours) IsOpen(t time.Time) bool {
	lt := t.In(h.Location)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	m := lt.Hour()*60 + lt.Minute()
	return m >= h.Open && m < h.Close
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	Cron      *cron.Cron
	Pipeline  *pipeline.Pipeline
	Portfolio *portfolio.Manager
	Board     *snapshot.Board
	Notifier  Notifier // may be nil
	Universe  []string
	Options   pipeline.Options
	Hours     MarketHours
	// GateHours skips cycles outside the regular session.
	GateHours bool
	Ctx       context.Context

	running atomic.Bool
	logger  *zap.Logger
	now     func() time.Time
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, p *pipeline.Pipeline, pm *portfolio.Manager, board *snapshot.Board,
	n Notifier, universe []string, opts pipeline.Options, hours MarketHours, gateHours bool, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithLocation(hours.Location)),
		Pipeline:  p,
		Portfolio: pm,
		Board:     board,
		Notifier:  n,
		Universe:  universe,
		Options:   opts,
		Hours:     hours,
		GateHours: gateHours,
		Ctx:       ctx,
		logger:    logger,
		now:       time.Now,
	}
}

// RegisterAll registers the trading cycle and the daily portfolio reset.
func (s *Scheduler) RegisterAll(cycleCron, resetCron string) error {
	if _, err := s.Cron.AddFunc(cycleCron, s.cycle); err != nil {
		return fmt.Errorf("register cycle task: %w", err)
	}
	if _, err := s.Cron.AddFunc(resetCron, s.ResetDaily); err != nil {
		return fmt.Errorf("register daily reset: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) cycle() {
	if s.GateHours && !s.Hours.IsOpen(s.now()) {
		s.logger.Debug("market closed, skipping cycle")
		return
	}
	rep, err := s.RunNow(s.Ctx)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			s.logger.Warn("previous cycle still running, skipping")
			return
		}
		s.logger.Error("trading cycle failed", zap.Error(err))
		s.trySend(fmt.Sprintf("❌ scan failed: %v", err))
		return
	}
	if len(rep.Actionable()) > 0 || len(rep.Orders) > 0 {
		s.trySend(notifier.FormatRunReport(rep))
	}
}

// RunNow executes one pipeline run immediately (manual trigger / RUN_ON_START).
// Runs never overlap.
func (s *Scheduler) RunNow(ctx context.Context) (*model.RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	s.ResetDaily()
	rc := pipeline.NewRunContext(s.Universe, s.Options, s.now())
	s.logger.Info("running trading cycle", zap.String("run_id", rc.RunID), zap.Int("universe", len(rc.Universe)))
	return s.Pipeline.Run(ctx, rc)
}

// ResetDaily rolls the portfolio's daily loss counter over to today's session date.
func (s *Scheduler) ResetDaily() {
	day := s.now().In(s.Hours.Location).Format("2006-01-02")
	s.Portfolio.ResetDaily(day)
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return help()
	}
	switch strings.ToLower(fields[0]) {
	case "/scan":
		rep, err := s.RunNow(ctx)
		if err != nil {
			return fmt.Sprintf("❌ scan failed: %v", err)
		}
		return notifier.FormatRunReport(rep)
	case "/signals":
		sigs := s.Board.Signals("", 0)
		var b strings.Builder
		for _, sig := range sigs {
			if sig.Actionable() {
				b.WriteString(notifier.FormatSignalLine(sig) + "\n")
			}
		}
		if b.Len() == 0 {
			return "No actionable signals yet."
		}
		return b.String()
	case "/signal":
		if len(fields) < 2 {
			return "usage: /signal SYMBOL"
		}
		sig, ok := s.Board.Signal(strings.ToUpper(fields[1]))
		if !ok {
			return fmt.Sprintf("No signal for %s yet.", strings.ToUpper(fields[1]))
		}
		return notifier.FormatSignal(sig)
	case "/portfolio":
		return notifier.FormatPortfolio(s.Portfolio.Snapshot(nil))
	default:
		return help()
	}
}

func help() string {
	return "Commands:\n• /scan run a scan now\n• /signals latest actionable signals\n• /signal SYMBOL signal detail\n• /portfolio paper account"
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error("send notification", zap.Error(err))
	}
}
