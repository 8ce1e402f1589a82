package lobby

import (
	"context"
	"sync"
	"time"

	"quizserver/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Scheduler defaults.
const (
	DefaultSweepInterval  = 500 * time.Millisecond
	DefaultAdvanceWorkers = 4
)

// Scheduler is the auto-progression loop. Each tick it enumerates lobbies
// sitting in the question phase and hands the due ones to a small worker
// pool, so one slow lobby never delays the rest. An in-flight set keeps a
// lobby from being queued twice; the advance CAS makes even that harmless.
type Scheduler struct {
	svc      *Service
	logger   *zap.Logger
	clock    clockwork.Clock
	interval time.Duration
	workers  int

	workCh     chan string
	inFlight   map[string]bool
	inFlightMu sync.Mutex
}

// NewScheduler builds a scheduler over the given service. Zero interval and
// worker values fall back to defaults; the clock comes from the service so
// tests drive both together.
func NewScheduler(svc *Service, logger *zap.Logger, interval time.Duration, workers int) *Scheduler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if workers <= 0 {
		workers = DefaultAdvanceWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		svc:      svc,
		logger:   logger,
		clock:    svc.clock,
		interval: interval,
		workers:  workers,
		workCh:   make(chan string, workers*2),
		inFlight: make(map[string]bool),
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("progression scheduler started",
		zap.Duration("interval", s.interval),
		zap.Int("workers", s.workers),
	)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go s.worker(ctx, &wg)
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			close(s.workCh)
			wg.Wait()
			s.logger.Info("progression scheduler stopped")
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

// sweep queues every lobby whose question window has closed or whose
// players have all answered.
func (s *Scheduler) sweep(ctx context.Context) {
	lobbies, err := s.svc.store.ListQuestionLobbies(ctx)
	if err != nil {
		s.logger.Error("scheduler sweep failed", zap.Error(err))
		return
	}
	now := s.clock.Now().UTC()
	for i := range lobbies {
		lb := &lobbies[i]
		answered, total, err := s.svc.store.CountAnswers(ctx, lb.Code)
		if err != nil {
			s.logger.Error("scheduler count failed", zap.String("lobby", lb.Code), zap.Error(err))
			continue
		}
		if !advanceDue(lb, answered, total, now, s.svc.answerWindow) {
			continue
		}
		s.enqueue(ctx, lb.Code)
	}
}

func (s *Scheduler) enqueue(ctx context.Context, code string) {
	s.inFlightMu.Lock()
	if s.inFlight[code] {
		s.inFlightMu.Unlock()
		return
	}
	s.inFlight[code] = true
	s.inFlightMu.Unlock()

	select {
	case s.workCh <- code:
	case <-ctx.Done():
		s.release(code)
	default:
		// Pool saturated; the next tick will pick the lobby up again.
		s.release(code)
	}
}

func (s *Scheduler) release(code string) {
	s.inFlightMu.Lock()
	delete(s.inFlight, code)
	s.inFlightMu.Unlock()
}

func (s *Scheduler) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for code := range s.workCh {
		advanced, err := s.svc.Advance(ctx, code, "")
		if err != nil {
			s.logger.Error("auto advance failed", zap.String("lobby", code), zap.Error(err))
		} else if advanced {
			s.logger.Info("auto advanced lobby", zap.String("lobby", code))
		}
		s.release(code)
	}
}

// advanceDue decides whether a lobby's current question should close now.
func advanceDue(lb *models.Lobby, answered, total int, now time.Time, window time.Duration) bool {
	if !lb.Started || lb.GamePhase != models.PhaseQuestion || lb.QuestionStartTime == nil {
		return false
	}
	if total > 0 && answered == total {
		return true
	}
	return now.Sub(*lb.QuestionStartTime) >= window
}
