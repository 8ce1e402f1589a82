package lobby

import (
	"context"
	"time"

	"quizserver/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Reaper deadlines.
const (
	ReapUnstartedIdle = 5 * time.Minute
	ReapStartedAge    = 30 * time.Minute
	ReapPostGameIdle  = 10 * time.Minute
	ReapAbsoluteAge   = 2 * time.Hour
)

// Reaper deletes abandoned and runaway lobbies. Cleanup is best effort: a
// failure on one lobby is logged and the sweep moves on.
type Reaper struct {
	store  Store
	notify Notifier
	clock  clockwork.Clock
	logger *zap.Logger
}

// NewReaper builds a reaper over the store. notify may be nil.
func NewReaper(store Store, notify Notifier, logger *zap.Logger, clock clockwork.Clock) *Reaper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if notify == nil {
		notify = noopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{store: store, notify: notify, clock: clock, logger: logger}
}

// Sweep applies every deletion rule once and returns how many lobbies were
// removed.
func (r *Reaper) Sweep(ctx context.Context) int {
	lobbies, err := r.store.ListLobbies(ctx)
	if err != nil {
		r.logger.Error("reaper list failed", zap.Error(err))
		return 0
	}
	now := r.clock.Now().UTC()
	reaped := 0
	for i := range lobbies {
		lb := &lobbies[i]
		players, err := r.store.GetPlayers(ctx, lb.Code)
		if err != nil {
			r.logger.Error("reaper player count failed", zap.String("lobby", lb.Code), zap.Error(err))
			continue
		}
		reason := reapReason(lb, len(players), now)
		if reason == "" {
			continue
		}
		err = r.store.Atomic(ctx, func(tx Store) error {
			return tx.DeleteLobby(ctx, lb.Code)
		})
		if err != nil {
			r.logger.Error("reaper delete failed", zap.String("lobby", lb.Code), zap.Error(err))
			continue
		}
		r.notify.NotifyLobbyClosed(lb.Code)
		r.logger.Info("reaped lobby", zap.String("lobby", lb.Code), zap.String("reason", reason))
		reaped++
	}
	return reaped
}

// reapReason names the first deletion rule the lobby trips, or "" to keep
// it. The rules are independent; any one of them is enough.
func reapReason(lb *models.Lobby, playerCount int, now time.Time) string {
	switch {
	case playerCount == 0:
		return "empty"
	case !lb.Started && now.Sub(lb.LastActivity) > ReapUnstartedIdle:
		return "never started"
	case lb.Started && now.Sub(lb.CreatedAt) > ReapStartedAge:
		return "runaway game"
	case lb.GamePhase == models.PhasePostGame && now.Sub(lb.LastActivity) > ReapPostGameIdle:
		return "post-game idle"
	case now.Sub(lb.CreatedAt) > ReapAbsoluteAge:
		return "age ceiling"
	}
	return ""
}
