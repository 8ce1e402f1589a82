package lobby

import (
	"context"
	"math"

	"quizserver/models"
)

// Get returns the hydrated lobby view.
func (s *Service) Get(ctx context.Context, code string) (map[string]interface{}, error) {
	lb, err := s.store.GetLobby(ctx, code)
	if err != nil {
		return nil, err
	}
	players, err := s.store.GetPlayers(ctx, code)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.GetQuestions(ctx, code)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(lb, players, questions), nil
}

// ListWaiting returns joinable lobbies only.
func (s *Service) ListWaiting(ctx context.Context) ([]map[string]interface{}, error) {
	lobbies, err := s.store.ListWaitingLobbies(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]map[string]interface{}, 0, len(lobbies))
	for i := range lobbies {
		lb := &lobbies[i]
		players, err := s.store.GetPlayers(ctx, lb.Code)
		if err != nil {
			return nil, err
		}
		views = append(views, map[string]interface{}{
			"code":        lb.Code,
			"host":        lb.Host,
			"catalog":     lb.Catalog,
			"playerCount": len(players),
			"capacity":    s.capacity,
			"createdAt":   lb.CreatedAt,
		})
	}
	return views, nil
}

// ListQuestionSets returns the source catalogs a host can pick from. The
// rows carry no question payloads, so correct answers stay server-side.
func (s *Service) ListQuestionSets(ctx context.Context) ([]models.QuestionSet, error) {
	return s.source.ListQuestionSets(ctx)
}

// GameState is the live view: the lobby snapshot plus answer progress and
// the remaining answer window.
func (s *Service) GameState(ctx context.Context, code string) (map[string]interface{}, error) {
	snap, err := s.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	lb, err := s.store.GetLobby(ctx, code)
	if err != nil {
		return nil, err
	}
	answered, total, err := s.store.CountAnswers(ctx, code)
	if err != nil {
		return nil, err
	}
	snap["answerProgress"] = map[string]interface{}{
		"answered": answered,
		"total":    total,
	}

	var remaining float64
	if lb.GamePhase == models.PhaseQuestion && lb.QuestionStartTime != nil {
		elapsed := s.clock.Now().UTC().Sub(*lb.QuestionStartTime).Seconds()
		remaining = math.Max(0, s.answerWindow.Seconds()-elapsed)
	}
	snap["timing"] = map[string]interface{}{
		"answerWindowSeconds": s.answerWindow.Seconds(),
		"timeRemaining":       remaining,
	}
	return snap, nil
}

// DebugState exposes the raw rows for introspection.
func (s *Service) DebugState(ctx context.Context, code string) (map[string]interface{}, error) {
	lb, err := s.store.GetLobby(ctx, code)
	if err != nil {
		return nil, err
	}
	players, err := s.store.GetPlayers(ctx, code)
	if err != nil {
		return nil, err
	}
	questions, err := s.store.GetQuestions(ctx, code)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"lobby":     lb,
		"players":   players,
		"questions": questions,
	}, nil
}
