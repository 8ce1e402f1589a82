package lobby

import (
	"context"

	"quizserver/models"
)

// ConfigureQuestionSet snapshots the full question set in its original
// order. Host-only, and only before the game starts.
func (s *Service) ConfigureQuestionSet(ctx context.Context, code, username string, questionSetID uint) (map[string]interface{}, error) {
	var snap map[string]interface{}
	err := s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		if err := s.requireHost(ctx, tx, code, username); err != nil {
			return err
		}
		if lb.Started {
			return stateError("cannot change the question set after start")
		}
		set, err := s.source.GetQuestionSet(ctx, questionSetID)
		if err != nil {
			return err
		}
		snapshots := snapshotQuestions(code, set.Questions)
		if err := tx.ReplaceQuestions(ctx, code, snapshots); err != nil {
			return err
		}
		count := len(snapshots)
		lb.QuestionSetID = &questionSetID
		lb.Catalog = set.Category
		lb.QuestionCount = &count
		lb.LastActivity = s.clock.Now().UTC()
		if err := tx.SaveLobby(ctx, lb); err != nil {
			return err
		}
		snap, err = s.hydrate(ctx, tx, lb)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify.NotifyLobbyUpdate(code, snap)
	return snap, nil
}

// ConfigureQuestionCount reselects a shuffled random subset of the chosen
// set, clamped to however many questions it holds. Host-only, pre-start.
func (s *Service) ConfigureQuestionCount(ctx context.Context, code, username string, count int) (map[string]interface{}, error) {
	var snap map[string]interface{}
	err := s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		if err := s.requireHost(ctx, tx, code, username); err != nil {
			return err
		}
		if err := s.reselectQuestions(ctx, tx, lb, count); err != nil {
			return err
		}
		lb.LastActivity = s.clock.Now().UTC()
		if err := tx.SaveLobby(ctx, lb); err != nil {
			return err
		}
		snap, err = s.hydrate(ctx, tx, lb)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify.NotifyLobbyUpdate(code, snap)
	return snap, nil
}

// reselectQuestions replaces the lobby's snapshots with a shuffled subset of
// its configured set and updates the count on lb. The caller owns the
// transaction and saving the lobby row.
func (s *Service) reselectQuestions(ctx context.Context, tx Store, lb *models.Lobby, count int) error {
	if count <= 0 {
		return validationError("question count must be positive")
	}
	if lb.Started {
		return stateError("cannot change the question count after start")
	}
	if lb.QuestionSetID == nil {
		return validationError("select a question set first")
	}
	set, err := s.source.GetQuestionSet(ctx, *lb.QuestionSetID)
	if err != nil {
		return err
	}
	if count > len(set.Questions) {
		count = len(set.Questions)
	}
	selected := s.pickQuestions(set.Questions, count)
	if err := tx.ReplaceQuestions(ctx, lb.Code, snapshotQuestions(lb.Code, selected)); err != nil {
		return err
	}
	lb.QuestionCount = &count
	return nil
}

func (s *Service) pickQuestions(questions []models.Question, count int) []models.Question {
	shuffled := make([]models.Question, len(questions))
	copy(shuffled, questions)
	s.shuffleMu.Lock()
	s.shuffle.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	s.shuffleMu.Unlock()
	return shuffled[:count]
}

// Start moves the lobby into the question phase at index 0.
func (s *Service) Start(ctx context.Context, code, username string) (map[string]interface{}, error) {
	var snap map[string]interface{}
	err := s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		if err := s.requireHost(ctx, tx, code, username); err != nil {
			return err
		}
		if lb.Started {
			return conflictError("game already started")
		}
		if lb.QuestionSetID == nil {
			return validationError("select a question set before starting")
		}
		if lb.QuestionCount == nil || *lb.QuestionCount == 0 {
			return validationError("set a question count before starting")
		}
		players, err := tx.GetPlayers(ctx, code)
		if err != nil {
			return err
		}
		if len(players) == 0 {
			return validationError("cannot start an empty lobby")
		}

		now := s.clock.Now().UTC()
		first := 0
		lb.Started = true
		lb.GamePhase = models.PhaseQuestion
		lb.CurrentQuestion = &first
		lb.QuestionStartTime = &now
		lb.LastActivity = now
		if err := tx.ResetPlayersForQuestion(ctx, code); err != nil {
			return err
		}
		if err := tx.SaveLobby(ctx, lb); err != nil {
			return err
		}
		snap, err = s.hydrate(ctx, tx, lb)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify.NotifyGameUpdate(code, snap)
	return snap, nil
}

// UpdateLobby applies the bulk field patch from PUT /lobbies/:code as one
// transaction; a failed patch leaves nothing behind. Host-only, pre-start.
// A question-count patch goes through the same reselection as the dedicated
// endpoint.
func (s *Service) UpdateLobby(ctx context.Context, code, username string, patch models.UpdateLobbyRequest) (map[string]interface{}, error) {
	var snap map[string]interface{}
	err := s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		if err := s.requireHost(ctx, tx, code, username); err != nil {
			return err
		}
		if lb.Started && (patch.Catalog != nil || patch.QuestionCount != nil) {
			return stateError("cannot modify a lobby after start")
		}
		if patch.QuestionCount != nil {
			if err := s.reselectQuestions(ctx, tx, lb, *patch.QuestionCount); err != nil {
				return err
			}
		}
		if patch.Catalog != nil {
			lb.Catalog = *patch.Catalog
		}
		lb.LastActivity = s.clock.Now().UTC()
		if err := tx.SaveLobby(ctx, lb); err != nil {
			return err
		}
		snap, err = s.hydrate(ctx, tx, lb)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.notify.NotifyLobbyUpdate(code, snap)
	return snap, nil
}

// Delete closes a lobby on explicit host request.
func (s *Service) Delete(ctx context.Context, code, username string) error {
	err := s.store.Atomic(ctx, func(tx Store) error {
		if _, err := tx.GetLobby(ctx, code); err != nil {
			return err
		}
		if err := s.requireHost(ctx, tx, code, username); err != nil {
			return err
		}
		return tx.DeleteLobby(ctx, code)
	})
	if err != nil {
		return err
	}
	s.notify.NotifyLobbyClosed(code)
	return nil
}
