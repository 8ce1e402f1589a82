package lobby

import (
	"context"
	"encoding/json"

	"quizserver/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// AnswerResult is the immediate feedback returned to the answering player.
// Points are not part of it: scoring happens for everyone at once when the
// question closes.
type AnswerResult struct {
	IsCorrect       bool        `json:"isCorrect"`
	CorrectAnswer   interface{} `json:"correctAnswer"`
	AllAnswered     bool        `json:"allAnswered"`
	PlayersAnswered int         `json:"playersAnswered"`
	TotalPlayers    int         `json:"totalPlayers"`
}

// SubmitAnswer records a player's answer for the open question. It rejects
// duplicates, late submissions and answers whose shape does not match the
// question type. The score itself is written by Advance.
func (s *Service) SubmitAnswer(ctx context.Context, code, username string, answer json.RawMessage) (*AnswerResult, error) {
	var result *AnswerResult
	err := s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		if !lb.Started || lb.GamePhase != models.PhaseQuestion || lb.CurrentQuestion == nil {
			return stateError("no question is open for answers")
		}
		if lb.QuestionStartTime == nil {
			return ErrQuestionDataCorrupt
		}
		p, err := tx.GetPlayer(ctx, code, username)
		if err != nil {
			return err
		}
		if p.Answered {
			return conflictError("answer already submitted for this question")
		}

		now := s.clock.Now().UTC()
		elapsed := now.Sub(*lb.QuestionStartTime).Seconds()
		if elapsed > s.answerWindow.Seconds() {
			return timeLimitError(elapsed, s.answerWindow.Seconds())
		}

		qrow, err := tx.GetQuestion(ctx, code, *lb.CurrentQuestion)
		if err != nil {
			return err
		}
		qd, err := ParseQuestionData(qrow.QuestionData)
		if err != nil {
			return err
		}
		correct, err := ValidateAnswer(qd, answer)
		if err != nil {
			return err
		}

		p.CurrentAnswer = datatypes.JSON(answer)
		p.Answered = true
		p.AnswerTime = &now
		if err := tx.SavePlayer(ctx, p); err != nil {
			return err
		}
		lb.LastActivity = now
		if err := tx.SaveLobby(ctx, lb); err != nil {
			return err
		}

		answered, total, err := tx.CountAnswers(ctx, code)
		if err != nil {
			return err
		}
		result = &AnswerResult{
			IsCorrect:       correct,
			CorrectAnswer:   CorrectAnswer(qd),
			AllAnswered:     answered == total,
			PlayersAnswered: answered,
			TotalPlayers:    total,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyGame(ctx, code)
	return result, nil
}

// Advance closes the current question: it scores every player's recorded
// answer, then moves to the next question or into post-game. actor is the
// requesting username, or empty for the progression scheduler. Racing calls
// are safe; the compare-and-swap on (phase, index) lets exactly one win and
// turns the rest into no-ops.
func (s *Service) Advance(ctx context.Context, code, actor string) (bool, error) {
	// Optimistic read outside the transaction. The CAS below only fires if
	// the lobby still sits at the phase and index observed here, so a racer
	// that lost never touches a question it did not see open.
	lb, err := s.store.GetLobby(ctx, code)
	if err != nil {
		return false, err
	}
	if actor != "" {
		if err := s.requireHost(ctx, s.store, code, actor); err != nil {
			return false, err
		}
	}
	if !lb.Started || lb.GamePhase != models.PhaseQuestion || lb.CurrentQuestion == nil {
		if actor != "" {
			// A host asking to advance a lobby with no open question made a
			// mistake; only the scheduler's racing sweeps no-op silently.
			return false, stateError("no question is open to advance")
		}
		return false, nil
	}
	idx := *lb.CurrentQuestion

	questions, err := s.store.GetQuestions(ctx, code)
	if err != nil {
		return false, err
	}
	total := len(questions)

	var advanced bool
	var snap map[string]interface{}
	err = s.store.Atomic(ctx, func(tx Store) error {
		now := s.clock.Now().UTC()
		next := idx + 1
		updates := map[string]interface{}{
			"current_question": next,
			"last_activity":    now,
		}
		if next < total {
			updates["question_start_time"] = now
		} else {
			updates["game_phase"] = models.PhasePostGame
			updates["question_start_time"] = nil
		}
		swapped, err := tx.AdvanceLobbyCAS(ctx, code, models.PhaseQuestion, idx, updates)
		if err != nil {
			return err
		}
		if !swapped {
			// Someone else already closed this question.
			return nil
		}

		if err := s.scoreQuestion(ctx, tx, lb, idx); err != nil {
			return err
		}
		if next < total {
			if err := tx.ResetPlayersForQuestion(ctx, code); err != nil {
				return err
			}
		}

		advanced = true
		lb.CurrentQuestion = &next
		lb.LastActivity = now
		if next < total {
			lb.QuestionStartTime = &now
		} else {
			lb.GamePhase = models.PhasePostGame
			lb.QuestionStartTime = nil
		}
		snap, err = s.hydrate(ctx, tx, lb)
		return err
	})
	if err != nil {
		return false, err
	}
	if advanced {
		s.notify.NotifyGameUpdate(code, snap)
	}
	return advanced, nil
}

// scoreQuestion runs the scoring engine over every player for the closing
// question. This is the only place score and multiplier are written.
func (s *Service) scoreQuestion(ctx context.Context, tx Store, lb *models.Lobby, index int) error {
	qrow, err := tx.GetQuestion(ctx, lb.Code, index)
	if err != nil {
		return err
	}
	qd, err := ParseQuestionData(qrow.QuestionData)
	if err != nil {
		return err
	}
	players, err := tx.GetPlayers(ctx, lb.Code)
	if err != nil {
		return err
	}
	for i := range players {
		p := &players[i]
		correct := false
		scorable := p.Answered && p.AnswerTime != nil && len(p.CurrentAnswer) > 0 && lb.QuestionStartTime != nil
		if scorable {
			if ok, verr := ValidateAnswer(qd, json.RawMessage(p.CurrentAnswer)); verr == nil {
				correct = ok
			}
			elapsed := p.AnswerTime.Sub(*lb.QuestionStartTime).Seconds()
			p.Score += Score(correct, elapsed, p.Multiplier)
		} else if p.Answered {
			// An answered flag without a timestamp would otherwise score
			// against the sweep time, which favors late answers. Treat it
			// as unanswered instead.
			s.logger.Warn("answer recorded without timestamp",
				zap.String("lobby", lb.Code),
				zap.String("player", p.Username),
				zap.Int("question", index),
			)
		}
		p.Multiplier = NextMultiplier(correct, p.Multiplier)
		if err := tx.SavePlayer(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ReturnToLobby resets a finished game back to the waiting phase. Scores,
// multipliers and ready flags are cleared and the question snapshots are
// deleted; the host must configure questions again before the next game.
func (s *Service) ReturnToLobby(ctx context.Context, code, username string) (map[string]interface{}, error) {
	var snap map[string]interface{}
	err := s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		if err := s.requireHost(ctx, tx, code, username); err != nil {
			return err
		}
		if lb.GamePhase != models.PhasePostGame {
			return stateError("can only return to the lobby after the game ends")
		}

		players, err := tx.GetPlayers(ctx, code)
		if err != nil {
			return err
		}
		for i := range players {
			p := &players[i]
			p.Score = 0
			p.Multiplier = 1
			p.Ready = false
			p.Answered = false
			p.CurrentAnswer = nil
			p.AnswerTime = nil
			if err := tx.SavePlayer(ctx, p); err != nil {
				return err
			}
		}
		if err := tx.DeleteQuestions(ctx, code); err != nil {
			return err
		}

		lb.Started = false
		lb.GamePhase = models.PhaseWaiting
		lb.CurrentQuestion = nil
		lb.QuestionStartTime = nil
		lb.QuestionCount = nil
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

// notifyGame pushes a fresh snapshot outside any transaction, used after
// answer submissions where the result payload differs from the snapshot.
func (s *Service) notifyGame(ctx context.Context, code string) {
	lb, err := s.store.GetLobby(ctx, code)
	if err != nil {
		return
	}
	players, err := s.store.GetPlayers(ctx, code)
	if err != nil {
		return
	}
	questions, err := s.store.GetQuestions(ctx, code)
	if err != nil {
		return
	}
	s.notify.NotifyGameUpdate(code, buildSnapshot(lb, players, questions))
}
