package lobby

import (
	"quizserver/models"
)

// buildSnapshot assembles the full lobby view pushed to clients and served
// by GET /lobbies/:code. Question payloads are the public views only; the
// correct answers never leave the server before a question closes.
func buildSnapshot(lb *models.Lobby, players []models.LobbyPlayer, questions []models.LobbyQuestion) map[string]interface{} {
	playerViews := make([]map[string]interface{}, 0, len(players))
	for _, p := range players {
		playerViews = append(playerViews, map[string]interface{}{
			"username":   p.Username,
			"character":  p.Character,
			"score":      p.Score,
			"multiplier": p.Multiplier,
			"answered":   p.Answered,
			"ready":      p.Ready,
			"isHost":     p.IsHost,
			"connected":  p.Connected,
		})
	}

	questionViews := make([]map[string]interface{}, 0, len(questions))
	var current map[string]interface{}
	for _, q := range questions {
		qd, err := ParseQuestionData(q.QuestionData)
		if err != nil {
			continue
		}
		view := qd.Public()
		questionViews = append(questionViews, view)
		if lb.CurrentQuestion != nil && q.QuestionIndex == *lb.CurrentQuestion {
			current = view
		}
	}

	snap := map[string]interface{}{
		"code":            lb.Code,
		"host":            lb.Host,
		"started":         lb.Started,
		"gamePhase":       lb.GamePhase,
		"questionCount":   lb.QuestionCount,
		"questionSetId":   lb.QuestionSetID,
		"catalog":         lb.Catalog,
		"createdAt":       lb.CreatedAt,
		"lastActivity":    lb.LastActivity,
		"players":         playerViews,
		"questions":       questionViews,
		"totalQuestions":  len(questionViews),
		"currentQuestion": current,
	}
	if lb.CurrentQuestion != nil {
		snap["currentQuestionIndex"] = *lb.CurrentQuestion
	} else {
		snap["currentQuestionIndex"] = nil
	}
	if lb.QuestionStartTime != nil {
		snap["questionStartTime"] = *lb.QuestionStartTime
	} else {
		snap["questionStartTime"] = nil
	}
	return snap
}
