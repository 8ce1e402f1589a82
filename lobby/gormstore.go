package lobby

import (
	"context"
	"errors"

	"quizserver/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore is the postgres-backed Store. Inside Atomic all lobby reads take
// a row lock so racing operations on the same lobby serialize at the store.
type GormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx, inTx: true})
	})
}

func (s *GormStore) lobbyQuery(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	if s.inTx {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (s *GormStore) GetLobby(ctx context.Context, code string) (*models.Lobby, error) {
	var lb models.Lobby
	if err := s.lobbyQuery(ctx).First(&lb, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("lobby %s not found", code)
		}
		return nil, err
	}
	return &lb, nil
}

func (s *GormStore) LobbyExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Lobby{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (s *GormStore) CreateLobby(ctx context.Context, lb *models.Lobby) error {
	if err := s.db.WithContext(ctx).Create(lb).Error; err != nil {
		// A key violation means another create claimed the code between the
		// existence check and this insert.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errLobbyCodeTaken
		}
		return err
	}
	return nil
}

func (s *GormStore) SaveLobby(ctx context.Context, lb *models.Lobby) error {
	return s.db.WithContext(ctx).Save(lb).Error
}

func (s *GormStore) DeleteLobby(ctx context.Context, code string) error {
	if err := s.db.WithContext(ctx).Delete(&models.LobbyPlayer{}, "lobby_code = ?", code).Error; err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.LobbyQuestion{}, "lobby_code = ?", code).Error; err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Lobby{}, "code = ?", code).Error
}

func (s *GormStore) ListLobbies(ctx context.Context) ([]models.Lobby, error) {
	var lobbies []models.Lobby
	err := s.db.WithContext(ctx).Order("created_at").Find(&lobbies).Error
	return lobbies, err
}

func (s *GormStore) ListWaitingLobbies(ctx context.Context) ([]models.Lobby, error) {
	var lobbies []models.Lobby
	err := s.db.WithContext(ctx).
		Where("started = ? AND game_phase = ?", false, models.PhaseWaiting).
		Order("created_at").Find(&lobbies).Error
	return lobbies, err
}

func (s *GormStore) ListQuestionLobbies(ctx context.Context) ([]models.Lobby, error) {
	var lobbies []models.Lobby
	err := s.db.WithContext(ctx).
		Where("started = ? AND game_phase = ?", true, models.PhaseQuestion).
		Find(&lobbies).Error
	return lobbies, err
}

func (s *GormStore) AdvanceLobbyCAS(ctx context.Context, code, fromPhase string, fromIndex int, updates map[string]interface{}) (bool, error) {
	result := s.db.WithContext(ctx).Model(&models.Lobby{}).
		Where("code = ? AND game_phase = ? AND current_question = ?", code, fromPhase, fromIndex).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GormStore) GetPlayers(ctx context.Context, code string) ([]models.LobbyPlayer, error) {
	var players []models.LobbyPlayer
	err := s.db.WithContext(ctx).Where("lobby_code = ?", code).Order("username").Find(&players).Error
	return players, err
}

func (s *GormStore) GetPlayer(ctx context.Context, code, username string) (*models.LobbyPlayer, error) {
	var p models.LobbyPlayer
	err := s.db.WithContext(ctx).First(&p, "lobby_code = ? AND username = ?", code, username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("player %s not found in lobby %s", username, code)
		}
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) CreatePlayer(ctx context.Context, p *models.LobbyPlayer) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *GormStore) SavePlayer(ctx context.Context, p *models.LobbyPlayer) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *GormStore) DeletePlayer(ctx context.Context, code, username string) error {
	return s.db.WithContext(ctx).Delete(&models.LobbyPlayer{}, "lobby_code = ? AND username = ?", code, username).Error
}

func (s *GormStore) CountAnswers(ctx context.Context, code string) (int, int, error) {
	var answered, total int64
	if err := s.db.WithContext(ctx).Model(&models.LobbyPlayer{}).
		Where("lobby_code = ?", code).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := s.db.WithContext(ctx).Model(&models.LobbyPlayer{}).
		Where("lobby_code = ? AND answered = ?", code, true).Count(&answered).Error; err != nil {
		return 0, 0, err
	}
	return int(answered), int(total), nil
}

func (s *GormStore) ResetPlayersForQuestion(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Model(&models.LobbyPlayer{}).
		Where("lobby_code = ?", code).
		Updates(map[string]interface{}{
			"answered":       false,
			"current_answer": nil,
			"answer_time":    nil,
		}).Error
}

func (s *GormStore) GetQuestion(ctx context.Context, code string, index int) (*models.LobbyQuestion, error) {
	var q models.LobbyQuestion
	err := s.db.WithContext(ctx).First(&q, "lobby_code = ? AND question_index = ?", code, index).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("question %d not found in lobby %s", index, code)
		}
		return nil, err
	}
	return &q, nil
}

func (s *GormStore) GetQuestions(ctx context.Context, code string) ([]models.LobbyQuestion, error) {
	var questions []models.LobbyQuestion
	err := s.db.WithContext(ctx).Where("lobby_code = ?", code).Order("question_index").Find(&questions).Error
	return questions, err
}

func (s *GormStore) ReplaceQuestions(ctx context.Context, code string, questions []models.LobbyQuestion) error {
	if err := s.DeleteQuestions(ctx, code); err != nil {
		return err
	}
	if len(questions) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&questions).Error
}

func (s *GormStore) DeleteQuestions(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Delete(&models.LobbyQuestion{}, "lobby_code = ?", code).Error
}
