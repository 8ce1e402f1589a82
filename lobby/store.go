package lobby

import (
	"context"

	"quizserver/models"
)

// Store is the persistence boundary for lobbies, players and question
// snapshots. Mutating operations run inside Atomic so every state-machine
// operation is one all-or-nothing unit; the callback receives a Store bound
// to the transaction.
type Store interface {
	Atomic(ctx context.Context, fn func(tx Store) error) error

	GetLobby(ctx context.Context, code string) (*models.Lobby, error)
	LobbyExists(ctx context.Context, code string) (bool, error)
	CreateLobby(ctx context.Context, lb *models.Lobby) error
	SaveLobby(ctx context.Context, lb *models.Lobby) error
	DeleteLobby(ctx context.Context, code string) error
	ListLobbies(ctx context.Context) ([]models.Lobby, error)
	ListWaitingLobbies(ctx context.Context) ([]models.Lobby, error)
	ListQuestionLobbies(ctx context.Context) ([]models.Lobby, error)

	// AdvanceLobbyCAS applies updates only if the lobby still sits at the
	// expected phase and question index, and reports whether a row changed.
	// This is the guard that makes concurrent advance attempts idempotent.
	AdvanceLobbyCAS(ctx context.Context, code, fromPhase string, fromIndex int, updates map[string]interface{}) (bool, error)

	GetPlayers(ctx context.Context, code string) ([]models.LobbyPlayer, error)
	GetPlayer(ctx context.Context, code, username string) (*models.LobbyPlayer, error)
	CreatePlayer(ctx context.Context, p *models.LobbyPlayer) error
	SavePlayer(ctx context.Context, p *models.LobbyPlayer) error
	DeletePlayer(ctx context.Context, code, username string) error
	CountAnswers(ctx context.Context, code string) (answered, total int, err error)
	ResetPlayersForQuestion(ctx context.Context, code string) error

	GetQuestion(ctx context.Context, code string, index int) (*models.LobbyQuestion, error)
	GetQuestions(ctx context.Context, code string) ([]models.LobbyQuestion, error)
	ReplaceQuestions(ctx context.Context, code string, questions []models.LobbyQuestion) error
	DeleteQuestions(ctx context.Context, code string) error
}

// QuestionSource resolves question sets from wherever they are authored.
// The session core only reads sets when a host configures a lobby.
type QuestionSource interface {
	GetQuestionSet(ctx context.Context, id uint) (*models.QuestionSet, error)
	ListQuestionSets(ctx context.Context) ([]models.QuestionSet, error)
}

// Notifier receives post-commit snapshots for push delivery. The core never
// depends on whether delivery succeeds.
type Notifier interface {
	NotifyLobbyUpdate(code string, snapshot map[string]interface{})
	NotifyGameUpdate(code string, snapshot map[string]interface{})
	NotifyLobbyClosed(code string)
}
