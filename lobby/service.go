package lobby

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"quizserver/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Gameplay defaults. All of them can be overridden through Options.
const (
	AnswerWindowSeconds = 60
	DefaultCapacity     = 8
	DefaultCodeAttempts = 10
)

// Service is the session state machine. Every mutating operation runs as a
// single store transaction and pushes the fresh snapshot to the notifier
// after commit.
type Service struct {
	store  Store
	source QuestionSource
	notify Notifier
	codes  CodeGenerator
	clock  clockwork.Clock
	logger *zap.Logger

	shuffleMu sync.Mutex
	shuffle   *rand.Rand

	answerWindow time.Duration
	capacity     int
	codeAttempts int
}

// Options overrides the service's injected collaborators and tunables.
// Zero values fall back to production defaults.
type Options struct {
	Clock        clockwork.Clock
	Codes        CodeGenerator
	AnswerWindow time.Duration
	Capacity     int
	CodeAttempts int
	ShuffleSeed  int64
}

// NewService wires the state machine. notify may be nil when no push
// transport is attached.
func NewService(store Store, source QuestionSource, notify Notifier, logger *zap.Logger, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Codes == nil {
		opts.Codes = NewCodeGenerator()
	}
	if opts.AnswerWindow <= 0 {
		opts.AnswerWindow = AnswerWindowSeconds * time.Second
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = DefaultCodeAttempts
	}
	if opts.ShuffleSeed == 0 {
		opts.ShuffleSeed = time.Now().UnixNano()
	}
	if notify == nil {
		notify = noopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        store,
		source:       source,
		notify:       notify,
		codes:        opts.Codes,
		clock:        opts.Clock,
		logger:       logger,
		shuffle:      rand.New(rand.NewSource(opts.ShuffleSeed)),
		answerWindow: opts.AnswerWindow,
		capacity:     opts.Capacity,
		codeAttempts: opts.CodeAttempts,
	}
}

type noopNotifier struct{}

func (noopNotifier) NotifyLobbyUpdate(string, map[string]interface{}) {}
func (noopNotifier) NotifyGameUpdate(string, map[string]interface{})  {}
func (noopNotifier) NotifyLobbyClosed(string)                         {}

// Create opens a new lobby with host as its first player. When a question
// set is supplied its questions are snapshotted immediately. Each code
// candidate gets its own transaction: an insert that loses a race against a
// concurrent create rolls back cleanly and the next candidate is tried.
func (s *Service) Create(ctx context.Context, host, character string, questionSetID *uint) (map[string]interface{}, error) {
	for i := 0; i < s.codeAttempts; i++ {
		code := s.codes.Code()
		var snap map[string]interface{}
		err := s.store.Atomic(ctx, func(tx Store) error {
			exists, err := tx.LobbyExists(ctx, code)
			if err != nil {
				return err
			}
			if exists {
				return errLobbyCodeTaken
			}

			now := s.clock.Now().UTC()
			lb := &models.Lobby{
				Code:         code,
				Host:         host,
				GamePhase:    models.PhaseWaiting,
				CreatedAt:    now,
				LastActivity: now,
			}

			var snapshots []models.LobbyQuestion
			if questionSetID != nil {
				set, err := s.source.GetQuestionSet(ctx, *questionSetID)
				if err != nil {
					return err
				}
				snapshots = snapshotQuestions(code, set.Questions)
				count := len(snapshots)
				lb.QuestionSetID = questionSetID
				lb.Catalog = set.Category
				lb.QuestionCount = &count
			}

			if err := tx.CreateLobby(ctx, lb); err != nil {
				return err
			}
			if len(snapshots) > 0 {
				if err := tx.ReplaceQuestions(ctx, code, snapshots); err != nil {
					return err
				}
			}
			if err := tx.CreatePlayer(ctx, &models.LobbyPlayer{
				LobbyCode:  code,
				Username:   host,
				Character:  character,
				Multiplier: 1,
				IsHost:     true,
				Connected:  true,
			}); err != nil {
				return err
			}

			snap, err = s.hydrate(ctx, tx, lb)
			return err
		})
		if err == nil {
			s.notify.NotifyLobbyUpdate(code, snap)
			return snap, nil
		}
		if errors.Is(err, errLobbyCodeTaken) {
			continue
		}
		return nil, err
	}
	return nil, ErrCodeGenerationExhausted
}

// Join adds a player to a waiting lobby.
func (s *Service) Join(ctx context.Context, code, username, character string) (map[string]interface{}, error) {
	var snap map[string]interface{}
	err := s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		if lb.Started {
			return conflictError("game already started")
		}
		players, err := tx.GetPlayers(ctx, code)
		if err != nil {
			return err
		}
		if len(players) >= s.capacity {
			return conflictError("lobby is full")
		}
		for _, p := range players {
			if p.Username == username {
				return conflictError("name %s is already taken", username)
			}
		}
		if err := tx.CreatePlayer(ctx, &models.LobbyPlayer{
			LobbyCode:  code,
			Username:   username,
			Character:  character,
			Multiplier: 1,
			Connected:  true,
		}); err != nil {
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

// Leave removes a player. The last player leaving closes the lobby; a
// leaving host hands the role to the lexicographically first remaining
// player before the transaction commits.
func (s *Service) Leave(ctx context.Context, code, username string) (closed bool, err error) {
	var snap map[string]interface{}
	err = s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		leaving, err := tx.GetPlayer(ctx, code, username)
		if err != nil {
			return err
		}
		if err := tx.DeletePlayer(ctx, code, username); err != nil {
			return err
		}
		remaining, err := tx.GetPlayers(ctx, code)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			closed = true
			return tx.DeleteLobby(ctx, code)
		}
		if leaving.IsHost {
			// GetPlayers returns username order, so the first row is the
			// deterministic successor.
			successor := remaining[0]
			successor.IsHost = true
			if err := tx.SavePlayer(ctx, &successor); err != nil {
				return err
			}
			lb.Host = successor.Username
		}
		lb.LastActivity = s.clock.Now().UTC()
		if err := tx.SaveLobby(ctx, lb); err != nil {
			return err
		}
		snap, err = s.hydrate(ctx, tx, lb)
		return err
	})
	if err != nil {
		return false, err
	}
	if closed {
		s.notify.NotifyLobbyClosed(code)
	} else {
		s.notify.NotifyLobbyUpdate(code, snap)
	}
	return closed, nil
}

// SetReady flips the player's ready flag.
func (s *Service) SetReady(ctx context.Context, code, username string, ready bool) (map[string]interface{}, error) {
	var snap map[string]interface{}
	err := s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		p, err := tx.GetPlayer(ctx, code, username)
		if err != nil {
			return err
		}
		p.Ready = ready
		if err := tx.SavePlayer(ctx, p); err != nil {
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

// Rejoin marks an existing player as connected again and returns the
// current snapshot. Player rows are never created mid-game.
func (s *Service) Rejoin(ctx context.Context, code, username string) (map[string]interface{}, error) {
	var snap map[string]interface{}
	err := s.store.Atomic(ctx, func(tx Store) error {
		lb, err := tx.GetLobby(ctx, code)
		if err != nil {
			return err
		}
		p, err := tx.GetPlayer(ctx, code, username)
		if err != nil {
			return err
		}
		p.Connected = true
		if err := tx.SavePlayer(ctx, p); err != nil {
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

// requireHost loads the player and verifies host rights.
func (s *Service) requireHost(ctx context.Context, tx Store, code, username string) error {
	p, err := tx.GetPlayer(ctx, code, username)
	if err != nil {
		return err
	}
	if !p.IsHost {
		return authorizationError("only the host may do that")
	}
	return nil
}

func (s *Service) hydrate(ctx context.Context, tx Store, lb *models.Lobby) (map[string]interface{}, error) {
	players, err := tx.GetPlayers(ctx, lb.Code)
	if err != nil {
		return nil, err
	}
	questions, err := tx.GetQuestions(ctx, lb.Code)
	if err != nil {
		return nil, err
	}
	return buildSnapshot(lb, players, questions), nil
}

func snapshotQuestions(code string, questions []models.Question) []models.LobbyQuestion {
	snapshots := make([]models.LobbyQuestion, 0, len(questions))
	for i, q := range questions {
		snapshots = append(snapshots, models.LobbyQuestion{
			LobbyCode:     code,
			QuestionIndex: i,
			QuestionData:  q.QuestionData,
		})
	}
	return snapshots
}
