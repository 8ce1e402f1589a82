package lobby

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"quizserver/models"

	"github.com/jonboulle/clockwork"
	"gorm.io/datatypes"
)

// memStore is an in-memory Store double. Atomic serializes transactions with
// a single mutex, standing in for the row locks the real store takes.
type memStore struct {
	txMu        sync.Mutex
	atomicCalls int

	mu        sync.Mutex
	lobbies   map[string]models.Lobby
	players   map[string]map[string]models.LobbyPlayer
	questions map[string][]models.LobbyQuestion

	// onGetLobby, when set, runs after every lobby read, before the value is
	// returned. Tests use it to line racing goroutines up behind a barrier so
	// they all observe the same state before acting on it.
	onGetLobby func()
}

func newMemStore() *memStore {
	return &memStore{
		lobbies:   make(map[string]models.Lobby),
		players:   make(map[string]map[string]models.LobbyPlayer),
		questions: make(map[string][]models.LobbyQuestion),
	}
}

func (m *memStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.atomicCalls++
	return fn(m)
}

// transactions reports how many Atomic blocks have run.
func (m *memStore) transactions() int {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return m.atomicCalls
}

func (m *memStore) GetLobby(ctx context.Context, code string) (*models.Lobby, error) {
	m.mu.Lock()
	lb, ok := m.lobbies[code]
	m.mu.Unlock()
	if !ok {
		return nil, notFoundError("lobby %s not found", code)
	}
	if m.onGetLobby != nil {
		m.onGetLobby()
	}
	out := lb
	return &out, nil
}

func (m *memStore) LobbyExists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.lobbies[code]
	return ok, nil
}

func (m *memStore) CreateLobby(ctx context.Context, lb *models.Lobby) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lobbies[lb.Code]; ok {
		return errLobbyCodeTaken
	}
	m.lobbies[lb.Code] = *lb
	return nil
}

func (m *memStore) SaveLobby(ctx context.Context, lb *models.Lobby) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lobbies[lb.Code] = *lb
	return nil
}

func (m *memStore) DeleteLobby(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lobbies, code)
	delete(m.players, code)
	delete(m.questions, code)
	return nil
}

func (m *memStore) ListLobbies(ctx context.Context) ([]models.Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Lobby, 0, len(m.lobbies))
	for _, lb := range m.lobbies {
		out = append(out, lb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memStore) ListWaitingLobbies(ctx context.Context) ([]models.Lobby, error) {
	all, _ := m.ListLobbies(ctx)
	out := make([]models.Lobby, 0, len(all))
	for _, lb := range all {
		if !lb.Started && lb.GamePhase == models.PhaseWaiting {
			out = append(out, lb)
		}
	}
	return out, nil
}

func (m *memStore) ListQuestionLobbies(ctx context.Context) ([]models.Lobby, error) {
	all, _ := m.ListLobbies(ctx)
	out := make([]models.Lobby, 0, len(all))
	for _, lb := range all {
		if lb.Started && lb.GamePhase == models.PhaseQuestion {
			out = append(out, lb)
		}
	}
	return out, nil
}

func (m *memStore) AdvanceLobbyCAS(ctx context.Context, code, fromPhase string, fromIndex int, updates map[string]interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lb, ok := m.lobbies[code]
	if !ok || lb.GamePhase != fromPhase || lb.CurrentQuestion == nil || *lb.CurrentQuestion != fromIndex {
		return false, nil
	}
	for key, value := range updates {
		switch key {
		case "game_phase":
			lb.GamePhase = value.(string)
		case "current_question":
			idx := value.(int)
			lb.CurrentQuestion = &idx
		case "question_start_time":
			if value == nil {
				lb.QuestionStartTime = nil
			} else {
				t := value.(time.Time)
				lb.QuestionStartTime = &t
			}
		case "last_activity":
			lb.LastActivity = value.(time.Time)
		}
	}
	m.lobbies[code] = lb
	return true, nil
}

func (m *memStore) GetPlayers(ctx context.Context, code string) ([]models.LobbyPlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.LobbyPlayer, 0, len(m.players[code]))
	for _, p := range m.players[code] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *memStore) GetPlayer(ctx context.Context, code, username string) (*models.LobbyPlayer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[code][username]
	if !ok {
		return nil, notFoundError("player %s not found in lobby %s", username, code)
	}
	out := p
	return &out, nil
}

func (m *memStore) CreatePlayer(ctx context.Context, p *models.LobbyPlayer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.players[p.LobbyCode] == nil {
		m.players[p.LobbyCode] = make(map[string]models.LobbyPlayer)
	}
	m.players[p.LobbyCode][p.Username] = *p
	return nil
}

func (m *memStore) SavePlayer(ctx context.Context, p *models.LobbyPlayer) error {
	return m.CreatePlayer(ctx, p)
}

func (m *memStore) DeletePlayer(ctx context.Context, code, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players[code], username)
	return nil
}

func (m *memStore) CountAnswers(ctx context.Context, code string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	answered, total := 0, 0
	for _, p := range m.players[code] {
		total++
		if p.Answered {
			answered++
		}
	}
	return answered, total, nil
}

func (m *memStore) ResetPlayersForQuestion(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, p := range m.players[code] {
		p.Answered = false
		p.CurrentAnswer = nil
		p.AnswerTime = nil
		m.players[code][name] = p
	}
	return nil
}

func (m *memStore) GetQuestion(ctx context.Context, code string, index int) (*models.LobbyQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.questions[code] {
		if q.QuestionIndex == index {
			out := q
			return &out, nil
		}
	}
	return nil, notFoundError("question %d not found in lobby %s", index, code)
}

func (m *memStore) GetQuestions(ctx context.Context, code string) ([]models.LobbyQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.LobbyQuestion, len(m.questions[code]))
	copy(out, m.questions[code])
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionIndex < out[j].QuestionIndex })
	return out, nil
}

func (m *memStore) ReplaceQuestions(ctx context.Context, code string, questions []models.LobbyQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[code] = append([]models.LobbyQuestion(nil), questions...)
	return nil
}

func (m *memStore) DeleteQuestions(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.questions, code)
	return nil
}

// stubSource serves question sets from a map.
type stubSource struct {
	sets map[uint]*models.QuestionSet
}

func (s *stubSource) GetQuestionSet(ctx context.Context, id uint) (*models.QuestionSet, error) {
	set, ok := s.sets[id]
	if !ok {
		return nil, ErrQuestionSetNotFound
	}
	return set, nil
}

func (s *stubSource) ListQuestionSets(ctx context.Context) ([]models.QuestionSet, error) {
	out := make([]models.QuestionSet, 0, len(s.sets))
	for _, set := range s.sets {
		out = append(out, *set)
	}
	return out, nil
}

// recordingNotifier counts pushes per kind.
type recordingNotifier struct {
	mu          sync.Mutex
	lobbyEvents int
	gameEvents  int
	closed      []string
}

func (n *recordingNotifier) NotifyLobbyUpdate(code string, snapshot map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lobbyEvents++
}

func (n *recordingNotifier) NotifyGameUpdate(code string, snapshot map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gameEvents++
}

func (n *recordingNotifier) NotifyLobbyClosed(code string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, code)
}

func (n *recordingNotifier) closedCodes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.closed...)
}

// scriptedCodes returns its codes in order and repeats the last one.
type scriptedCodes struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (g *scriptedCodes) Code() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[g.next]
	if g.next < len(g.codes)-1 {
		g.next++
	}
	return code
}

func mcQuestion(prompt string, options []string, correct int) datatypes.JSON {
	raw, _ := json.Marshal(map[string]interface{}{
		"type":          models.QuestionMultipleChoice,
		"prompt":        prompt,
		"options":       options,
		"correct_index": correct,
	})
	return datatypes.JSON(raw)
}

func tfQuestion(prompt string, correct bool) datatypes.JSON {
	raw, _ := json.Marshal(map[string]interface{}{
		"type":          models.QuestionTrueFalse,
		"prompt":        prompt,
		"correct_value": correct,
	})
	return datatypes.JSON(raw)
}

func triviaSet(id uint) *models.QuestionSet {
	return &models.QuestionSet{
		ID:       id,
		Name:     "general knowledge",
		Category: "general",
		Questions: []models.Question{
			{ID: 1, QuestionSetID: id, QuestionData: mcQuestion("capital of France", []string{"Paris", "Lyon", "Nice"}, 0)},
			{ID: 2, QuestionSetID: id, QuestionData: tfQuestion("the sky is green", false)},
			{ID: 3, QuestionSetID: id, QuestionData: mcQuestion("2+2", []string{"3", "4", "5"}, 1)},
		},
	}
}

type fixture struct {
	store  *memStore
	source *stubSource
	notify *recordingNotifier
	clock  *clockwork.FakeClock
	svc    *Service
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		store:  newMemStore(),
		source: &stubSource{sets: map[uint]*models.QuestionSet{1: triviaSet(1)}},
		notify: &recordingNotifier{},
		clock:  clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	if opts.Clock == nil {
		opts.Clock = f.clock
	}
	if opts.ShuffleSeed == 0 {
		opts.ShuffleSeed = 1
	}
	f.svc = NewService(f.store, f.source, f.notify, nil, opts)
	return f
}

// startedLobby creates a lobby, joins the extra players, snapshots set 1 and
// starts the game. The host is always the first username.
func startedLobby(t *testing.T, f *fixture, usernames ...string) string {
	t.Helper()
	ctx := context.Background()
	host := usernames[0]
	snap, err := f.svc.Create(ctx, host, "wizard", nil)
	if err != nil {
		t.Fatalf("create lobby: %v", err)
	}
	code := snap["code"].(string)
	for _, name := range usernames[1:] {
		if _, err := f.svc.Join(ctx, code, name, "knight"); err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
	}
	if _, err := f.svc.ConfigureQuestionSet(ctx, code, host, 1); err != nil {
		t.Fatalf("configure set: %v", err)
	}
	if _, err := f.svc.Start(ctx, code, host); err != nil {
		t.Fatalf("start: %v", err)
	}
	return code
}
