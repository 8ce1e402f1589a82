package lobby

import (
	"context"
	"testing"

	"quizserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureQuestionSet(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, "alice", "", nil)
	require.NoError(t, err)
	code := snap["code"].(string)
	_, err = f.svc.Join(ctx, code, "bob", "")
	require.NoError(t, err)

	_, err = f.svc.ConfigureQuestionSet(ctx, code, "bob", 1)
	assert.True(t, IsKind(err, KindAuthorization), "only the host picks the set")

	snap, err = f.svc.ConfigureQuestionSet(ctx, code, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, "general", snap["catalog"])
	assert.Equal(t, 3, snap["totalQuestions"])

	questions, err := f.store.GetQuestions(ctx, code)
	require.NoError(t, err)
	require.Len(t, questions, 3)
	// The snapshot keeps the authoring order.
	q, err := ParseQuestionData(questions[0].QuestionData)
	require.NoError(t, err)
	assert.Equal(t, "capital of France", q.Prompt)

	_, err = f.svc.ConfigureQuestionSet(ctx, code, "alice", 42)
	assert.ErrorIs(t, err, ErrQuestionSetNotFound)
}

func TestConfigureQuestionSetAfterStart(t *testing.T) {
	f := newFixture(t, Options{})
	code := startedLobby(t, f, "alice")

	_, err := f.svc.ConfigureQuestionSet(context.Background(), code, "alice", 1)
	assert.True(t, IsKind(err, KindState))
}

func TestConfigureQuestionCount(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, "alice", "", nil)
	require.NoError(t, err)
	code := snap["code"].(string)

	_, err = f.svc.ConfigureQuestionCount(ctx, code, "alice", 2)
	assert.True(t, IsKind(err, KindValidation), "needs a question set first")

	_, err = f.svc.ConfigureQuestionSet(ctx, code, "alice", 1)
	require.NoError(t, err)

	snap, err = f.svc.ConfigureQuestionCount(ctx, code, "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, snap["totalQuestions"])

	questions, err := f.store.GetQuestions(ctx, code)
	require.NoError(t, err)
	assert.Len(t, questions, 2)

	// Requests beyond the set size clamp to what the set holds.
	snap, err = f.svc.ConfigureQuestionCount(ctx, code, "alice", 50)
	require.NoError(t, err)
	assert.Equal(t, 3, snap["totalQuestions"])

	_, err = f.svc.ConfigureQuestionCount(ctx, code, "alice", 0)
	assert.True(t, IsKind(err, KindValidation))
	_, err = f.svc.ConfigureQuestionCount(ctx, code, "alice", -3)
	assert.True(t, IsKind(err, KindValidation))
}

func TestStart(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, "alice", "", nil)
	require.NoError(t, err)
	code := snap["code"].(string)

	_, err = f.svc.Start(ctx, code, "alice")
	assert.True(t, IsKind(err, KindValidation), "cannot start without questions")

	_, err = f.svc.ConfigureQuestionSet(ctx, code, "alice", 1)
	require.NoError(t, err)

	snap, err = f.svc.Start(ctx, code, "alice")
	require.NoError(t, err)
	assert.Equal(t, true, snap["started"])
	assert.Equal(t, models.PhaseQuestion, snap["gamePhase"])
	assert.Equal(t, 0, snap["currentQuestionIndex"])
	require.NotNil(t, snap["currentQuestion"])
	current := snap["currentQuestion"].(map[string]interface{})
	_, exposed := current["correct_index"]
	assert.False(t, exposed, "correct answers never reach clients")

	lb, err := f.store.GetLobby(ctx, code)
	require.NoError(t, err)
	require.NotNil(t, lb.QuestionStartTime)
	assert.Equal(t, f.clock.Now().UTC(), *lb.QuestionStartTime)

	_, err = f.svc.Start(ctx, code, "alice")
	assert.True(t, IsKind(err, KindConflict), "double start")
}

func TestStartNonHost(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, "alice", "", nil)
	require.NoError(t, err)
	code := snap["code"].(string)
	_, err = f.svc.Join(ctx, code, "bob", "")
	require.NoError(t, err)
	_, err = f.svc.ConfigureQuestionSet(ctx, code, "alice", 1)
	require.NoError(t, err)

	_, err = f.svc.Start(ctx, code, "bob")
	assert.True(t, IsKind(err, KindAuthorization))
}

func TestUpdateLobby(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, "alice", "", nil)
	require.NoError(t, err)
	code := snap["code"].(string)
	_, err = f.svc.ConfigureQuestionSet(ctx, code, "alice", 1)
	require.NoError(t, err)

	catalog := "science"
	count := 2
	snap, err = f.svc.UpdateLobby(ctx, code, "alice", models.UpdateLobbyRequest{
		Catalog:       &catalog,
		QuestionCount: &count,
	})
	require.NoError(t, err)
	assert.Equal(t, "science", snap["catalog"])
	assert.Equal(t, 2, snap["totalQuestions"])

	_, err = f.svc.UpdateLobby(ctx, code, "alice", models.UpdateLobbyRequest{})
	require.NoError(t, err, "empty patch is a no-op")
}

func TestUpdateLobbySingleTransaction(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, "alice", "", nil)
	require.NoError(t, err)
	code := snap["code"].(string)
	_, err = f.svc.ConfigureQuestionSet(ctx, code, "alice", 1)
	require.NoError(t, err)

	catalog := "science"
	count := 2
	before := f.store.transactions()
	_, err = f.svc.UpdateLobby(ctx, code, "alice", models.UpdateLobbyRequest{
		Catalog:       &catalog,
		QuestionCount: &count,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.transactions()-before,
		"a combined patch commits or rolls back as one unit")
}

func TestUpdateLobbyAfterStart(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	code := startedLobby(t, f, "alice")

	catalog := "science"
	_, err := f.svc.UpdateLobby(ctx, code, "alice", models.UpdateLobbyRequest{Catalog: &catalog})
	assert.True(t, IsKind(err, KindState))

	count := 1
	_, err = f.svc.UpdateLobby(ctx, code, "alice", models.UpdateLobbyRequest{QuestionCount: &count})
	assert.True(t, IsKind(err, KindState))

	lb, err := f.store.GetLobby(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "general", lb.Catalog, "a rejected patch changes nothing")
}

func TestDeleteLobby(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	snap, err := f.svc.Create(ctx, "alice", "", nil)
	require.NoError(t, err)
	code := snap["code"].(string)
	_, err = f.svc.Join(ctx, code, "bob", "")
	require.NoError(t, err)

	err = f.svc.Delete(ctx, code, "bob")
	assert.True(t, IsKind(err, KindAuthorization))

	require.NoError(t, f.svc.Delete(ctx, code, "alice"))
	_, err = f.store.GetLobby(ctx, code)
	assert.True(t, IsKind(err, KindNotFound))
	players, err := f.store.GetPlayers(ctx, code)
	require.NoError(t, err)
	assert.Empty(t, players)
	assert.Equal(t, []string{code}, f.notify.closedCodes())
}
