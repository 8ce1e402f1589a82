package handlers

import (
	"errors"
	"net/http"

	"quizserver/lobby"
	"quizserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func currentUser(c *gin.Context) string {
	return c.GetString("username")
}

// respondError translates typed domain errors into transport responses.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var lerr *lobby.Error
	if errors.As(err, &lerr) {
		if lerr.Kind == lobby.KindInternal {
			logger.Error("internal fault", zap.Error(err))
		}
		c.JSON(lerr.HTTPStatus(), gin.H{"error": lerr.Message})
		return
	}
	logger.Error("unexpected error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// CreateLobby opens a new lobby with the caller as host.
func CreateLobby(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	var req models.CreateLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := svc.Create(c.Request.Context(), currentUser(c), req.Character, req.QuestionSetID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// ListLobbies returns lobbies still waiting for players.
func ListLobbies(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	views, err := svc.ListWaiting(c.Request.Context())
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lobbies": views})
}

// GetLobby returns the hydrated lobby view.
func GetLobby(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	snap, err := svc.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// UpdateLobby applies a bulk field patch, host only.
func UpdateLobby(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	var req models.UpdateLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := svc.UpdateLobby(c.Request.Context(), c.Param("code"), currentUser(c), req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// DeleteLobby closes a lobby, host only.
func DeleteLobby(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	if err := svc.Delete(c.Request.Context(), c.Param("code"), currentUser(c)); err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

// JoinLobby adds the caller to a waiting lobby.
func JoinLobby(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	var req models.JoinLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	snap, err := svc.Join(c.Request.Context(), c.Param("code"), currentUser(c), req.Character)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// LeaveLobby removes the caller from the lobby.
func LeaveLobby(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	closed, err := svc.Leave(c.Request.Context(), c.Param("code"), currentUser(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}

// SetReady flips the caller's ready flag.
func SetReady(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	var req models.ReadyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Ready == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ready flag is required"})
		return
	}
	snap, err := svc.SetReady(c.Request.Context(), c.Param("code"), currentUser(c), *req.Ready)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ListQuestionSets returns the catalogs available for configuration.
func ListQuestionSets(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	sets, err := svc.ListQuestionSets(c.Request.Context())
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questionSets": sets})
}

// SetQuestionSet selects the question set, host only.
func SetQuestionSet(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	var req models.QuestionSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question_set_id is required"})
		return
	}
	snap, err := svc.ConfigureQuestionSet(c.Request.Context(), c.Param("code"), currentUser(c), req.QuestionSetID)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SetQuestionCount limits the number of questions, host only.
func SetQuestionCount(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	var req models.QuestionCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question_count is required"})
		return
	}
	snap, err := svc.ConfigureQuestionCount(c.Request.Context(), c.Param("code"), currentUser(c), req.QuestionCount)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// StartGame begins the first question, host only.
func StartGame(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	snap, err := svc.Start(c.Request.Context(), c.Param("code"), currentUser(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// SubmitAnswer records the caller's answer to the open question.
func SubmitAnswer(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	var req models.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Answer) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "answer is required"})
		return
	}
	result, err := svc.SubmitAnswer(c.Request.Context(), c.Param("code"), currentUser(c), req.Answer)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// NextQuestion is the host's manual advance.
func NextQuestion(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	advanced, err := svc.Advance(c.Request.Context(), c.Param("code"), currentUser(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"advanced": advanced})
}

// GameState returns the live view with answer progress and time remaining.
func GameState(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	snap, err := svc.GameState(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// ReturnToLobby resets a finished game, host only.
func ReturnToLobby(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	snap, err := svc.ReturnToLobby(c.Request.Context(), c.Param("code"), currentUser(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// RejoinLobby reconnects an existing player.
func RejoinLobby(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	snap, err := svc.Rejoin(c.Request.Context(), c.Param("code"), currentUser(c))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// CleanupLobbies runs one reaper pass on demand.
func CleanupLobbies(c *gin.Context, reaper *lobby.Reaper, logger *zap.Logger) {
	reaped := reaper.Sweep(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"reaped": reaped})
}

// DebugLobby exposes the raw session rows.
func DebugLobby(c *gin.Context, svc *lobby.Service, logger *zap.Logger) {
	state, err := svc.DebugState(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
