package handlers

import (
	"net/http"
	"time"

	"quizserver/middlewares"
	"quizserver/models"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Login issues a signed token backed by a redis session record. Identity is
// name-based; real account management lives outside this server.
func Login(c *gin.Context, rdb *redis.Client, logger *zap.Logger) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	sessionID := uuid.New().String()
	if err := rdb.Set(c.Request.Context(), "session:"+sessionID, req.Username, 24*time.Hour).Err(); err != nil {
		logger.Error("failed to store session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	token, err := middlewares.GenerateToken(req.Username, sessionID)
	if err != nil {
		logger.Error("failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"username": req.Username,
	})
}
