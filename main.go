package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quizserver/broadcast"
	"quizserver/database"
	"quizserver/handlers"
	"quizserver/lobby"
	"quizserver/middlewares"
	"quizserver/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

func main() {
	logger, err := utils.InitLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("failed to load config file", zap.Error(err))
	}

	// PostgreSQL and Redis come up concurrently.
	var db *gorm.DB
	var rdb *redis.Client
	done := make(chan bool)

	go func() {
		db, err = database.InitPostgreSQL(config, logger)
		if err != nil {
			logger.Fatal("failed to initialize PostgreSQL", zap.Error(err))
		}
		done <- true
	}()

	go func() {
		rdb, err = database.InitRedis(logger)
		if err != nil {
			logger.Fatal("failed to initialize Redis", zap.Error(err))
		}
		done <- true
	}()

	<-done
	<-done

	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("failed to migrate schema", zap.Error(err))
	}

	hub := broadcast.NewHub(logger)
	store := lobby.NewGormStore(db)
	catalog := database.NewQuestionCatalog(db)

	svc := lobby.NewService(store, catalog, hub, logger, lobby.Options{
		AnswerWindow: time.Duration(config.AnswerWindowSeconds) * time.Second,
		Capacity:     config.LobbyCapacity,
		CodeAttempts: config.CodeAttempts,
	})

	// Auto-advance sweep loop.
	scheduler := lobby.NewScheduler(svc, logger,
		time.Duration(config.SweepIntervalMillis)*time.Millisecond,
		config.AdvanceWorkers,
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go scheduler.Run(ctx)

	// Stale lobby cleanup on a cron schedule.
	reaper := lobby.NewReaper(store, hub, logger, nil)
	cronJobs, err := utils.CronReaper(reaper, config.ReaperSchedule, logger)
	if err != nil {
		logger.Fatal("failed to schedule lobby cleanup", zap.Error(err))
	}
	defer cronJobs.Stop()

	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.POST("/auth/login", func(c *gin.Context) {
		handlers.Login(c, rdb, logger)
	})

	authed := router.Group("/", middlewares.AuthMiddleware(rdb, logger))

	authed.POST("/lobbies/create", func(c *gin.Context) {
		handlers.CreateLobby(c, svc, logger)
	})
	authed.GET("/lobbies/list", func(c *gin.Context) {
		handlers.ListLobbies(c, svc, logger)
	})
	authed.GET("/lobbies/:code", func(c *gin.Context) {
		handlers.GetLobby(c, svc, logger)
	})
	authed.PUT("/lobbies/:code", func(c *gin.Context) {
		handlers.UpdateLobby(c, svc, logger)
	})
	authed.DELETE("/lobbies/:code", func(c *gin.Context) {
		handlers.DeleteLobby(c, svc, logger)
	})
	authed.POST("/lobbies/:code/join", func(c *gin.Context) {
		handlers.JoinLobby(c, svc, logger)
	})
	authed.POST("/lobbies/:code/leave", func(c *gin.Context) {
		handlers.LeaveLobby(c, svc, logger)
	})
	authed.POST("/lobbies/:code/ready", func(c *gin.Context) {
		handlers.SetReady(c, svc, logger)
	})
	authed.GET("/question-sets", func(c *gin.Context) {
		handlers.ListQuestionSets(c, svc, logger)
	})
	authed.POST("/lobbies/:code/question-set", func(c *gin.Context) {
		handlers.SetQuestionSet(c, svc, logger)
	})
	authed.POST("/lobbies/:code/question-count", func(c *gin.Context) {
		handlers.SetQuestionCount(c, svc, logger)
	})
	authed.POST("/lobbies/:code/start", func(c *gin.Context) {
		handlers.StartGame(c, svc, logger)
	})
	authed.POST("/lobbies/:code/answer", func(c *gin.Context) {
		handlers.SubmitAnswer(c, svc, logger)
	})
	authed.POST("/lobbies/:code/next-question", func(c *gin.Context) {
		handlers.NextQuestion(c, svc, logger)
	})
	authed.GET("/lobbies/:code/game-state", func(c *gin.Context) {
		handlers.GameState(c, svc, logger)
	})
	authed.POST("/lobbies/:code/return-to-lobby", func(c *gin.Context) {
		handlers.ReturnToLobby(c, svc, logger)
	})
	authed.POST("/lobbies/:code/rejoin-lobby", func(c *gin.Context) {
		handlers.RejoinLobby(c, svc, logger)
	})
	authed.POST("/lobbies/cleanup", func(c *gin.Context) {
		handlers.CleanupLobbies(c, reaper, logger)
	})
	authed.GET("/lobbies/:code/debug", func(c *gin.Context) {
		handlers.DebugLobby(c, svc, logger)
	})

	// Push updates ride a lobby-scoped websocket.
	authed.GET("/ws/:code", func(c *gin.Context) {
		hub.Subscribe(c.Writer, c.Request, c.Param("code"))
	})

	port := config.ServerPort
	if port == "" {
		port = ":8080"
	}
	if err := router.Run(port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
