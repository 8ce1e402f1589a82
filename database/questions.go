package database

import (
	"context"
	"errors"

	"quizserver/lobby"
	"quizserver/models"

	"gorm.io/gorm"
)

// QuestionCatalog reads question sets from the database. Authoring and
// import of sets happens outside this server; the lobby core only consumes
// them through this source when a host configures a game.
type QuestionCatalog struct {
	db *gorm.DB
}

func NewQuestionCatalog(db *gorm.DB) *QuestionCatalog {
	return &QuestionCatalog{db: db}
}

func (c *QuestionCatalog) GetQuestionSet(ctx context.Context, id uint) (*models.QuestionSet, error) {
	var set models.QuestionSet
	err := c.db.WithContext(ctx).Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(&set, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lobby.ErrQuestionSetNotFound
		}
		return nil, err
	}
	return &set, nil
}

func (c *QuestionCatalog) ListQuestionSets(ctx context.Context) ([]models.QuestionSet, error) {
	var sets []models.QuestionSet
	err := c.db.WithContext(ctx).Order("id").Find(&sets).Error
	return sets, err
}
