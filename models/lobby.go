package models

import (
	"time"

	"gorm.io/datatypes"
)

// Game phases a lobby moves through.
const (
	PhaseWaiting  = "waiting"
	PhaseQuestion = "question"
	PhaseResults  = "results"
	PhasePostGame = "post-game"
)

// Lobby is one game session, identified by a short join code.
// While started is false the lobby sits in the waiting phase;
// current_question is set only for started lobbies.
type Lobby struct {
	Code              string `gorm:"primaryKey;size:4"`
	Host              string `gorm:"not null"`
	Started           bool   `gorm:"not null;default:false"`
	GamePhase         string `gorm:"not null;default:'waiting'"`
	CurrentQuestion   *int
	QuestionStartTime *time.Time
	QuestionCount     *int
	QuestionSetID     *uint
	Catalog           string
	CreatedAt         time.Time `gorm:"not null"`
	LastActivity      time.Time `gorm:"not null"`

	Players   []LobbyPlayer   `gorm:"foreignKey:LobbyCode;references:Code"`
	Questions []LobbyQuestion `gorm:"foreignKey:LobbyCode;references:Code"`
}

// LobbyPlayer is one participant of one lobby. Exactly one player per
// non-empty lobby has IsHost set. CurrentAnswer, Answered and AnswerTime
// are cleared whenever a new question opens.
type LobbyPlayer struct {
	LobbyCode     string `gorm:"primaryKey;size:4"`
	Username      string `gorm:"primaryKey"`
	Character     string
	Score         int `gorm:"not null;default:0"`
	Multiplier    int `gorm:"not null;default:1"`
	CurrentAnswer datatypes.JSON
	Answered      bool `gorm:"not null;default:false"`
	Ready         bool `gorm:"not null;default:false"`
	IsHost        bool `gorm:"not null;default:false"`
	Connected     bool `gorm:"not null;default:true"`
	AnswerTime    *time.Time
}

// LobbyQuestion is an immutable per-lobby copy of a question. Snapshots are
// taken at configuration time so edits to the source set never alter a
// running game.
type LobbyQuestion struct {
	LobbyCode     string         `gorm:"primaryKey;size:4"`
	QuestionIndex int            `gorm:"primaryKey"`
	QuestionData  datatypes.JSON `gorm:"not null"`
}
