package models

import "encoding/json"

// LoginRequest asks for a session token for the given username.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
}

// CreateLobbyRequest opens a new lobby with the caller as host.
type CreateLobbyRequest struct {
	Character     string `json:"character"`
	QuestionSetID *uint  `json:"question_set_id,omitempty"`
}

// JoinLobbyRequest adds the caller to an existing lobby.
type JoinLobbyRequest struct {
	Character string `json:"character"`
}

// ReadyRequest toggles the caller's ready flag.
type ReadyRequest struct {
	Ready *bool `json:"ready" binding:"required"`
}

// QuestionSetRequest selects the question set for a lobby.
type QuestionSetRequest struct {
	QuestionSetID uint `json:"question_set_id" binding:"required"`
}

// QuestionCountRequest limits how many questions the game will run.
type QuestionCountRequest struct {
	QuestionCount int `json:"question_count" binding:"required"`
}

// AnswerRequest carries a raw answer value; its shape is checked against
// the current question's type.
type AnswerRequest struct {
	Answer json.RawMessage `json:"answer" binding:"required"`
}

// UpdateLobbyRequest is the bulk field patch accepted by PUT /lobbies/:code.
type UpdateLobbyRequest struct {
	Catalog       *string `json:"catalog,omitempty"`
	QuestionCount *int    `json:"question_count,omitempty"`
}
