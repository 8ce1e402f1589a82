package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Question kinds understood by the answer validator.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
)

// QuestionData is the decoded form of a question snapshot. Which correctness
// field applies depends on Type: CorrectIndex for multiple_choice,
// CorrectValue for true_false, Correct for anything else.
type QuestionData struct {
	Type         string          `json:"type"`
	Prompt       string          `json:"prompt"`
	Options      []string        `json:"options,omitempty"`
	CorrectIndex *int            `json:"correct_index,omitempty"`
	CorrectValue *bool           `json:"correct_value,omitempty"`
	Correct      json.RawMessage `json:"correct,omitempty"`
}

// Public returns the client-visible view of the question, without any of
// the correctness fields.
func (q *QuestionData) Public() map[string]interface{} {
	view := map[string]interface{}{
		"type":   q.Type,
		"prompt": q.Prompt,
	}
	if q.Type == QuestionMultipleChoice {
		view["options"] = q.Options
	}
	return view
}

// QuestionSet is a source catalog of questions. Authoring lives outside this
// server; the set is only read when a host configures a lobby.
type QuestionSet struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"not null" json:"name"`
	Category string `json:"category"`

	// Questions carry the correct answers and are never serialized out.
	Questions []Question `gorm:"foreignKey:QuestionSetID" json:"-"`
}

// Question is one entry of a question set.
type Question struct {
	ID            uint           `gorm:"primaryKey"`
	QuestionSetID uint           `gorm:"index;not null"`
	QuestionData  datatypes.JSON `gorm:"not null"`
}
