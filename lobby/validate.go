package lobby

import (
	"encoding/json"
	"math"

	"quizserver/models"

	"gorm.io/datatypes"
)

// ParseQuestionData decodes a question snapshot and rejects malformed data.
// A missing type, or a multiple-choice question without options or a correct
// index, is a hard internal fault rather than a question nobody can score.
func ParseQuestionData(raw datatypes.JSON) (*models.QuestionData, error) {
	var q models.QuestionData
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, ErrQuestionDataCorrupt
	}
	if q.Type == "" {
		return nil, ErrQuestionDataCorrupt
	}
	switch q.Type {
	case models.QuestionMultipleChoice:
		if len(q.Options) == 0 || q.CorrectIndex == nil {
			return nil, ErrQuestionDataCorrupt
		}
	case models.QuestionTrueFalse:
		if q.CorrectValue == nil {
			return nil, ErrQuestionDataCorrupt
		}
	default:
		if len(q.Correct) == 0 {
			return nil, ErrQuestionDataCorrupt
		}
	}
	return &q, nil
}

// ValidateAnswer checks the raw answer's shape against the question type and
// reports whether it is correct. Shape violations come back as validation
// errors; the caller decides what to do with correctness.
func ValidateAnswer(q *models.QuestionData, raw json.RawMessage) (bool, error) {
	switch q.Type {
	case models.QuestionMultipleChoice:
		idx, ok := decodeInt(raw)
		if !ok {
			return false, validationError("multiple choice answers must be an option index")
		}
		if idx < 0 || idx >= len(q.Options) {
			return false, validationError("answer index %d out of range [0, %d)", idx, len(q.Options))
		}
		return idx == *q.CorrectIndex, nil

	case models.QuestionTrueFalse:
		value, ok := decodeBool(raw)
		if !ok {
			return false, validationError("true/false answers must be a boolean or 0/1")
		}
		return value == *q.CorrectValue, nil

	default:
		// Unknown kinds accept any number or boolean and compare against
		// the stored correct value.
		if _, ok := decodeBool(raw); !ok {
			if _, numeric := decodeNumber(raw); !numeric {
				return false, validationError("unsupported answer shape for question type %q", q.Type)
			}
		}
		return answerEquals(raw, q.Correct), nil
	}
}

// CorrectAnswer returns the canonical correct value for client feedback.
func CorrectAnswer(q *models.QuestionData) interface{} {
	switch q.Type {
	case models.QuestionMultipleChoice:
		return *q.CorrectIndex
	case models.QuestionTrueFalse:
		return *q.CorrectValue
	default:
		return json.RawMessage(q.Correct)
	}
}

func decodeInt(raw json.RawMessage) (int, bool) {
	f, ok := decodeNumber(raw)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

// decodeBool accepts JSON booleans and the integers 0/1.
func decodeBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	if f, ok := decodeNumber(raw); ok && (f == 0 || f == 1) {
		return f == 1, true
	}
	return false, false
}

// answerEquals compares an answer against the stored correct value by
// decoded value, so 1969 matches 1.969e3 and formatting never matters.
// Numbers compare as numbers, booleans as booleans with 0/1 coercion.
func answerEquals(raw, correct json.RawMessage) bool {
	if f, ok := decodeNumber(raw); ok {
		if cf, ok := decodeNumber(correct); ok {
			return f == cf
		}
	}
	if b, ok := decodeBool(raw); ok {
		if cb, ok := decodeBool(correct); ok {
			return b == cb
		}
	}
	return false
}
