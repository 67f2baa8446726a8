package domain

import (
	"encoding/json"
	"fmt"
)

// QuestionType tags the two question variants on the wire.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionSubjective     QuestionType = "subjective"
)

// QuestionBody is the variant part of a Question. Only MultipleChoice and
// Subjective implement it.
type QuestionBody interface {
	questionType() QuestionType
}

// Option is one choice of a multiple-choice question.
type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id,omitempty"`
	Content    string `json:"content"`
	IsCorrect  bool   `json:"is_correct"`
}

// MultipleChoice carries an unordered set of options, any of which may be correct.
type MultipleChoice struct {
	Options []Option
}

func (MultipleChoice) questionType() QuestionType { return QuestionMultipleChoice }

// Correct returns the options flagged as correct.
func (m MultipleChoice) Correct() []Option {
	var out []Option
	for _, opt := range m.Options {
		if opt.IsCorrect {
			out = append(out, opt)
		}
	}
	return out
}

// SubjectiveAnswer is the reference answer of a free-text question.
type SubjectiveAnswer struct {
	ID         string `json:"id,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer"`
}

// Subjective is a free-text question with a single reference answer.
type Subjective struct {
	Answer SubjectiveAnswer
}

func (Subjective) questionType() QuestionType { return QuestionSubjective }

// Concept is a tag linking a question to a topic in the source material.
type Concept struct {
	ID         string `json:"id,omitempty"`
	QuestionID string `json:"question_id,omitempty"`
	Concept    string `json:"concept"`
}

// Question is a quiz question. Body holds the variant; use MatchQuestion to
// branch on it.
type Question struct {
	ID          string
	QuizID      string
	Content     string
	Explanation string
	IsActive    bool
	Concepts    []Concept
	Body        QuestionBody
}

// Type returns the variant tag, or "" when Body is unset.
func (q Question) Type() QuestionType {
	if q.Body == nil {
		return ""
	}
	return q.Body.questionType()
}

// MatchQuestion folds over the question variants. Both arms are required, so
// adding a variant breaks every call site at compile time.
func MatchQuestion[T any](q Question, mc func(MultipleChoice) T, subj func(Subjective) T) T {
	switch body := q.Body.(type) {
	case MultipleChoice:
		return mc(body)
	case Subjective:
		return subj(body)
	default:
		panic(fmt.Sprintf("question %s has no body", q.ID))
	}
}

type questionWire struct {
	ID               string            `json:"id"`
	QuizID           string            `json:"quiz_id"`
	QuestionType     QuestionType      `json:"question_type"`
	Content          string            `json:"content"`
	Explanation      string            `json:"explanation"`
	IsActive         bool              `json:"is_active"`
	Concepts         []Concept         `json:"concepts"`
	Options          []Option          `json:"multiple_choice_options,omitempty"`
	SubjectiveAnswer *SubjectiveAnswer `json:"subjective_answer,omitempty"`
}

// UnmarshalJSON decodes the question_type-tagged wire form.
func (q *Question) UnmarshalJSON(data []byte) error {
	var w questionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out := Question{
		ID:          w.ID,
		QuizID:      w.QuizID,
		Content:     w.Content,
		Explanation: w.Explanation,
		IsActive:    w.IsActive,
		Concepts:    w.Concepts,
	}
	switch w.QuestionType {
	case QuestionMultipleChoice:
		out.Body = MultipleChoice{Options: w.Options}
	case QuestionSubjective:
		if w.SubjectiveAnswer == nil {
			return fmt.Errorf("question %s: subjective question without answer", w.ID)
		}
		out.Body = Subjective{Answer: *w.SubjectiveAnswer}
	default:
		return fmt.Errorf("question %s: %w %q", w.ID, ErrUnknownQuestionType, w.QuestionType)
	}
	*q = out
	return nil
}

// MarshalJSON encodes the question back into its wire form.
func (q Question) MarshalJSON() ([]byte, error) {
	w := questionWire{
		ID:           q.ID,
		QuizID:       q.QuizID,
		QuestionType: q.Type(),
		Content:      q.Content,
		Explanation:  q.Explanation,
		IsActive:     q.IsActive,
		Concepts:     q.Concepts,
	}
	switch body := q.Body.(type) {
	case MultipleChoice:
		w.Options = body.Options
	case Subjective:
		answer := body.Answer
		w.SubjectiveAnswer = &answer
	default:
		return nil, fmt.Errorf("question %s: %w", q.ID, ErrUnknownQuestionType)
	}
	return json.Marshal(w)
}
