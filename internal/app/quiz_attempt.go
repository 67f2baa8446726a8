package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"learnlab-client/internal/domain"
	"learnlab-client/internal/validate"
)

// QuizAPI is the slice of the API the attempt engine needs.
type QuizAPI interface {
	ListQuizzes(ctx context.Context, fileID string) ([]domain.Quiz, error)
	CreateAttempt(ctx context.Context, quizID string) (domain.QuizAttempt, error)
	SubmitResponse(ctx context.Context, attemptID string, sub domain.ResponseSubmission) (domain.QuestionResponse, error)
	CompleteAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error)
}

// QuestionRepository loads the question sequence of a quiz, possibly from a cache.
type QuestionRepository interface {
	GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// AttemptRecorder archives completed attempts.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, rec domain.AttemptRecord) error
}

// QuizState is a copy of the engine state for rendering.
type QuizState struct {
	Quizzes              []domain.Quiz
	CurrentQuiz          *domain.Quiz
	CurrentAttempt       *domain.QuizAttempt
	Questions            []domain.Question
	CurrentQuestionIndex int
	Responses            map[string]domain.QuestionResponse
	Loading              bool
	SubmittingResponse   bool
	Error                string
}

// QuizResults summarizes an attempt from the recorded responses.
type QuizResults struct {
	Total    int
	Answered int
	Correct  int
	// Score is the server's percentage, set once the attempt is completed.
	Score *float64
}

// QuizOption configures a QuizAttempts engine.
type QuizOption func(*QuizAttempts)

// WithRecorder archives every completed attempt through r.
func WithRecorder(r AttemptRecorder) QuizOption {
	return func(q *QuizAttempts) { q.recorder = r }
}

// QuizAttempts drives a single quiz attempt: start, answer, complete.
//
// Responses are keyed by question id and written at most once per attempt;
// a repeated submission returns the stored response without a network call.
type QuizAttempts struct {
	api       QuizAPI
	questions QuestionRepository
	recorder  AttemptRecorder
	log       zerolog.Logger

	mu      sync.Mutex
	state   QuizState
	attempt uint64
}

func NewQuizAttempts(api QuizAPI, questions QuestionRepository, log zerolog.Logger, opts ...QuizOption) *QuizAttempts {
	q := &QuizAttempts{
		api:       api,
		questions: questions,
		log:       log.With().Str("component", "quiz_attempts").Logger(),
		state:     QuizState{Responses: map[string]domain.QuestionResponse{}},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Snapshot returns a copy of the current state.
func (q *QuizAttempts) Snapshot() QuizState {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.state
	s.Quizzes = append([]domain.Quiz(nil), q.state.Quizzes...)
	s.Questions = append([]domain.Question(nil), q.state.Questions...)
	s.CurrentQuiz = clonePtr(q.state.CurrentQuiz)
	s.CurrentAttempt = clonePtr(q.state.CurrentAttempt)
	s.Responses = make(map[string]domain.QuestionResponse, len(q.state.Responses))
	for id, resp := range q.state.Responses {
		s.Responses[id] = resp
	}
	return s
}

// FetchQuizzes loads the quizzes of a file, or every quiz when fileID is empty.
func (q *QuizAttempts) FetchQuizzes(ctx context.Context, fileID string) error {
	q.begin()
	quizzes, err := q.api.ListQuizzes(ctx, fileID)
	if err != nil {
		return q.fail("Failed to fetch quizzes", fmt.Errorf("fetch quizzes: %w", err))
	}
	q.mu.Lock()
	q.state.Quizzes = quizzes
	q.state.Loading = false
	q.mu.Unlock()
	return nil
}

// StartQuiz creates a new attempt, discards any previous one along with its
// responses, and loads the questions.
func (q *QuizAttempts) StartQuiz(ctx context.Context, quizID string) (domain.QuizAttempt, error) {
	q.begin()
	attempt, err := q.api.CreateAttempt(ctx, quizID)
	if err != nil {
		return domain.QuizAttempt{}, q.fail("Failed to start quiz", fmt.Errorf("start quiz %s: %w", quizID, err))
	}

	q.mu.Lock()
	q.attempt++
	quiz, ok := findQuiz(q.state.Quizzes, quizID)
	if !ok {
		quiz = domain.Quiz{ID: quizID}
	}
	q.state.CurrentQuiz = &quiz
	q.state.CurrentAttempt = &attempt
	q.state.Questions = nil
	q.state.CurrentQuestionIndex = 0
	q.state.Responses = map[string]domain.QuestionResponse{}
	q.mu.Unlock()

	q.log.Info().Str("quiz_id", quizID).Str("attempt_id", attempt.ID).Msg("attempt started")
	if err := q.FetchQuestions(ctx, quizID); err != nil {
		return attempt, err
	}
	return attempt, nil
}

// FetchQuestions loads the ordered question sequence of a quiz.
func (q *QuizAttempts) FetchQuestions(ctx context.Context, quizID string) error {
	q.begin()
	q.mu.Lock()
	attempt := q.attempt
	q.mu.Unlock()

	questions, err := q.questions.GetQuestions(ctx, quizID)
	if err != nil {
		return q.fail("Failed to fetch questions", fmt.Errorf("fetch questions for quiz %s: %w", quizID, err))
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.state.Loading = false
	if q.attempt != attempt {
		return nil
	}
	q.state.Questions = questions
	return nil
}

// SubmitResponse answers one question of the current attempt. A question
// already answered in this attempt yields the stored response with no
// network call. A server reply of 400 or 409 is treated as "already
// answered" and resolved from local state when possible.
func (q *QuizAttempts) SubmitResponse(ctx context.Context, questionID, response string, timeTaken time.Duration) (domain.QuestionResponse, error) {
	q.mu.Lock()
	if q.state.CurrentAttempt == nil {
		q.mu.Unlock()
		return domain.QuestionResponse{}, domain.ErrNoActiveAttempt
	}
	if existing, ok := q.state.Responses[questionID]; ok {
		q.mu.Unlock()
		return existing, nil
	}
	attemptID := q.state.CurrentAttempt.ID
	attempt := q.attempt
	q.mu.Unlock()

	sub := domain.ResponseSubmission{
		QuestionID: questionID,
		Response:   response,
		TimeTaken:  int(timeTaken / time.Second),
	}
	if err := validate.Struct(sub); err != nil {
		return domain.QuestionResponse{}, err
	}

	q.mu.Lock()
	q.state.SubmittingResponse = true
	q.state.Error = ""
	q.mu.Unlock()

	resp, err := q.api.SubmitResponse(ctx, attemptID, sub)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.state.SubmittingResponse = false
	if err != nil {
		if alreadyAnswered(err) {
			if existing, ok := q.state.Responses[questionID]; ok {
				return existing, nil
			}
			q.log.Warn().Err(err).Str("attempt_id", attemptID).Str("question_id", questionID).Msg("question answered outside this session")
			return domain.QuestionResponse{}, fmt.Errorf("question %s already answered: %w", questionID, domain.ErrConflict)
		}
		q.state.Error = "Failed to submit response"
		q.log.Warn().Err(err).Str("attempt_id", attemptID).Str("question_id", questionID).Msg("submit response failed")
		return domain.QuestionResponse{}, fmt.Errorf("submit response: %w", err)
	}
	if q.attempt != attempt {
		return resp, nil
	}
	// A concurrent submission for the same question may have landed first.
	if existing, ok := q.state.Responses[questionID]; ok {
		return existing, nil
	}
	q.state.Responses[questionID] = resp
	return resp, nil
}

// CompleteQuiz finalizes the current attempt and replaces it with the
// server's completed record. The attempt is archived when a recorder is set;
// archive failures are logged only.
func (q *QuizAttempts) CompleteQuiz(ctx context.Context) (domain.QuizAttempt, error) {
	q.mu.Lock()
	if q.state.CurrentAttempt == nil {
		q.mu.Unlock()
		return domain.QuizAttempt{}, domain.ErrNoActiveAttempt
	}
	attemptID := q.state.CurrentAttempt.ID
	attempt := q.attempt
	q.state.Loading = true
	q.state.Error = ""
	q.mu.Unlock()

	completed, err := q.api.CompleteAttempt(ctx, attemptID)
	if err != nil {
		return domain.QuizAttempt{}, q.fail("Failed to complete quiz", fmt.Errorf("complete attempt %s: %w", attemptID, err))
	}

	q.mu.Lock()
	q.state.Loading = false
	if q.attempt != attempt {
		q.mu.Unlock()
		return completed, nil
	}
	q.state.CurrentAttempt = &completed
	rec := q.recordLocked(completed)
	q.mu.Unlock()

	log := q.log.Info().Str("attempt_id", completed.ID)
	if completed.Score != nil {
		log = log.Float64("score", *completed.Score)
	}
	log.Msg("attempt completed")

	if q.recorder != nil {
		if err := q.recorder.RecordAttempt(ctx, rec); err != nil {
			q.log.Warn().Err(err).Str("attempt_id", completed.ID).Msg("archive attempt failed")
		}
	}
	return completed, nil
}

// SetCurrentQuestionIndex moves the question cursor. It is not bounds-checked.
func (q *QuizAttempts) SetCurrentQuestionIndex(i int) {
	q.mu.Lock()
	q.state.CurrentQuestionIndex = i
	q.mu.Unlock()
}

// CurrentQuestion returns the question under the cursor.
func (q *QuizAttempts) CurrentQuestion() (domain.Question, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.state.CurrentQuestionIndex
	if i < 0 || i >= len(q.state.Questions) {
		return domain.Question{}, false
	}
	return q.state.Questions[i], true
}

// IsLastQuestion reports whether the cursor is on (or past) the final question.
func (q *QuizAttempts) IsLastQuestion() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state.CurrentQuestionIndex >= len(q.state.Questions)-1
}

// Results tallies the recorded responses of the current attempt.
func (q *QuizAttempts) Results() QuizResults {
	q.mu.Lock()
	defer q.mu.Unlock()
	res := QuizResults{Total: len(q.state.Questions), Answered: len(q.state.Responses)}
	for _, resp := range q.state.Responses {
		if resp.IsCorrect {
			res.Correct++
		}
	}
	if q.state.CurrentAttempt != nil && q.state.CurrentAttempt.Score != nil {
		score := *q.state.CurrentAttempt.Score
		res.Score = &score
	}
	return res
}

// Reset drops the current attempt, questions and responses.
func (q *QuizAttempts) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.attempt++
	q.state.CurrentQuiz = nil
	q.state.CurrentAttempt = nil
	q.state.Questions = nil
	q.state.CurrentQuestionIndex = 0
	q.state.Responses = map[string]domain.QuestionResponse{}
	q.state.SubmittingResponse = false
	q.state.Error = ""
}

// recordLocked builds the archive record with responses in question order.
func (q *QuizAttempts) recordLocked(completed domain.QuizAttempt) domain.AttemptRecord {
	rec := domain.AttemptRecord{Attempt: completed}
	if q.state.CurrentQuiz != nil {
		rec.QuizTitle = q.state.CurrentQuiz.Title
	}
	seen := make(map[string]bool, len(q.state.Responses))
	for _, question := range q.state.Questions {
		if resp, ok := q.state.Responses[question.ID]; ok {
			rec.Responses = append(rec.Responses, resp)
			seen[question.ID] = true
		}
	}
	for id, resp := range q.state.Responses {
		if !seen[id] {
			rec.Responses = append(rec.Responses, resp)
		}
	}
	return rec
}

func (q *QuizAttempts) begin() {
	q.mu.Lock()
	q.state.Loading = true
	q.state.Error = ""
	q.mu.Unlock()
}

func (q *QuizAttempts) fail(msg string, err error) error {
	q.mu.Lock()
	q.state.Error = msg
	q.state.Loading = false
	q.mu.Unlock()
	q.log.Warn().Err(err).Msg(msg)
	return err
}

// alreadyAnswered recognizes the API's rejection of a second response to
// the same question: 409, or 400 as older deployments return.
func alreadyAnswered(err error) bool {
	if errors.Is(err, domain.ErrConflict) {
		return true
	}
	var status interface{ HTTPStatus() int }
	return errors.As(err, &status) && status.HTTPStatus() == http.StatusBadRequest
}

func findQuiz(quizzes []domain.Quiz, quizID string) (domain.Quiz, bool) {
	for _, quiz := range quizzes {
		if quiz.ID == quizID {
			return quiz, true
		}
	}
	return domain.Quiz{}, false
}
