package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"learnlab-client/internal/app"
	"learnlab-client/internal/domain"
	"learnlab-client/internal/infra/memory"
)

type statusError int

func (e statusError) Error() string   { return fmt.Sprintf("status %d", int(e)) }
func (e statusError) HTTPStatus() int { return int(e) }

type fakeQuizAPI struct {
	mu          sync.Mutex
	attempts    int
	writes      []domain.ResponseSubmission
	answered    map[string]bool
	conflict    error
	submitErr   error
	completeErr error
}

func newFakeQuizAPI() *fakeQuizAPI {
	return &fakeQuizAPI{answered: map[string]bool{}, conflict: statusError(400)}
}

func (f *fakeQuizAPI) ListQuizzes(context.Context, string) ([]domain.Quiz, error) {
	return []domain.Quiz{{ID: "quiz-1", Title: "Cells", TotalQuestions: 2}, {ID: "quiz-2", Title: "Atoms"}}, nil
}

func (f *fakeQuizAPI) CreateAttempt(_ context.Context, quizID string) (domain.QuizAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	f.answered = map[string]bool{}
	return domain.QuizAttempt{ID: fmt.Sprintf("attempt-%d", f.attempts), QuizID: quizID, Status: domain.AttemptInProgress}, nil
}

func (f *fakeQuizAPI) SubmitResponse(_ context.Context, attemptID string, sub domain.ResponseSubmission) (domain.QuestionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return domain.QuestionResponse{}, f.submitErr
	}
	if f.answered[sub.QuestionID] {
		return domain.QuestionResponse{}, f.conflict
	}
	f.answered[sub.QuestionID] = true
	f.writes = append(f.writes, sub)
	return domain.QuestionResponse{
		ID:         fmt.Sprintf("resp-%d", len(f.writes)),
		AttemptID:  attemptID,
		QuestionID: sub.QuestionID,
		Response:   sub.Response,
		IsCorrect:  sub.Response == "42",
		TimeTaken:  sub.TimeTaken,
	}, nil
}

func (f *fakeQuizAPI) CompleteAttempt(_ context.Context, attemptID string) (domain.QuizAttempt, error) {
	if f.completeErr != nil {
		return domain.QuizAttempt{}, f.completeErr
	}
	score := 50.0
	end := domain.NewTimestamp(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	return domain.QuizAttempt{ID: attemptID, QuizID: "quiz-1", Status: domain.AttemptCompleted, Score: &score, EndTime: &end}, nil
}

type staticQuestions map[string][]domain.Question

func (s staticQuestions) Questions(_ context.Context, quizID string) ([]domain.Question, error) {
	qs, ok := s[quizID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return qs, nil
}

type recorderFunc func(context.Context, domain.AttemptRecord) error

func (f recorderFunc) RecordAttempt(ctx context.Context, rec domain.AttemptRecord) error {
	return f(ctx, rec)
}

func testQuestions() staticQuestions {
	return staticQuestions{
		"quiz-1": {
			{ID: "q1", QuizID: "quiz-1", Content: "6*7?", Body: domain.Subjective{}},
			{ID: "q2", QuizID: "quiz-1", Content: "Pick", Body: domain.MultipleChoice{Options: []domain.Option{{ID: "o1", Content: "yes", IsCorrect: true}}}},
		},
		"quiz-2": {
			{ID: "q9", QuizID: "quiz-2", Content: "Proton charge?", Body: domain.Subjective{}},
		},
	}
}

func newTestQuiz(api *fakeQuizAPI, opts ...app.QuizOption) *app.QuizAttempts {
	repo := memory.NewQuestionRepository(testQuestions(), time.Minute)
	return app.NewQuizAttempts(api, repo, zerolog.Nop(), opts...)
}

func TestDuplicateResponseReturnsStoredRecord(t *testing.T) {
	ctx := context.Background()
	api := newFakeQuizAPI()
	quiz := newTestQuiz(api)

	if _, err := quiz.StartQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if got := len(quiz.Snapshot().Questions); got != 2 {
		t.Fatalf("expected 2 questions, got %d", got)
	}

	first, err := quiz.SubmitResponse(ctx, "q1", "42", 10*time.Second)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.TimeTaken != 10 {
		t.Fatalf("expected time_taken 10, got %d", first.TimeTaken)
	}
	second, err := quiz.SubmitResponse(ctx, "q1", "42", 5*time.Second)
	if err != nil {
		t.Fatalf("duplicate submit must not fail: %v", err)
	}
	if second != first {
		t.Fatalf("expected the stored response back, got %+v want %+v", second, first)
	}
	if len(api.writes) != 1 {
		t.Fatalf("expected a single write, got %d", len(api.writes))
	}
	if responses := quiz.Snapshot().Responses; len(responses) != 1 || responses["q1"] != first {
		t.Fatalf("unexpected responses %+v", responses)
	}
}

func TestServerConflictIsNotFatal(t *testing.T) {
	ctx := context.Background()
	api := newFakeQuizAPI()
	quiz := newTestQuiz(api)
	if _, err := quiz.StartQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	// Answered on the server through another client.
	api.answered["q2"] = true
	_, err := quiz.SubmitResponse(ctx, "q2", "o1", time.Second)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict sentinel, got %v", err)
	}
	if quiz.Snapshot().Error != "" {
		t.Fatalf("conflict must not set the error field")
	}
}

func TestSubmitFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	api := newFakeQuizAPI()
	quiz := newTestQuiz(api)
	if _, err := quiz.StartQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	api.submitErr = statusError(500)
	if _, err := quiz.SubmitResponse(ctx, "q1", "42", time.Second); err == nil {
		t.Fatalf("expected error")
	}
	s := quiz.Snapshot()
	if s.Error != "Failed to submit response" || len(s.Responses) != 0 || s.SubmittingResponse {
		t.Fatalf("unexpected state after failure: %+v", s)
	}
}

func TestSubmitWithoutAttempt(t *testing.T) {
	quiz := newTestQuiz(newFakeQuizAPI())
	if _, err := quiz.SubmitResponse(context.Background(), "q1", "42", 0); !errors.Is(err, domain.ErrNoActiveAttempt) {
		t.Fatalf("expected no active attempt, got %v", err)
	}
	if _, err := quiz.CompleteQuiz(context.Background()); !errors.Is(err, domain.ErrNoActiveAttempt) {
		t.Fatalf("expected no active attempt, got %v", err)
	}
}

func TestCompleteQuizReplacesAttemptAndArchives(t *testing.T) {
	ctx := context.Background()
	api := newFakeQuizAPI()
	var archived []domain.AttemptRecord
	quiz := newTestQuiz(api, app.WithRecorder(recorderFunc(func(_ context.Context, rec domain.AttemptRecord) error {
		archived = append(archived, rec)
		return nil
	})))
	if err := quiz.FetchQuizzes(ctx, "file-1"); err != nil {
		t.Fatalf("fetch quizzes: %v", err)
	}
	if _, err := quiz.StartQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	_, _ = quiz.SubmitResponse(ctx, "q2", "o1", time.Second)
	_, _ = quiz.SubmitResponse(ctx, "q1", "42", time.Second)

	completed, err := quiz.CompleteQuiz(ctx)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	s := quiz.Snapshot()
	if s.CurrentAttempt == nil || s.CurrentAttempt.Score == nil || *s.CurrentAttempt.Score != 50 || !s.CurrentAttempt.Completed() {
		t.Fatalf("expected server attempt with score, got %+v", s.CurrentAttempt)
	}
	if *completed.Score != 50 {
		t.Fatalf("unexpected returned score %v", *completed.Score)
	}

	if len(archived) != 1 {
		t.Fatalf("expected one archived attempt, got %d", len(archived))
	}
	rec := archived[0]
	if rec.QuizTitle != "Cells" || len(rec.Responses) != 2 || rec.Responses[0].QuestionID != "q1" {
		t.Fatalf("archive record not in question order: %+v", rec)
	}

	res := quiz.Results()
	if res.Total != 2 || res.Answered != 2 || res.Correct != 1 || res.Score == nil || *res.Score != 50 {
		t.Fatalf("unexpected results %+v", res)
	}
}

func TestCompleteQuizArchiveFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	quiz := newTestQuiz(newFakeQuizAPI(), app.WithRecorder(recorderFunc(func(context.Context, domain.AttemptRecord) error {
		return errors.New("db down")
	})))
	if _, err := quiz.StartQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("start quiz: %v", err)
	}
	if _, err := quiz.CompleteQuiz(ctx); err != nil {
		t.Fatalf("archive failure must not fail completion: %v", err)
	}
}

func TestStartQuizDiscardsPreviousAttempt(t *testing.T) {
	ctx := context.Background()
	api := newFakeQuizAPI()
	quiz := newTestQuiz(api)
	_ = quiz.FetchQuizzes(ctx, "")

	if _, err := quiz.StartQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("start quiz-1: %v", err)
	}
	_, _ = quiz.SubmitResponse(ctx, "q1", "42", time.Second)
	quiz.SetCurrentQuestionIndex(1)

	attempt, err := quiz.StartQuiz(ctx, "quiz-2")
	if err != nil {
		t.Fatalf("start quiz-2: %v", err)
	}
	s := quiz.Snapshot()
	if s.CurrentAttempt.ID != attempt.ID || s.CurrentQuiz.ID != "quiz-2" || s.CurrentQuiz.Title != "Atoms" {
		t.Fatalf("expected quiz-2 attempt, got quiz=%+v attempt=%+v", s.CurrentQuiz, s.CurrentAttempt)
	}
	if len(s.Responses) != 0 || s.CurrentQuestionIndex != 0 || len(s.Questions) != 1 {
		t.Fatalf("previous attempt leaked: %+v", s)
	}
}

func TestQuestionCursor(t *testing.T) {
	ctx := context.Background()
	quiz := newTestQuiz(newFakeQuizAPI())
	if _, err := quiz.StartQuiz(ctx, "quiz-1"); err != nil {
		t.Fatalf("start quiz: %v", err)
	}

	q, ok := quiz.CurrentQuestion()
	if !ok || q.ID != "q1" || q.Type() != domain.QuestionSubjective {
		t.Fatalf("expected subjective q1, got %+v", q)
	}
	if quiz.IsLastQuestion() {
		t.Fatalf("q1 is not last")
	}
	quiz.SetCurrentQuestionIndex(1)
	if !quiz.IsLastQuestion() {
		t.Fatalf("q2 is last")
	}
	quiz.SetCurrentQuestionIndex(5)
	if _, ok := quiz.CurrentQuestion(); ok {
		t.Fatalf("out of range cursor must not yield a question")
	}
}

func TestResetRestoresInitialState(t *testing.T) {
	ctx := context.Background()
	quiz := newTestQuiz(newFakeQuizAPI())
	_, _ = quiz.StartQuiz(ctx, "quiz-1")
	_, _ = quiz.SubmitResponse(ctx, "q1", "42", time.Second)

	quiz.Reset()
	s := quiz.Snapshot()
	if s.CurrentAttempt != nil || s.CurrentQuiz != nil || len(s.Questions) != 0 || len(s.Responses) != 0 || s.CurrentQuestionIndex != 0 {
		t.Fatalf("reset left state behind: %+v", s)
	}
}

func TestStartQuizUnknownQuestions(t *testing.T) {
	ctx := context.Background()
	quiz := newTestQuiz(newFakeQuizAPI())
	if _, err := quiz.StartQuiz(ctx, "quiz-404"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if quiz.Snapshot().Error != "Failed to fetch questions" {
		t.Fatalf("expected error text to be set")
	}
}
