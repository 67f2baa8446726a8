package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"learnlab-client/internal/domain"
)

func TestQuestionRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{questions: sampleQuestions()}
	repo := NewQuestionRepository(client, loader, time.Minute, zerolog.Nop())

	questions, err := repo.GetQuestions(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("quiz:quiz-1:questions") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:quiz-1:questions"); ttl < time.Minute || ttl > 66*time.Second {
		t.Fatalf("expected ttl with at most 10%% jitter, got %v", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetQuestions(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get cached: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if len(cached) != len(questions) || cached[1].Type() != domain.QuestionSubjective {
		t.Fatalf("expected variants to survive the cache, got %+v", cached)
	}

	if err := repo.Invalidate(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("quiz:quiz-1:questions") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestQuestionRepositoryIgnoresCorruptEntries(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	_ = mr.Set("quiz:quiz-1:questions", "not json")
	loader := &countingLoader{questions: sampleQuestions()}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute, zerolog.Nop())

	if _, err := repo.GetQuestions(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get questions: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected corrupt entry to fall through to loader, calls=%d", loader.calls)
	}
}

func TestQuestionRepositoryReturnsOwnedSlices(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{questions: sampleQuestions()}
	repo := NewQuestionRepository(newClient(mr), loader, time.Minute, zerolog.Nop())

	questions, err := repo.GetQuestions(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get questions: %v", err)
	}
	questions[0].Content = "changed by caller"
	if loader.questions[0].Content != "What is 2 + 2?" {
		t.Fatalf("caller mutated the loaded sequence: %q", loader.questions[0].Content)
	}
}

type countingLoader struct {
	questions []domain.Question
	calls     int
}

func (l *countingLoader) Questions(_ context.Context, _ string) ([]domain.Question, error) {
	l.calls++
	return l.questions, nil
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:      "q1",
			QuizID:  "quiz-1",
			Content: "What is 2 + 2?",
			Body: domain.MultipleChoice{Options: []domain.Option{
				{ID: "o1", Content: "3"},
				{ID: "o2", Content: "4", IsCorrect: true},
			}},
		},
		{
			ID:      "q2",
			QuizID:  "quiz-1",
			Content: "Capital of France?",
			Body:    domain.Subjective{Answer: domain.SubjectiveAnswer{Answer: "Paris"}},
		},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
