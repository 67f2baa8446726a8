package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"learnlab-client/internal/domain"
)

// QuestionLoader fetches the question sequence of a quiz from the API.
type QuestionLoader interface {
	Questions(ctx context.Context, quizID string) ([]domain.Question, error)
}

// QuestionRepository caches question sequences in Redis so that several
// clients on one host share a warm cache. Sequences are stored as JSON:
//
//	SET quiz:{quizID}:questions [...] EX ttl
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	log    zerolog.Logger
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration, log zerolog.Logger) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    log.With().Str("component", "question_cache").Logger(),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	if questions, ok := r.cached(ctx, quizID); ok {
		return questions, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := r.cached(ctx, quizID); ok {
			return questions, nil
		}

		questions, err := r.loader.Questions(ctx, quizID)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(questions)
		if err != nil {
			return nil, err
		}
		if err := r.client.Set(ctx, r.key(quizID), data, r.ttlWithJitter()).Err(); err != nil {
			// The API answer is still good; a cold cache only costs a refetch.
			r.log.Warn().Err(err).Str("quiz_id", quizID).Msg("cache write failed")
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing one flight get their own slice.
	return copyQuestions(result.([]domain.Question)), nil
}

// Invalidate drops the cached sequence of a quiz.
func (r *QuestionRepository) Invalidate(ctx context.Context, quizID string) error {
	return r.client.Del(ctx, r.key(quizID)).Err()
}

func (r *QuestionRepository) cached(ctx context.Context, quizID string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, r.key(quizID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Str("quiz_id", quizID).Msg("cache read failed")
		}
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		r.log.Warn().Err(err).Str("quiz_id", quizID).Msg("discarding undecodable cache entry")
		return nil, false
	}
	return questions, true
}

func (r *QuestionRepository) key(quizID string) string {
	return "quiz:" + quizID + ":questions"
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

func copyQuestions(in []domain.Question) []domain.Question {
	out := make([]domain.Question, len(in))
	copy(out, in)
	return out
}
