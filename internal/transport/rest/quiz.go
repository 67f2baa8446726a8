package rest

import (
	"context"
	"net/http"
	"net/url"

	"learnlab-client/internal/domain"
)

// ListQuizzes returns the quizzes generated for a file, or all quizzes when fileID is empty.
func (c *Client) ListQuizzes(ctx context.Context, fileID string) ([]domain.Quiz, error) {
	var envelope struct {
		Quizzes []domain.Quiz `json:"quizzes"`
	}
	req := request{method: http.MethodGet, path: "/api/quiz"}
	if fileID != "" {
		req.query = url.Values{"file_id": {fileID}}
	}
	err := c.do(ctx, req, &envelope)
	return envelope.Quizzes, err
}

// Questions returns the ordered question sequence of a quiz.
func (c *Client) Questions(ctx context.Context, quizID string) ([]domain.Question, error) {
	var questions []domain.Question
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/quiz/questions/" + pathID(quizID)}, &questions)
	return questions, err
}

func (c *Client) CreateAttempt(ctx context.Context, quizID string) (domain.QuizAttempt, error) {
	var attempt domain.QuizAttempt
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/quiz/attempts",
		jsonBody: map[string]string{"quiz_id": quizID},
	}, &attempt)
	return attempt, err
}

func (c *Client) SubmitResponse(ctx context.Context, attemptID string, sub domain.ResponseSubmission) (domain.QuestionResponse, error) {
	var resp domain.QuestionResponse
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/quiz/attempts/" + pathID(attemptID) + "/responses",
		jsonBody: sub,
	}, &resp)
	return resp, err
}

// CompleteAttempt finalizes an attempt; the returned attempt carries the score.
func (c *Client) CompleteAttempt(ctx context.Context, attemptID string) (domain.QuizAttempt, error) {
	var attempt domain.QuizAttempt
	err := c.do(ctx, request{method: http.MethodPatch, path: "/api/quiz/attempts/" + pathID(attemptID)}, &attempt)
	return attempt, err
}
