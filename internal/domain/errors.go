package domain

import "errors"

var (
	// ErrUnauthorized is returned when the API rejects the session (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoToken is returned when an authenticated call is made without a stored access token.
	ErrNoToken = errors.New("no access token found")
	// ErrNotFound indicates the requested resource does not exist (HTTP 404).
	ErrNotFound = errors.New("resource not found")
	// ErrConflict indicates the server already holds the submitted state (HTTP 409).
	ErrConflict = errors.New("conflict")
	// ErrNoActiveAttempt is returned when a quiz action needs an attempt that was never started.
	ErrNoActiveAttempt = errors.New("no active attempt")
	// ErrNoActiveCard is returned when a review is submitted outside a study session.
	ErrNoActiveCard = errors.New("no card under study")
	// ErrCardMismatch is returned when a review targets a card other than the current one.
	ErrCardMismatch = errors.New("review does not match the current card")
	// ErrInvalidQuality indicates a review rating outside 1..5.
	ErrInvalidQuality = errors.New("quality must be between 1 and 5")
	// ErrUnknownQuestionType is returned when decoding a question with an unsupported question_type.
	ErrUnknownQuestionType = errors.New("unknown question type")
)
