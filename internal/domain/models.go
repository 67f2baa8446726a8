package domain

// User is the authenticated account returned by /auth/me.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

// Tokens is the credential pair issued by /auth/login.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
}

// Registration is the payload accepted by /auth/register.
type Registration struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
}

// FileInfo describes an uploaded study document.
type FileInfo struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	FileSize    int64     `json:"file_size"`
	MimeType    string    `json:"mime_type"`
	DownloadURL string    `json:"download_url"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// Deck groups flashcards generated from one file.
type Deck struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	FileID      string    `json:"file_id"`
	IsActive    bool      `json:"is_active"`
	FileName    string    `json:"file_name,omitempty"`
	CreatedAt   Timestamp `json:"created_at"`
	UpdatedAt   Timestamp `json:"updated_at"`
}

// NewDeck is the payload for creating a deck on a file.
type NewDeck struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	FileID      string `json:"file_id" validate:"required"`
}

// Flashcard is a single front/back card. PageNumber points back into the source file.
type Flashcard struct {
	ID           string    `json:"id"`
	DeckID       string    `json:"deck_id"`
	FrontContent string    `json:"front_content"`
	BackContent  string    `json:"back_content"`
	PageNumber   *int      `json:"page_number,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    Timestamp `json:"created_at"`
}

// Review is a recall rating for one card, 1 (forgot) to 5 (perfect).
type Review struct {
	Quality int `json:"quality" validate:"min=1,max=5"`
}

// ReviewResult carries the spaced-repetition schedule the server computed.
type ReviewResult struct {
	ID           string    `json:"id"`
	FlashcardID  string    `json:"flashcard_id"`
	EaseFactor   float64   `json:"ease_factor"`
	Interval     int       `json:"interval"`
	Repetitions  int       `json:"repetitions"`
	LastReviewed Timestamp `json:"last_reviewed"`
	NextReview   Timestamp `json:"next_review"`
}

// DeckProgress is the server-side aggregate for a deck.
type DeckProgress struct {
	TotalCards        int     `json:"total_cards"`
	MasteredCards     int     `json:"mastered_cards"`
	LearningCards     int     `json:"learning_cards"`
	MasteryPercentage float64 `json:"mastery_percentage"`
	PagesCovered      []int   `json:"pages_covered,omitempty"`
}

// Quiz is a quiz summary with its aggregate stats.
type Quiz struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	FileID         string     `json:"file_id"`
	FileName       string     `json:"file_name,omitempty"`
	IsActive       bool       `json:"is_active"`
	TotalQuestions int        `json:"total_questions"`
	TotalAttempts  int        `json:"total_attempts"`
	AverageScore   *float64   `json:"average_score,omitempty"`
	HighestScore   *float64   `json:"highest_score,omitempty"`
	LastAttempt    *Timestamp `json:"last_attempt,omitempty"`
}

// AttemptStatus is the lifecycle state of a quiz attempt.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// QuizAttempt is one run through a quiz. Score is a percentage set by the server on completion.
type QuizAttempt struct {
	ID        string        `json:"id"`
	QuizID    string        `json:"quiz_id"`
	UserID    string        `json:"user_id,omitempty"`
	StartTime Timestamp     `json:"start_time"`
	EndTime   *Timestamp    `json:"end_time,omitempty"`
	Score     *float64      `json:"score,omitempty"`
	Status    AttemptStatus `json:"status"`
}

// Completed reports whether the server has finalized the attempt.
func (a QuizAttempt) Completed() bool {
	return a.Status == AttemptCompleted
}

// ResponseSubmission is the payload for answering one question.
type ResponseSubmission struct {
	QuestionID string `json:"question_id" validate:"required"`
	Response   string `json:"response" validate:"required"`
	TimeTaken  int    `json:"time_taken" validate:"min=0"`
}

// QuestionResponse is the server's record of an answer within an attempt.
type QuestionResponse struct {
	ID              string    `json:"id"`
	AttemptID       string    `json:"attempt_id"`
	QuestionID      string    `json:"question_id"`
	Response        string    `json:"response"`
	IsCorrect       bool      `json:"is_correct"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"`
	TimeTaken       int       `json:"time_taken"`
	CreatedAt       Timestamp `json:"created_at"`
}

// Podcast is an AI-generated audio summary of a file.
type Podcast struct {
	ID               string    `json:"id"`
	FileID           string    `json:"file_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Duration         float64   `json:"duration"`
	TranscriptStatus string    `json:"transcript_status"`
	TotalPlays       int       `json:"total_plays"`
	AudioURL         string    `json:"audio_url,omitempty"`
	TranscriptURL    string    `json:"transcript_txt_url,omitempty"`
	CurrentProgress  float64   `json:"current_progress"`
	CurrentSpeed     float64   `json:"current_speed"`
	CreatedAt        Timestamp `json:"created_at"`
}

// PodcastProgress is the listener's playback position.
type PodcastProgress struct {
	PodcastID            string     `json:"podcast_id"`
	CurrentPosition      float64    `json:"current_position"`
	PlaybackSpeed        float64    `json:"playback_speed"`
	CompletedSegments    []int      `json:"completed_segments"`
	CompletionPercentage float64    `json:"completion_percentage"`
	LastPlayedAt         *Timestamp `json:"last_played_at,omitempty"`
}

// AttemptRecord is a completed attempt with its responses, as archived locally.
type AttemptRecord struct {
	Attempt   QuizAttempt
	QuizTitle string
	Responses []QuestionResponse
}
