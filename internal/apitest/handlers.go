package apitest

import (
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"learnlab-client/internal/domain"
)

// SeedUser creates an account. Passwords are kept as bcrypt hashes at the
// minimum cost.
func (s *Server) SeedUser(username, email, password, fullName string) domain.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	user := domain.User{ID: uuid.NewString(), Email: email, Username: username, FullName: fullName}
	s.mu.Lock()
	s.accounts[user.ID] = &account{user: user, passwordHash: hash}
	s.mu.Unlock()
	return user
}

// SeedFile adds an uploaded file.
func (s *Server) SeedFile(filename string) domain.FileInfo {
	file := domain.FileInfo{ID: uuid.NewString(), Filename: filename, MimeType: "application/pdf", CreatedAt: now(), UpdatedAt: now()}
	s.mu.Lock()
	s.files[file.ID] = file
	s.fileOrder = append(s.fileOrder, file.ID)
	s.mu.Unlock()
	return file
}

// SeedDeck adds a deck with one card per front text.
func (s *Server) SeedDeck(fileID, title string, fronts ...string) (domain.Deck, []domain.Flashcard) {
	deck := domain.Deck{ID: uuid.NewString(), Title: title, FileID: fileID, IsActive: true, CreatedAt: now(), UpdatedAt: now()}
	cards := make([]domain.Flashcard, 0, len(fronts))
	for i, front := range fronts {
		page := i + 1
		cards = append(cards, domain.Flashcard{
			ID:           uuid.NewString(),
			DeckID:       deck.ID,
			FrontContent: front,
			BackContent:  "answer: " + front,
			PageNumber:   &page,
			IsActive:     true,
			CreatedAt:    now(),
		})
	}
	s.mu.Lock()
	s.decks[deck.ID] = deck
	s.cards[deck.ID] = cards
	s.mu.Unlock()
	return deck, cards
}

// SeedQuiz adds a quiz with the given questions, which get fresh IDs when empty.
func (s *Server) SeedQuiz(fileID, title string, questions ...domain.Question) (domain.Quiz, []domain.Question) {
	quiz := domain.Quiz{ID: uuid.NewString(), Title: title, FileID: fileID, IsActive: true, TotalQuestions: len(questions)}
	for i := range questions {
		if questions[i].ID == "" {
			questions[i].ID = uuid.NewString()
		}
		questions[i].QuizID = quiz.ID
		questions[i].IsActive = true
	}
	s.mu.Lock()
	s.quizzes[quiz.ID] = quiz
	s.questions[quiz.ID] = questions
	s.mu.Unlock()
	return quiz, questions
}

// SeedPodcast adds a podcast of duration seconds.
func (s *Server) SeedPodcast(fileID, title string, duration float64) domain.Podcast {
	p := domain.Podcast{ID: uuid.NewString(), FileID: fileID, Title: title, Duration: duration, TranscriptStatus: "completed", CurrentSpeed: 1, CreatedAt: now()}
	s.mu.Lock()
	s.podcasts[p.ID] = p
	s.mu.Unlock()
	return p
}

// Responses returns how many responses the server stored for an attempt.
func (s *Server) Responses(attemptID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.attempts[attemptID]; ok {
		return len(a.responses)
	}
	return 0
}

func (s *Server) login(c *gin.Context) {
	username, password := c.PostForm("username"), c.PostForm("password")
	s.mu.Lock()
	var found *account
	for _, acc := range s.accounts {
		if acc.user.Username == username || acc.user.Email == username {
			found = acc
			break
		}
	}
	ttl := s.tokenTTL
	s.mu.Unlock()
	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(password)) != nil {
		detail(c, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	refresh := uuid.NewString()
	s.mu.Lock()
	s.refresh[refresh] = found.user.ID
	s.mu.Unlock()
	c.JSON(http.StatusOK, domain.Tokens{
		AccessToken:  s.IssueToken(found.user.ID, ttl),
		RefreshToken: refresh,
		TokenType:    "bearer",
	})
}

func (s *Server) register(c *gin.Context) {
	var reg domain.Registration
	if err := c.ShouldBindJSON(&reg); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	for _, acc := range s.accounts {
		switch {
		case acc.user.Email == reg.Email:
			s.mu.Unlock()
			detail(c, http.StatusBadRequest, "Email already registered")
			return
		case acc.user.Username == reg.Username:
			s.mu.Unlock()
			detail(c, http.StatusBadRequest, "Username already taken")
			return
		}
	}
	s.mu.Unlock()
	user := s.SeedUser(reg.Username, reg.Email, reg.Password, reg.FullName)
	c.JSON(http.StatusOK, user)
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	acc := s.accounts[s.userID(c)]
	s.mu.Unlock()
	c.JSON(http.StatusOK, acc.user)
}

func (s *Server) logout(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	delete(s.refresh, body.RefreshToken)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}

func (s *Server) listFiles(c *gin.Context) {
	s.mu.Lock()
	out := make([]domain.FileInfo, 0, len(s.fileOrder))
	for _, id := range s.fileOrder {
		if f, ok := s.files[id]; ok {
			out = append(out, f)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) getFile(c *gin.Context) {
	s.mu.Lock()
	f, ok := s.files[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		detail(c, http.StatusNotFound, "File not found")
		return
	}
	c.JSON(http.StatusOK, f)
}

func (s *Server) deleteFile(c *gin.Context) {
	s.mu.Lock()
	_, ok := s.files[c.Param("id")]
	delete(s.files, c.Param("id"))
	s.mu.Unlock()
	if !ok {
		detail(c, http.StatusNotFound, "File not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted"})
}

func (s *Server) uploadFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, "file is required")
		return
	}
	src, err := header.Open()
	if err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	defer src.Close()
	size, _ := io.Copy(io.Discard, src)

	file := s.SeedFile(header.Filename)
	file.FileSize = size
	file.MimeType = header.Header.Get("Content-Type")
	s.mu.Lock()
	s.files[file.ID] = file
	s.mu.Unlock()
	c.JSON(http.StatusOK, file)
}

func (s *Server) listDecks(c *gin.Context) {
	fileID := c.Param("id")
	s.mu.Lock()
	out := []domain.Deck{}
	for _, d := range s.decks {
		if d.FileID == fileID {
			out = append(out, d)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) createDeck(c *gin.Context) {
	var req domain.NewDeck
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	_, ok := s.files[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		detail(c, http.StatusNotFound, "File not found")
		return
	}
	deck, _ := s.SeedDeck(c.Param("id"), req.Title)
	deck.Description = req.Description
	s.mu.Lock()
	s.decks[deck.ID] = deck
	s.mu.Unlock()
	c.JSON(http.StatusOK, deck)
}

func (s *Server) deckCards(c *gin.Context) {
	s.mu.Lock()
	cards, ok := s.cards[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		detail(c, http.StatusNotFound, "Deck not found")
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (s *Server) deckProgress(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cards, ok := s.cards[c.Param("id")]
	if !ok {
		detail(c, http.StatusNotFound, "Deck not found")
		return
	}
	progress := domain.DeckProgress{TotalCards: len(cards)}
	for _, card := range cards {
		st, reviewed := s.reviews[card.ID]
		switch {
		case !reviewed:
		case st.quality >= 4:
			progress.MasteredCards++
			if card.PageNumber != nil {
				progress.PagesCovered = append(progress.PagesCovered, *card.PageNumber)
			}
		default:
			progress.LearningCards++
		}
	}
	if progress.TotalCards > 0 {
		progress.MasteryPercentage = float64(progress.MasteredCards) / float64(progress.TotalCards) * 100
	}
	c.JSON(http.StatusOK, progress)
}

// reviewCard applies SM-2 to the card's previous schedule.
func (s *Server) reviewCard(c *gin.Context) {
	var review domain.Review
	if err := c.ShouldBindJSON(&review); err != nil || review.Quality < 1 || review.Quality > 5 {
		detail(c, http.StatusUnprocessableEntity, "quality must be between 1 and 5")
		return
	}
	cardID := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cardExistsLocked(cardID) {
		detail(c, http.StatusNotFound, "Card not found")
		return
	}
	prev, ok := s.reviews[cardID]
	res := prev.result
	if !ok {
		res = domain.ReviewResult{ID: uuid.NewString(), FlashcardID: cardID, EaseFactor: 2.5}
	}
	q := float64(review.Quality)
	res.EaseFactor = math.Max(1.3, res.EaseFactor+(0.1-(5-q)*(0.08+(5-q)*0.02)))
	if review.Quality < 3 {
		res.Repetitions = 0
		res.Interval = 1
	} else {
		res.Repetitions++
		switch res.Repetitions {
		case 1:
			res.Interval = 1
		case 2:
			res.Interval = 6
		default:
			res.Interval = int(math.Round(float64(res.Interval) * res.EaseFactor))
		}
	}
	res.LastReviewed = now()
	res.NextReview = domain.NewTimestamp(res.LastReviewed.AddDate(0, 0, res.Interval))
	s.reviews[cardID] = cardState{result: res, quality: review.Quality}
	c.JSON(http.StatusOK, res)
}

func (s *Server) cardExistsLocked(cardID string) bool {
	for _, cards := range s.cards {
		for _, card := range cards {
			if card.ID == cardID {
				return true
			}
		}
	}
	return false
}

func (s *Server) listQuizzes(c *gin.Context) {
	fileID := c.Query("file_id")
	s.mu.Lock()
	out := []domain.Quiz{}
	for _, q := range s.quizzes {
		if fileID == "" || q.FileID == fileID {
			out = append(out, q)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"quizzes": out, "total": len(out)})
}

func (s *Server) quizQuestions(c *gin.Context) {
	s.mu.Lock()
	questions, ok := s.questions[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		detail(c, http.StatusNotFound, "Quiz not found")
		return
	}
	c.JSON(http.StatusOK, questions)
}

// createAttempt resumes the caller's unfinished attempt for the quiz, if any.
func (s *Server) createAttempt(c *gin.Context) {
	var body struct {
		QuizID string `json:"quiz_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	userID := s.userID(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[body.QuizID]; !ok {
		detail(c, http.StatusNotFound, "Quiz not found")
		return
	}
	for _, a := range s.attempts {
		if a.UserID == userID && a.QuizID == body.QuizID && a.Status == domain.AttemptInProgress {
			c.JSON(http.StatusOK, a.QuizAttempt)
			return
		}
	}
	a := &attempt{
		QuizAttempt: domain.QuizAttempt{
			ID:        uuid.NewString(),
			QuizID:    body.QuizID,
			UserID:    userID,
			StartTime: now(),
			Status:    domain.AttemptInProgress,
		},
		responses: map[string]domain.QuestionResponse{},
	}
	s.attempts[a.ID] = a
	c.JSON(http.StatusOK, a.QuizAttempt)
}

func (s *Server) submitResponse(c *gin.Context) {
	var sub domain.ResponseSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[c.Param("id")]
	if !ok {
		detail(c, http.StatusNotFound, "Attempt not found")
		return
	}
	if _, dup := a.responses[sub.QuestionID]; dup {
		detail(c, http.StatusBadRequest, "Response already submitted")
		return
	}
	question, ok := findQuestion(s.questions[a.QuizID], sub.QuestionID)
	if !ok {
		detail(c, http.StatusNotFound, "Question not found")
		return
	}
	resp := domain.QuestionResponse{
		ID:         uuid.NewString(),
		AttemptID:  a.ID,
		QuestionID: sub.QuestionID,
		Response:   sub.Response,
		IsCorrect:  grade(question, sub.Response),
		TimeTaken:  sub.TimeTaken,
		CreatedAt:  now(),
	}
	a.responses[sub.QuestionID] = resp
	c.JSON(http.StatusOK, resp)
}

func (s *Server) completeAttempt(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[c.Param("id")]
	if !ok {
		detail(c, http.StatusNotFound, "Attempt not found")
		return
	}
	if a.Status == domain.AttemptCompleted {
		c.JSON(http.StatusOK, a.QuizAttempt)
		return
	}
	total := len(s.questions[a.QuizID])
	if total == 0 {
		detail(c, http.StatusBadRequest, "Quiz has no active questions")
		return
	}
	correct := 0
	for _, r := range a.responses {
		if r.IsCorrect {
			correct++
		}
	}
	score := float64(correct) / float64(total) * 100
	end := now()
	a.Score = &score
	a.EndTime = &end
	a.Status = domain.AttemptCompleted
	c.JSON(http.StatusOK, a.QuizAttempt)
}

func (s *Server) listPodcasts(c *gin.Context) {
	fileID := c.Query("file_id")
	s.mu.Lock()
	out := []domain.Podcast{}
	for _, p := range s.podcasts {
		if fileID == "" || p.FileID == fileID {
			out = append(out, p)
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) getPodcast(c *gin.Context) {
	s.mu.Lock()
	p, ok := s.podcasts[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		detail(c, http.StatusNotFound, "Podcast not found")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) updatePlayback(c *gin.Context) {
	position, err1 := strconv.ParseFloat(c.Query("position"), 64)
	speed, err2 := strconv.ParseFloat(c.Query("speed"), 64)
	if err1 != nil || err2 != nil {
		detail(c, http.StatusUnprocessableEntity, "position and speed are required")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.podcasts[c.Param("id")]
	if !ok {
		detail(c, http.StatusNotFound, "Podcast not found")
		return
	}
	last := now()
	prog := domain.PodcastProgress{
		PodcastID:       p.ID,
		CurrentPosition: position,
		PlaybackSpeed:   speed,
		LastPlayedAt:    &last,
	}
	if p.Duration > 0 {
		prog.CompletionPercentage = math.Min(100, position/p.Duration*100)
	}
	p.CurrentProgress = position
	p.CurrentSpeed = speed
	s.podcasts[p.ID] = p
	s.playback[p.ID] = prog
	c.JSON(http.StatusOK, prog)
}

func findQuestion(questions []domain.Question, id string) (domain.Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return domain.Question{}, false
}

// grade accepts the id of any correct option, or the reference answer
// ignoring case and surrounding space.
func grade(q domain.Question, response string) bool {
	return domain.MatchQuestion(q,
		func(mc domain.MultipleChoice) bool {
			for _, opt := range mc.Correct() {
				if opt.ID == response {
					return true
				}
			}
			return false
		},
		func(subj domain.Subjective) bool {
			return strings.EqualFold(strings.TrimSpace(subj.Answer.Answer), strings.TrimSpace(response))
		},
	)
}
