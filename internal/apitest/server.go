// Package apitest runs an in-process fake of the learning API for tests.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"learnlab-client/internal/domain"
)

const claimsKey = "user_id"

type account struct {
	user         domain.User
	passwordHash []byte
}

type attempt struct {
	domain.QuizAttempt
	responses map[string]domain.QuestionResponse
}

type cardState struct {
	result  domain.ReviewResult
	quality int
}

// Server is a fake learning API. Seed it, point a client at URL, and assert
// on its counters.
type Server struct {
	*httptest.Server

	secret []byte

	mu        sync.Mutex
	tokenTTL  time.Duration
	accounts  map[string]*account
	refresh   map[string]string
	files     map[string]domain.FileInfo
	fileOrder []string
	decks     map[string]domain.Deck
	cards     map[string][]domain.Flashcard
	reviews   map[string]cardState
	quizzes   map[string]domain.Quiz
	questions map[string][]domain.Question
	attempts  map[string]*attempt
	podcasts  map[string]domain.Podcast
	playback  map[string]domain.PodcastProgress
	faults    map[string][]int
	hits      map[string]int

	upgrader websocket.Upgrader
	conns    map[*websocket.Conn]string
	connMu   map[*websocket.Conn]*sync.Mutex
	pings    int
	wsReject bool
}

// New starts a fake API and closes it when t ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{
		secret:    []byte("apitest-" + uuid.NewString()),
		tokenTTL:  time.Hour,
		accounts:  map[string]*account{},
		refresh:   map[string]string{},
		files:     map[string]domain.FileInfo{},
		decks:     map[string]domain.Deck{},
		cards:     map[string][]domain.Flashcard{},
		reviews:   map[string]cardState{},
		quizzes:   map[string]domain.Quiz{},
		questions: map[string][]domain.Question{},
		attempts:  map[string]*attempt{},
		podcasts:  map[string]domain.Podcast{},
		playback:  map[string]domain.PodcastProgress{},
		faults:    map[string][]int{},
		hits:      map[string]int{},
		conns:     map[*websocket.Conn]string{},
		connMu:    map[*websocket.Conn]*sync.Mutex{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.track)

	r.POST("/auth/login", s.login)
	r.POST("/auth/register", s.register)
	r.GET("/ws", s.serveWS)

	authed := r.Group("/", s.requireToken)
	authed.GET("/auth/me", s.me)
	authed.POST("/auth/logout", s.logout)

	authed.GET("/api/files/files", s.listFiles)
	authed.GET("/api/files/files/:id", s.getFile)
	authed.DELETE("/api/files/files/:id", s.deleteFile)
	authed.POST("/api/files/upload", s.uploadFile)

	authed.GET("/api/flashcards/decks/:id", s.listDecks)
	authed.POST("/api/flashcards/decks/:id", s.createDeck)
	authed.GET("/api/flashcards/decks/:id/cards", s.deckCards)
	authed.GET("/api/flashcards/decks/:id/progress", s.deckProgress)
	authed.POST("/api/flashcards/cards/:id/review", s.reviewCard)

	authed.GET("/api/quiz", s.listQuizzes)
	authed.GET("/api/quiz/questions/:id", s.quizQuestions)
	authed.POST("/api/quiz/attempts", s.createAttempt)
	authed.POST("/api/quiz/attempts/:id/responses", s.submitResponse)
	authed.PATCH("/api/quiz/attempts/:id", s.completeAttempt)

	authed.GET("/api/podcasts", s.listPodcasts)
	authed.GET("/api/podcasts/:id", s.getPodcast)
	authed.PATCH("/api/podcasts/:id/progress", s.updatePlayback)
	return r
}

// track counts requests per route and serves injected faults.
func (s *Server) track(c *gin.Context) {
	key := c.Request.Method + " " + c.FullPath()
	s.mu.Lock()
	s.hits[key]++
	var status int
	if queue := s.faults[key]; len(queue) > 0 {
		status = queue[0]
		s.faults[key] = queue[1:]
	}
	s.mu.Unlock()
	if status != 0 {
		c.AbortWithStatusJSON(status, gin.H{"detail": fmt.Sprintf("injected %d", status)})
		return
	}
	c.Next()
}

func (s *Server) requireToken(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
		return
	}
	userID, err := s.verify(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}
	c.Set(claimsKey, userID)
	c.Next()
}

func (s *Server) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token without subject")
	}
	s.mu.Lock()
	_, known := s.accounts[sub]
	s.mu.Unlock()
	if !known {
		return "", fmt.Errorf("unknown user %s", sub)
	}
	return sub, nil
}

// IssueToken signs an access token for userID that expires after ttl
// (negative ttl yields an already expired token).
func (s *Server) IssueToken(userID string, ttl time.Duration) string {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// SetTokenTTL changes the lifetime of tokens issued by /auth/login.
func (s *Server) SetTokenTTL(ttl time.Duration) {
	s.mu.Lock()
	s.tokenTTL = ttl
	s.mu.Unlock()
}

// Fail makes the next request to route (e.g. "GET /api/flashcards/decks/:id/progress")
// answer with status. Calls queue up.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	s.faults[route] = append(s.faults[route], status)
	s.mu.Unlock()
}

// Hits returns how many requests reached route.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) userID(c *gin.Context) string {
	return c.GetString(claimsKey)
}

func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

func now() domain.Timestamp {
	return domain.NewTimestamp(time.Now().UTC().Truncate(time.Microsecond))
}
