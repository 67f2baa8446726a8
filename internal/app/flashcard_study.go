package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"learnlab-client/internal/domain"
	"learnlab-client/internal/validate"
)

// FlashcardAPI is the slice of the API the study engine needs.
type FlashcardAPI interface {
	ListDecks(ctx context.Context, fileID string) ([]domain.Deck, error)
	CreateDeck(ctx context.Context, deck domain.NewDeck) (domain.Deck, error)
	DeckCards(ctx context.Context, deckID string) ([]domain.Flashcard, error)
	DeckProgress(ctx context.Context, deckID string) (domain.DeckProgress, error)
	ReviewCard(ctx context.Context, cardID string, review domain.Review) (domain.ReviewResult, error)
}

// StudyPhase is the screen the study session is on.
type StudyPhase string

const (
	PhaseList     StudyPhase = "list"
	PhaseStudy    StudyPhase = "study"
	PhaseComplete StudyPhase = "complete"
)

// StudyState is a copy of the engine state for rendering.
type StudyState struct {
	Phase            StudyPhase
	Decks            []domain.Deck
	CurrentDeck      *domain.Deck
	Cards            []domain.Flashcard
	CurrentCardIndex int
	CurrentCard      *domain.Flashcard
	Progress         *domain.DeckProgress
	LastReview       *domain.ReviewResult
	Complete         bool
	Loading          bool
	Error            string
}

// FlashcardStudy runs the list → study → complete loop over a deck.
//
// The cursor stays within [0, len(cards)]. Reviewing the last card fetches
// the final deck progress before the session is marked complete, so a
// complete state always carries the progress snapshot taken after the last
// review (unless that fetch failed, in which case Error is set).
type FlashcardStudy struct {
	api FlashcardAPI
	log zerolog.Logger

	mu    sync.Mutex
	state StudyState
	// session is bumped whenever the card sequence is replaced or reset so
	// that responses for an abandoned session are dropped.
	session uint64
}

func NewFlashcardStudy(api FlashcardAPI, log zerolog.Logger) *FlashcardStudy {
	return &FlashcardStudy{
		api:   api,
		log:   log.With().Str("component", "flashcard_study").Logger(),
		state: StudyState{Phase: PhaseList},
	}
}

// Snapshot returns a copy of the current state.
func (f *FlashcardStudy) Snapshot() StudyState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	s.Decks = append([]domain.Deck(nil), f.state.Decks...)
	s.Cards = append([]domain.Flashcard(nil), f.state.Cards...)
	s.CurrentDeck = clonePtr(f.state.CurrentDeck)
	s.CurrentCard = clonePtr(f.state.CurrentCard)
	s.Progress = clonePtr(f.state.Progress)
	s.LastReview = clonePtr(f.state.LastReview)
	return s
}

// FetchDecks loads the decks of a file. On failure the previous list is kept.
func (f *FlashcardStudy) FetchDecks(ctx context.Context, fileID string) error {
	f.begin()
	decks, err := f.api.ListDecks(ctx, fileID)
	if err != nil {
		return f.fail("Failed to fetch decks", fmt.Errorf("fetch decks for file %s: %w", fileID, err))
	}
	f.mu.Lock()
	f.state.Decks = decks
	f.state.Loading = false
	f.mu.Unlock()
	f.log.Debug().Str("file_id", fileID).Int("decks", len(decks)).Msg("decks loaded")
	return nil
}

// CreateDeck creates a deck on a file and appends it to the list.
func (f *FlashcardStudy) CreateDeck(ctx context.Context, fileID, title, description string) (domain.Deck, error) {
	req := domain.NewDeck{Title: title, Description: description, FileID: fileID}
	if err := validate.Struct(req); err != nil {
		return domain.Deck{}, err
	}
	f.begin()
	deck, err := f.api.CreateDeck(ctx, req)
	if err != nil {
		return domain.Deck{}, f.fail("Failed to create deck", fmt.Errorf("create deck: %w", err))
	}
	f.mu.Lock()
	f.state.Decks = append(f.state.Decks, deck)
	f.state.Loading = false
	f.mu.Unlock()
	f.log.Info().Str("deck_id", deck.ID).Str("file_id", fileID).Msg("deck created")
	return deck, nil
}

// FetchDeckCards loads the card sequence of a deck and rewinds the cursor.
func (f *FlashcardStudy) FetchDeckCards(ctx context.Context, deckID string) error {
	f.begin()
	f.mu.Lock()
	if deck, ok := findDeck(f.state.Decks, deckID); ok {
		f.state.CurrentDeck = &deck
	}
	f.mu.Unlock()

	cards, err := f.api.DeckCards(ctx, deckID)
	if err != nil {
		return f.fail("Failed to fetch cards", fmt.Errorf("fetch cards for deck %s: %w", deckID, err))
	}
	f.mu.Lock()
	f.loadCardsLocked(cards)
	f.state.Loading = false
	f.mu.Unlock()
	return nil
}

// FetchDeckProgress replaces the stored progress snapshot.
func (f *FlashcardStudy) FetchDeckProgress(ctx context.Context, deckID string) error {
	f.begin()
	progress, err := f.api.DeckProgress(ctx, deckID)
	if err != nil {
		return f.fail("Failed to fetch deck progress", fmt.Errorf("fetch progress for deck %s: %w", deckID, err))
	}
	f.mu.Lock()
	f.state.Progress = &progress
	f.state.Loading = false
	f.mu.Unlock()
	return nil
}

// BeginStudy moves list → study. Cards and progress are fetched together and
// applied only if both succeed; otherwise the phase does not change.
func (f *FlashcardStudy) BeginStudy(ctx context.Context, deckID string) error {
	f.begin()

	var (
		cards    []domain.Flashcard
		progress domain.DeckProgress
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if cards, err = f.api.DeckCards(gctx, deckID); err != nil {
			return fmt.Errorf("fetch cards for deck %s: %w", deckID, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if progress, err = f.api.DeckProgress(gctx, deckID); err != nil {
			return fmt.Errorf("fetch progress for deck %s: %w", deckID, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return f.fail("Failed to load deck", err)
	}

	f.mu.Lock()
	if deck, ok := findDeck(f.state.Decks, deckID); ok {
		f.state.CurrentDeck = &deck
	} else if f.state.CurrentDeck == nil || f.state.CurrentDeck.ID != deckID {
		f.state.CurrentDeck = &domain.Deck{ID: deckID}
	}
	f.loadCardsLocked(cards)
	f.state.Progress = &progress
	f.state.Phase = PhaseStudy
	f.state.Loading = false
	f.mu.Unlock()

	f.log.Info().Str("deck_id", deckID).Int("cards", len(cards)).Msg("study session started")
	return nil
}

// StudyAgain moves complete → study for the same deck.
func (f *FlashcardStudy) StudyAgain(ctx context.Context) error {
	f.mu.Lock()
	deck := f.state.CurrentDeck
	f.mu.Unlock()
	if deck == nil {
		return fmt.Errorf("study again: %w", domain.ErrNoActiveCard)
	}
	return f.BeginStudy(ctx, deck.ID)
}

// SubmitCardReview rates the current card and advances the cursor. On failure
// the cursor is unchanged.
func (f *FlashcardStudy) SubmitCardReview(ctx context.Context, cardID string, quality int) error {
	review := domain.Review{Quality: quality}
	if err := validate.Struct(review); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidQuality, err)
	}

	f.mu.Lock()
	current := f.state.CurrentCard
	switch {
	case current == nil:
		f.mu.Unlock()
		return domain.ErrNoActiveCard
	case current.ID != cardID:
		f.mu.Unlock()
		return fmt.Errorf("%w: got %s, current is %s", domain.ErrCardMismatch, cardID, current.ID)
	}
	session := f.session
	deckID := current.DeckID
	if f.state.CurrentDeck != nil {
		deckID = f.state.CurrentDeck.ID
	}
	f.state.Loading = true
	f.state.Error = ""
	f.mu.Unlock()

	result, err := f.api.ReviewCard(ctx, cardID, review)
	if err != nil {
		return f.fail("Failed to submit review", fmt.Errorf("review card %s: %w", cardID, err))
	}

	f.mu.Lock()
	if f.session != session {
		f.state.Loading = false
		f.mu.Unlock()
		f.log.Debug().Str("card_id", cardID).Msg("review landed after the session was reset")
		return nil
	}
	f.state.LastReview = &result
	next := f.state.CurrentCardIndex + 1
	if next < len(f.state.Cards) {
		f.state.CurrentCardIndex = next
		f.state.CurrentCard = &f.state.Cards[next]
		f.state.Loading = false
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	// Last card: take the final progress snapshot before exposing completion.
	progress, progressErr := f.api.DeckProgress(ctx, deckID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session != session {
		f.state.Loading = false
		return nil
	}
	if progressErr != nil {
		f.state.Error = "Failed to fetch deck progress"
		f.log.Warn().Err(progressErr).Str("deck_id", deckID).Msg("final progress unavailable")
	} else {
		f.state.Progress = &progress
	}
	f.state.CurrentCard = nil
	f.state.Complete = true
	f.state.Phase = PhaseComplete
	f.state.Loading = false
	f.log.Info().Str("deck_id", deckID).Int("cards", len(f.state.Cards)).Msg("study session complete")
	return nil
}

// ResetStudySession returns to the pristine pre-session state: cursor 0, no
// current card, not complete, no cards, list phase.
func (f *FlashcardStudy) ResetStudySession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session++
	f.state.CurrentCardIndex = 0
	f.state.CurrentCard = nil
	f.state.Complete = false
	f.state.Cards = nil
	f.state.LastReview = nil
	f.state.Phase = PhaseList
}

// Exit leaves study or complete for the deck list.
func (f *FlashcardStudy) Exit() {
	f.ResetStudySession()
}

func (f *FlashcardStudy) loadCardsLocked(cards []domain.Flashcard) {
	f.session++
	f.state.Cards = cards
	f.state.CurrentCardIndex = 0
	f.state.CurrentCard = nil
	if len(cards) > 0 {
		f.state.CurrentCard = &f.state.Cards[0]
	}
	f.state.Complete = false
	f.state.LastReview = nil
}

func (f *FlashcardStudy) begin() {
	f.mu.Lock()
	f.state.Loading = true
	f.state.Error = ""
	f.mu.Unlock()
}

func (f *FlashcardStudy) fail(msg string, err error) error {
	f.mu.Lock()
	f.state.Error = msg
	f.state.Loading = false
	f.mu.Unlock()
	f.log.Warn().Err(err).Msg(msg)
	return err
}

func findDeck(decks []domain.Deck, deckID string) (domain.Deck, bool) {
	for _, deck := range decks {
		if deck.ID == deckID {
			return deck, true
		}
	}
	return domain.Deck{}, false
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
