package rest

import (
	"context"
	"net/http"

	"learnlab-client/internal/domain"
)

func (c *Client) ListDecks(ctx context.Context, fileID string) ([]domain.Deck, error) {
	var decks []domain.Deck
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/flashcards/decks/" + pathID(fileID)}, &decks)
	return decks, err
}

func (c *Client) CreateDeck(ctx context.Context, deck domain.NewDeck) (domain.Deck, error) {
	var created domain.Deck
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/flashcards/decks/" + pathID(deck.FileID),
		jsonBody: deck,
	}, &created)
	return created, err
}

func (c *Client) DeckCards(ctx context.Context, deckID string) ([]domain.Flashcard, error) {
	var cards []domain.Flashcard
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/flashcards/decks/" + pathID(deckID) + "/cards"}, &cards)
	return cards, err
}

func (c *Client) DeckProgress(ctx context.Context, deckID string) (domain.DeckProgress, error) {
	var progress domain.DeckProgress
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/flashcards/decks/" + pathID(deckID) + "/progress"}, &progress)
	return progress, err
}

func (c *Client) ReviewCard(ctx context.Context, cardID string, review domain.Review) (domain.ReviewResult, error) {
	var result domain.ReviewResult
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/flashcards/cards/" + pathID(cardID) + "/review",
		jsonBody: review,
	}, &result)
	return result, err
}
