package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"learnlab-client/internal/domain"
)

func TestWriteDeck(t *testing.T) {
	page := 3
	cards := []domain.Flashcard{
		{ID: "A", FrontContent: "What is ATP?", BackContent: "Energy currency", PageNumber: &page},
		{ID: "B", FrontContent: "What is DNA?", BackContent: "Genetic material"},
	}
	progress := domain.DeckProgress{TotalCards: 2, MasteredCards: 1, MasteryPercentage: 50}

	var buf bytes.Buffer
	if err := WriteDeck(&buf, domain.Deck{Title: "Biology"}, cards, progress); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(cardsSheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 cards, got %d rows", len(rows))
	}
	if rows[1][0] != "What is ATP?" || rows[1][2] != "3" {
		t.Fatalf("unexpected first card row %v", rows[1])
	}
	if len(rows[2]) > 2 && rows[2][2] != "" {
		t.Fatalf("card without page should leave the cell empty, got %v", rows[2])
	}

	mastery, err := f.GetCellValue(progressSheet, "B5")
	if err != nil || mastery != "50" {
		t.Fatalf("expected mastery 50, got %q (%v)", mastery, err)
	}
	deckTitle, _ := f.GetCellValue(progressSheet, "B1")
	if deckTitle != "Biology" {
		t.Fatalf("unexpected deck title %q", deckTitle)
	}
}
