// Package export writes study material to spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"learnlab-client/internal/domain"
)

const (
	cardsSheet    = "Cards"
	progressSheet = "Progress"
)

// WriteDeck writes a workbook with the deck's cards and its progress to w.
func WriteDeck(w io.Writer, deck domain.Deck, cards []domain.Flashcard, progress domain.DeckProgress) error {
	f, err := deckWorkbook(deck, cards, progress)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveDeck is WriteDeck to a file path.
func SaveDeck(path string, deck domain.Deck, cards []domain.Flashcard, progress domain.DeckProgress) error {
	f, err := deckWorkbook(deck, cards, progress)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

func deckWorkbook(deck domain.Deck, cards []domain.Flashcard, progress domain.DeckProgress) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", cardsSheet); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(cardsSheet, "A1", &[]interface{}{"Front", "Back", "Page"}); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(cardsSheet, "A1", "C1", bold); err != nil {
		return nil, err
	}
	for i, card := range cards {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		var page interface{}
		if card.PageNumber != nil {
			page = *card.PageNumber
		}
		if err := f.SetSheetRow(cardsSheet, cell, &[]interface{}{card.FrontContent, card.BackContent, page}); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(cardsSheet, "A", "B", 48); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(progressSheet); err != nil {
		return nil, err
	}
	rows := [][]interface{}{
		{"Deck", deck.Title},
		{"Total cards", progress.TotalCards},
		{"Mastered", progress.MasteredCards},
		{"Learning", progress.LearningCards},
		{"Mastery %", progress.MasteryPercentage},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(progressSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellStyle(progressSheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return nil, err
	}
	return f, nil
}
