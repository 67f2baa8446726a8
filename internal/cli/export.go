package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"learnlab-client/internal/export"
)

func newExportCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export study material to spreadsheets",
	}

	var out, fileID string
	deck := &cobra.Command{
		Use:   "deck <deck-id>",
		Short: "Write a deck's cards and progress to an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
			study, err := flashcards(ctx, rt)
			if err != nil {
				return err
			}
			if fileID != "" {
				if err := study.FetchDecks(ctx, fileID); err != nil {
					return failure(study.Snapshot().Error, err)
				}
			}
			if err := study.BeginStudy(ctx, args[0]); err != nil {
				return failure(study.Snapshot().Error, err)
			}
			s := study.Snapshot()
			study.Exit()

			path := out
			if path == "" {
				path = fmt.Sprintf("deck-%s.xlsx", args[0])
			}
			if err := export.SaveDeck(path, *s.CurrentDeck, s.Cards, *s.Progress); err != nil {
				return err
			}
			rt.printf("Wrote %d cards to %s\n", len(s.Cards), path)
			return nil
		}),
	}
	deck.Flags().StringVarP(&out, "out", "o", "", "output path (default deck-<id>.xlsx)")
	deck.Flags().StringVar(&fileID, "file", "", "file the deck belongs to, used for the deck title")

	cmd.AddCommand(deck)
	return cmd
}
