package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"learnlab-client/internal/app"
	"learnlab-client/internal/domain"
)

func newDecksCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decks",
		Short: "Browse and create flashcard decks",
	}

	list := &cobra.Command{
		Use:   "list <file-id>",
		Short: "List the decks of a file",
		Args:  cobra.ExactArgs(1),
		RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
			study, err := flashcards(ctx, rt)
			if err != nil {
				return err
			}
			if err := study.FetchDecks(ctx, args[0]); err != nil {
				return failure(study.Snapshot().Error, err)
			}
			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tACTIVE\tCREATED")
			for _, d := range study.Snapshot().Decks {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", d.ID, d.Title, d.IsActive, d.CreatedAt.Format("2006-01-02"))
			}
			return tw.Flush()
		}),
	}

	var title, description string
	create := &cobra.Command{
		Use:   "create <file-id>",
		Short: "Create a deck on a file",
		Args:  cobra.ExactArgs(1),
		RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
			study, err := flashcards(ctx, rt)
			if err != nil {
				return err
			}
			deck, err := study.CreateDeck(ctx, args[0], title, description)
			if err != nil {
				return failure(study.Snapshot().Error, err)
			}
			rt.printf("Created deck %q (%s)\n", deck.Title, deck.ID)
			return nil
		}),
	}
	create.Flags().StringVar(&title, "title", "", "deck title")
	create.Flags().StringVar(&description, "description", "", "deck description")
	_ = create.MarkFlagRequired("title")

	cmd.AddCommand(list, create)
	return cmd
}

func newStudyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "study <deck-id>",
		Short: "Review the cards of a deck interactively",
		Long: "Shows each card front, reveals the back on enter and asks for a recall\n" +
			"rating from 1 (forgot) to 5 (perfect). Type q to leave the session.",
		Args: cobra.ExactArgs(1),
		RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
			study, err := flashcards(ctx, rt)
			if err != nil {
				return err
			}
			if err := study.BeginStudy(ctx, args[0]); err != nil {
				return failure(study.Snapshot().Error, err)
			}
			return studyLoop(ctx, rt, study)
		}),
	}
}

func studyLoop(ctx context.Context, rt *runtime, study *app.FlashcardStudy) error {
	for {
		s := study.Snapshot()
		switch s.Phase {
		case app.PhaseComplete:
			if s.Error != "" {
				rt.printf("! %s\n", s.Error)
			}
			printProgress(rt, s.Progress)
			answer, ok := rt.ask("Study again? [y/N] ")
			if !ok || !strings.EqualFold(answer, "y") {
				study.Exit()
				return nil
			}
			if err := study.StudyAgain(ctx); err != nil {
				return failure(study.Snapshot().Error, err)
			}
		case app.PhaseStudy:
			if s.CurrentCard == nil {
				rt.printf("This deck has no cards yet\n")
				study.Exit()
				return nil
			}
			quit, err := reviewCard(ctx, rt, study, s)
			if err != nil {
				return err
			}
			if quit {
				study.Exit()
				return nil
			}
		default:
			return nil
		}
	}
}

// reviewCard shows one card and submits the rating. quit is set when the
// user leaves the session.
func reviewCard(ctx context.Context, rt *runtime, study *app.FlashcardStudy, s app.StudyState) (quit bool, err error) {
	card := s.CurrentCard
	rt.printf("\n[%d/%d] %s\n", s.CurrentCardIndex+1, len(s.Cards), card.FrontContent)
	if _, ok := rt.ask("  (enter to reveal) "); !ok {
		return true, nil
	}
	rt.printf("  %s\n", card.BackContent)
	if card.PageNumber != nil {
		rt.printf("  (page %d)\n", *card.PageNumber)
	}
	for {
		answer, ok := rt.ask("  Rate 1-5, q to quit: ")
		if !ok || answer == "q" {
			return true, nil
		}
		quality, convErr := strconv.Atoi(answer)
		if convErr != nil {
			rt.printf("  enter a number from 1 to 5\n")
			continue
		}
		err := study.SubmitCardReview(ctx, card.ID, quality)
		switch {
		case errors.Is(err, domain.ErrInvalidQuality):
			rt.printf("  enter a number from 1 to 5\n")
			continue
		case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNoToken):
			return false, err
		case err != nil:
			if msg := study.Snapshot().Error; msg != "" {
				rt.printf("! %s, try again\n", msg)
				continue
			}
			return false, err
		}
		if r := study.Snapshot().LastReview; r != nil {
			rt.printf("  next review in %d day(s)\n", r.Interval)
		}
		return false, nil
	}
}

func printProgress(rt *runtime, p *domain.DeckProgress) {
	if p == nil {
		rt.printf("\nSession complete\n")
		return
	}
	rt.printf("\nSession complete: %d/%d mastered (%.0f%%), %d learning\n",
		p.MasteredCards, p.TotalCards, p.MasteryPercentage, p.LearningCards)
}

func flashcards(ctx context.Context, rt *runtime) (*app.FlashcardStudy, error) {
	if _, err := rt.requireUser(ctx); err != nil {
		return nil, err
	}
	return app.NewFlashcardStudy(rt.client, rt.log), nil
}
