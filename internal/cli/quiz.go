package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"learnlab-client/internal/app"
	"learnlab-client/internal/domain"
)

func newQuizCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "List, take and review quizzes",
	}

	var listFile string
	list := &cobra.Command{
		Use:   "list",
		Short: "List quizzes, optionally for one file",
		Args:  cobra.NoArgs,
		RunE: run(opts, func(ctx context.Context, rt *runtime, _ []string) error {
			quiz, err := quizAttempts(ctx, rt)
			if err != nil {
				return err
			}
			if err := quiz.FetchQuizzes(ctx, listFile); err != nil {
				return failure(quiz.Snapshot().Error, err)
			}
			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tQUESTIONS\tATTEMPTS\tBEST")
			for _, q := range quiz.Snapshot().Quizzes {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", q.ID, q.Title, q.TotalQuestions, q.TotalAttempts, percent(q.HighestScore))
			}
			return tw.Flush()
		}),
	}
	list.Flags().StringVar(&listFile, "file", "", "only quizzes of this file")

	var takeFile string
	take := &cobra.Command{
		Use:   "take <quiz-id>",
		Short: "Answer a quiz interactively",
		Args:  cobra.ExactArgs(1),
		RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
			quiz, err := quizAttempts(ctx, rt)
			if err != nil {
				return err
			}
			if takeFile != "" {
				if err := quiz.FetchQuizzes(ctx, takeFile); err != nil {
					return failure(quiz.Snapshot().Error, err)
				}
			}
			if _, err := quiz.StartQuiz(ctx, args[0]); err != nil {
				return failure(quiz.Snapshot().Error, err)
			}
			return quizLoop(ctx, rt, quiz)
		}),
	}
	take.Flags().StringVar(&takeFile, "file", "", "file the quiz belongs to, used to show its title")

	var limit int
	history := &cobra.Command{
		Use:   "history <quiz-id>",
		Short: "Show archived attempts of a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
			archive, err := rt.archive(ctx)
			if err != nil {
				return err
			}
			if archive == nil {
				return errors.New("attempt history needs postgres.url")
			}
			records, err := archive.History(ctx, args[0], limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ATTEMPT\tSTARTED\tSCORE\tCORRECT")
			for _, rec := range records {
				correct := 0
				for _, r := range rec.Responses {
					if r.IsCorrect {
						correct++
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\n", rec.Attempt.ID, rec.Attempt.StartTime.Format("2006-01-02 15:04"),
					percent(rec.Attempt.Score), correct, len(rec.Responses))
			}
			return tw.Flush()
		}),
	}
	history.Flags().IntVar(&limit, "limit", 10, "number of attempts to show")

	cmd.AddCommand(list, take, history)
	return cmd
}

func quizLoop(ctx context.Context, rt *runtime, quiz *app.QuizAttempts) error {
	s := quiz.Snapshot()
	if len(s.Questions) == 0 {
		rt.printf("This quiz has no questions\n")
		return nil
	}
	if s.CurrentQuiz != nil && s.CurrentQuiz.Title != "" {
		rt.printf("%s\n", s.CurrentQuiz.Title)
	}

	for i := 0; ; {
		question, ok := quiz.CurrentQuestion()
		if !ok {
			break
		}
		rt.printf("\nQuestion %d of %d\n%s\n", i+1, len(s.Questions), question.Content)
		started := time.Now()
		answer, ok := askAnswer(rt, question)
		if !ok {
			rt.printf("Quiz left unfinished; run it again to resume\n")
			return nil
		}

		resp, err := quiz.SubmitResponse(ctx, question.ID, answer, time.Since(started))
		switch {
		case errors.Is(err, domain.ErrConflict):
			rt.printf("  already answered earlier\n")
		case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrNoToken):
			return err
		case err != nil:
			if msg := quiz.Snapshot().Error; msg != "" {
				rt.printf("! %s, try again\n", msg)
				continue
			}
			rt.printf("  %v\n", err)
			continue
		default:
			printVerdict(rt, question, resp)
		}

		if quiz.IsLastQuestion() {
			break
		}
		i++
		quiz.SetCurrentQuestionIndex(i)
	}

	if _, err := quiz.CompleteQuiz(ctx); err != nil {
		return failure(quiz.Snapshot().Error, err)
	}
	res := quiz.Results()
	rt.printf("\nQuiz complete: %d of %d correct, score %s\n", res.Correct, res.Total, percent(res.Score))
	return nil
}

// askAnswer reads an option number for multiple choice questions and free
// text otherwise.
func askAnswer(rt *runtime, q domain.Question) (string, bool) {
	mc, ok := q.Body.(domain.MultipleChoice)
	if !ok {
		for {
			raw, ok := rt.ask("Your answer: ")
			if !ok || raw != "" {
				return raw, ok
			}
		}
	}
	for i, opt := range mc.Options {
		rt.printf("  %d) %s\n", i+1, opt.Content)
	}
	for {
		raw, ok := rt.ask("Your choice: ")
		if !ok {
			return "", false
		}
		n, err := strconv.Atoi(raw)
		if err == nil && n >= 1 && n <= len(mc.Options) {
			return mc.Options[n-1].ID, true
		}
		rt.printf("  pick a number from 1 to %d\n", len(mc.Options))
	}
}

func printVerdict(rt *runtime, q domain.Question, resp domain.QuestionResponse) {
	if resp.IsCorrect {
		rt.printf("  Correct\n")
	} else {
		rt.printf("  Incorrect\n")
		if subj, ok := q.Body.(domain.Subjective); ok {
			rt.printf("  Expected: %s\n", subj.Answer.Answer)
		}
	}
	if q.Explanation != "" {
		rt.printf("  %s\n", q.Explanation)
	}
}

func percent(score *float64) string {
	if score == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *score)
}

func quizAttempts(ctx context.Context, rt *runtime) (*app.QuizAttempts, error) {
	if _, err := rt.requireUser(ctx); err != nil {
		return nil, err
	}
	var opts []app.QuizOption
	archive, err := rt.archive(ctx)
	if err != nil {
		rt.log.Warn().Err(err).Msg("attempt archive unavailable")
	} else if archive != nil {
		opts = append(opts, app.WithRecorder(archive))
	}
	return app.NewQuizAttempts(rt.client, rt.questions(), rt.log, opts...), nil
}
