package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"learnlab-client/internal/app"
)

func newPodcastsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "podcasts",
		Short: "Browse podcasts and save playback progress",
	}

	list := &cobra.Command{
		Use:   "list <file-id>",
		Short: "List the podcasts of a file",
		Args:  cobra.ExactArgs(1),
		RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
			pods, err := podcasts(ctx, rt)
			if err != nil {
				return err
			}
			if err := pods.FetchPodcasts(ctx, args[0]); err != nil {
				return failure(pods.Err(), err)
			}
			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tLENGTH\tPOSITION\tTRANSCRIPT")
			for _, p := range pods.Podcasts() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Title, seconds(p.Duration), seconds(p.CurrentProgress), p.TranscriptStatus)
			}
			return tw.Flush()
		}),
	}

	var position, speed float64
	progress := &cobra.Command{
		Use:   "progress <podcast-id>",
		Short: "Save the playback position of a podcast",
		Args:  cobra.ExactArgs(1),
		RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
			pods, err := podcasts(ctx, rt)
			if err != nil {
				return err
			}
			podcast, err := pods.Open(ctx, args[0])
			if err != nil {
				return failure(pods.Err(), err)
			}
			if speed == 0 {
				speed = podcast.CurrentSpeed
			}
			if speed == 0 {
				speed = 1
			}
			prog, err := pods.UpdateProgress(ctx, podcast.ID, position, speed)
			if err != nil {
				return failure(pods.Err(), err)
			}
			rt.printf("%s: %s of %s at %.2gx (%.0f%% complete)\n", podcast.Title,
				seconds(prog.CurrentPosition), seconds(podcast.Duration), prog.PlaybackSpeed, prog.CompletionPercentage)
			return nil
		}),
	}
	progress.Flags().Float64Var(&position, "position", 0, "playback position in seconds")
	progress.Flags().Float64Var(&speed, "speed", 0, "playback speed (defaults to the saved speed)")
	_ = progress.MarkFlagRequired("position")

	cmd.AddCommand(list, progress)
	return cmd
}

func seconds(s float64) string {
	return (time.Duration(s) * time.Second).String()
}

func podcasts(ctx context.Context, rt *runtime) (*app.Podcasts, error) {
	if _, err := rt.requireUser(ctx); err != nil {
		return nil, err
	}
	return app.NewPodcasts(rt.client, rt.log), nil
}
