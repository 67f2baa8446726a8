package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"learnlab-client/internal/app"
)

func newFilesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage uploaded study documents",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List your files",
			Args:  cobra.NoArgs,
			RunE: run(opts, func(ctx context.Context, rt *runtime, _ []string) error {
				lib, err := library(ctx, rt)
				if err != nil {
					return err
				}
				if err := lib.FetchFiles(ctx); err != nil {
					return failure(lib.Err(), err)
				}
				tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPLOADED")
				for _, f := range lib.Files() {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", f.ID, f.Filename, f.FileSize, f.CreatedAt.Format("2006-01-02 15:04"))
				}
				return tw.Flush()
			}),
		},
		&cobra.Command{
			Use:   "show <file-id>",
			Short: "Show one file",
			Args:  cobra.ExactArgs(1),
			RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
				lib, err := library(ctx, rt)
				if err != nil {
					return err
				}
				f, err := lib.Select(ctx, args[0])
				if err != nil {
					return failure(lib.Err(), err)
				}
				rt.printf("%s\n  id:   %s\n  type: %s\n  size: %d bytes\n  url:  %s\n", f.Filename, f.ID, f.MimeType, f.FileSize, f.DownloadURL)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "upload <path>",
			Short: "Upload a document",
			Args:  cobra.ExactArgs(1),
			RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
				lib, err := library(ctx, rt)
				if err != nil {
					return err
				}
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				uploaded, err := lib.Upload(ctx, filepath.Base(args[0]), f)
				if err != nil {
					return failure(lib.Err(), err)
				}
				rt.printf("Uploaded %s as %s\n", uploaded.Filename, uploaded.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete <file-id>",
			Short: "Delete a document",
			Args:  cobra.ExactArgs(1),
			RunE: run(opts, func(ctx context.Context, rt *runtime, args []string) error {
				lib, err := library(ctx, rt)
				if err != nil {
					return err
				}
				if err := lib.Delete(ctx, args[0]); err != nil {
					return failure(lib.Err(), err)
				}
				rt.printf("Deleted %s\n", args[0])
				return nil
			}),
		},
	)
	return cmd
}

func library(ctx context.Context, rt *runtime) (*app.Library, error) {
	if _, err := rt.requireUser(ctx); err != nil {
		return nil, err
	}
	return app.NewLibrary(rt.client, rt.log), nil
}
