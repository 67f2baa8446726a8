package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	logLevel   string
	profile    string
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}
	envProfile := os.Getenv("LEARNLAB_PROFILE")
	if envProfile == "" {
		envProfile = "default"
	}

	opts := &options{}
	cmd := &cobra.Command{
		Use:          "learnlab",
		Short:        "Terminal client for the LearnLab study platform",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", envProfile, "session profile name (redis session store)")

	cmd.AddCommand(
		newLoginCmd(opts),
		newRegisterCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newFilesCmd(opts),
		newDecksCmd(opts),
		newStudyCmd(opts),
		newQuizCmd(opts),
		newPodcastsCmd(opts),
		newListenCmd(opts),
		newExportCmd(opts),
		NewMigrateCmd(&opts.configPath),
	)
	return cmd
}
