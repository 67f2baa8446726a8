package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"learnlab-client/internal/config"
	"learnlab-client/internal/domain"
	"learnlab-client/internal/transport/ws"
)

func newListenCmd(opts *options) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print real-time notifications until interrupted",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 listens until interrupted)")
	cmd.RunE = run(opts, func(ctx context.Context, rt *runtime, _ []string) error {
		if _, err := rt.requireUser(ctx); err != nil {
			return err
		}
		endpoint, err := rt.cfg.WebSocketURL()
		if err != nil {
			return err
		}
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}
		ctx, stop := context.WithCancelCause(ctx)
		defer stop(nil)

		manager := ws.NewManager(endpoint, rt.tokens, rt.store.Authenticated, rt.toaster, ws.Options{
			PingInterval:   config.TTLDuration(rt.cfg.WS.PingInterval, ws.DefaultPingInterval),
			ReconnectDelay: config.TTLDuration(rt.cfg.WS.ReconnectDelay, ws.DefaultReconnectDelay),
			OnUnauthorized: func() {
				rt.store.Teardown()
				stop(errNotSignedIn)
			},
		}, rt.log)
		defer manager.Close()

		// A failed first dial has already scheduled a retry.
		if err := manager.Connect(ctx); errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrNoToken) {
			if cause := context.Cause(ctx); errors.Is(cause, errNotSignedIn) {
				return cause
			}
			return err
		}
		<-ctx.Done()
		stats := manager.Stats()
		rt.log.Info().Int("attempts", stats.Attempts).Int("reconnects", stats.Reconnects).Msg("stopped listening")
		if cause := context.Cause(ctx); errors.Is(cause, errNotSignedIn) {
			return cause
		}
		return nil
	})
	return cmd
}
