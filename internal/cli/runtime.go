package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"learnlab-client/internal/app"
	"learnlab-client/internal/config"
	"learnlab-client/internal/domain"
	"learnlab-client/internal/infra/disk"
	"learnlab-client/internal/infra/memory"
	"learnlab-client/internal/infra/postgres"
	redisinfra "learnlab-client/internal/infra/redis"
	"learnlab-client/internal/logger"
	"learnlab-client/internal/notify"
	"learnlab-client/internal/session"
	"learnlab-client/internal/transport/rest"
	"learnlab-client/internal/validate"
)

var errNotSignedIn = errors.New("not signed in, run `learnlab login` first")

// runtime is everything a command needs, built once per invocation.
type runtime struct {
	cfg     config.Config
	log     zerolog.Logger
	out     io.Writer
	in      *bufio.Scanner
	stdin   io.Reader
	toaster notify.Toaster

	tokens *session.Tokens
	client *rest.Client
	store  *session.Store

	redis *redis.Client
	pool  *pgxpool.Pool
}

func openRuntime(cmd *cobra.Command, opts *options) (*runtime, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", opts.configPath, err)
	}

	rt := &runtime{
		cfg:   cfg,
		log:   logger.Setup(cfg.Log.Level, cfg.Log.Format),
		out:   cmd.OutOrStdout(),
		stdin: cmd.InOrStdin(),
	}
	rt.in = bufio.NewScanner(rt.stdin)
	rt.toaster = notify.NewConsole(rt.out)

	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	storage, err := rt.localStorage(opts.profile)
	if err != nil {
		rt.Close()
		return nil, err
	}
	cookieTTL := time.Duration(cfg.Session.CookieDays) * 24 * time.Hour
	rt.tokens, err = session.NewTokens(cfg.API.BaseURL, storage, cookieTTL)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.client = rest.NewClient(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 30*time.Second), rt.tokens, rt.log)
	rt.store = session.NewStore(rt.client, rt.tokens, rest.DetailOf, rt.log)
	rt.client.OnUnauthorized(rt.store.Teardown)
	rt.store.OnSessionExpired(func() {
		rt.toaster.Toast(domain.Toast{
			Title:       "Session expired",
			Description: "run `learnlab login` to sign in again",
			Variant:     domain.VariantDestructive,
		})
	})
	return rt, nil
}

func (rt *runtime) localStorage(profile string) (session.LocalStorage, error) {
	switch rt.cfg.Session.Store {
	case config.SessionStoreMemory:
		return memory.NewLocalStorage(), nil
	case config.SessionStoreRedis:
		if rt.redis == nil {
			return nil, errors.New("session store redis needs redis.addr")
		}
		ttl := time.Duration(rt.cfg.Session.CookieDays) * 24 * time.Hour
		return redisinfra.NewLocalStorage(rt.redis, profile, ttl), nil
	default:
		if rt.cfg.Session.Path == "" {
			return nil, errors.New("session store file needs session.path")
		}
		return disk.NewLocalStorage(rt.cfg.Session.Path), nil
	}
}

// questions returns the question cache, shared through Redis when configured.
func (rt *runtime) questions() app.QuestionRepository {
	ttl := config.TTLDuration(rt.cfg.Redis.TTL, 10*time.Minute)
	if rt.redis != nil {
		return redisinfra.NewQuestionRepository(rt.redis, rt.client, ttl, rt.log)
	}
	return memory.NewQuestionRepository(rt.client, ttl)
}

// archive connects to Postgres on first use. It returns nil when no URL is
// configured.
func (rt *runtime) archive(ctx context.Context) (*postgres.AttemptArchive, error) {
	if rt.cfg.Postgres.URL == "" {
		return nil, nil
	}
	if rt.pool == nil {
		pool, err := pgxpool.Connect(ctx, rt.cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.pool = pool
	}
	return postgres.NewAttemptArchive(rt.pool), nil
}

// requireUser restores the persisted session and fails when nobody is signed in.
func (rt *runtime) requireUser(ctx context.Context) (domain.User, error) {
	user, ok, err := rt.store.CheckAuth(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return domain.User{}, errNotSignedIn
		}
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, errNotSignedIn
	}
	return user, nil
}

func (rt *runtime) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.log.Debug().Err(err).Msg("close redis")
		}
	}
}

func (rt *runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.out, format, args...)
}

// ask prints label and reads one trimmed line. ok is false at end of input.
func (rt *runtime) ask(label string) (string, bool) {
	fmt.Fprint(rt.out, label)
	if !rt.in.Scan() {
		fmt.Fprintln(rt.out)
		return "", false
	}
	return strings.TrimSpace(rt.in.Text()), true
}

// askSecret reads without echo when stdin is a terminal.
func (rt *runtime) askSecret(label string) (string, bool) {
	f, ok := rt.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return rt.ask(label)
	}
	fmt.Fprint(rt.out, label)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(rt.out)
	if err != nil {
		return "", false
	}
	return string(secret), true
}

// failure prefers the message an engine recorded over the wrapped error.
func failure(message string, err error) error {
	if message == "" {
		return err
	}
	return fmt.Errorf("%s: %w", message, err)
}

// run builds the runtime around fn and closes it afterwards.
func run(opts *options, fn func(ctx context.Context, rt *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime(cmd, opts)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(cmd.Context(), rt, args)
	}
}
