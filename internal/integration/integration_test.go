package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"learnlab-client/internal/apitest"
	"learnlab-client/internal/app"
	"learnlab-client/internal/domain"
	"learnlab-client/internal/infra/postgres"
	pgmigrations "learnlab-client/internal/infra/postgres/migrations"
	infraredis "learnlab-client/internal/infra/redis"
	"learnlab-client/internal/session"
	"learnlab-client/internal/transport/rest"
)

func TestQuizAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL := startPostgres(t, ctx)
	redisURL := startRedis(t, ctx)

	migrateArchive(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	srv := apitest.New(t)
	srv.SeedUser("alice", "alice@example.com", "secret1", "Alice")
	file := srv.SeedFile("chem.pdf")
	quiz, questions := srv.SeedQuiz(file.ID, "Atoms",
		domain.Question{Content: "Charge of a proton?", Body: domain.Subjective{Answer: domain.SubjectiveAnswer{Answer: "positive"}}},
		domain.Question{Content: "Noble gas?", Body: domain.MultipleChoice{Options: []domain.Option{
			{ID: "he", Content: "Helium", IsCorrect: true},
			{ID: "na", Content: "Sodium"},
		}}},
	)

	storage := infraredis.NewLocalStorage(redisClient, "it", time.Hour)
	tokens, err := session.NewTokens(srv.URL, storage, time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	client := rest.NewClient(srv.URL, 5*time.Second, tokens, zerolog.Nop())
	store := session.NewStore(client, tokens, rest.DetailOf, zerolog.Nop())
	client.OnUnauthorized(store.Teardown)
	if _, err := store.Login(ctx, "alice", "secret1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	repo := infraredis.NewQuestionRepository(redisClient, client, 5*time.Minute, zerolog.Nop())
	archive := postgres.NewAttemptArchive(pool)
	engine := app.NewQuizAttempts(client, repo, zerolog.Nop(), app.WithRecorder(archive))

	if err := engine.FetchQuizzes(ctx, file.ID); err != nil {
		t.Fatalf("fetch quizzes: %v", err)
	}
	attempt, err := engine.StartQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := engine.SubmitResponse(ctx, questions[0].ID, "positive", 3*time.Second); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if _, err := engine.SubmitResponse(ctx, questions[1].ID, "na", 2*time.Second); err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	completed, err := engine.CompleteQuiz(ctx)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Score == nil || *completed.Score != 50 {
		t.Fatalf("expected 50%%, got %+v", completed.Score)
	}

	history, err := archive.History(ctx, quiz.ID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Attempt.ID != attempt.ID || history[0].QuizTitle != "Atoms" {
		t.Fatalf("unexpected history %+v", history)
	}
	if got := history[0].Responses; len(got) != 2 || got[0].QuestionID != questions[0].ID || !got[0].IsCorrect || got[1].IsCorrect {
		t.Fatalf("responses not archived in question order: %+v", got)
	}

	// A second engine is served from the shared cache.
	before := srv.Hits("GET /api/quiz/questions/:id")
	other := app.NewQuizAttempts(client, repo, zerolog.Nop())
	if err := other.FetchQuestions(ctx, quiz.ID); err != nil {
		t.Fatalf("fetch cached questions: %v", err)
	}
	if srv.Hits("GET /api/quiz/questions/:id") != before {
		t.Fatalf("expected questions from redis")
	}

	// The session lives in redis and can be restored by a fresh holder.
	restored, err := session.NewTokens(srv.URL, infraredis.NewLocalStorage(redisClient, "it", time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	if ok, err := restored.Restore(ctx); err != nil || !ok {
		t.Fatalf("restore: ok=%v err=%v", ok, err)
	}
}

func TestArchiveMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL := startPostgres(t, ctx)

	db := openBun(pgURL)
	defer db.Close()
	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := migrator.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT to_regclass('quiz_attempts') IS NOT NULL`).Scan(&exists); err != nil {
		t.Fatalf("check table: %v", err)
	}
	if exists {
		t.Fatalf("quiz_attempts should be dropped by the rollback")
	}
}

// startContainer runs req for the rest of the test and returns host:port
// of the mapped port. Without a Docker daemon the test is skipped.
func startContainer(t *testing.T, ctx context.Context, req tc.ContainerRequest, port string) string {
	t.Helper()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("%s host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatalf("%s port: %v", req.Image, err)
	}
	return net.JoinHostPort(host, mapped.Port())
}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	addr := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "learnlab", "POSTGRES_PASSWORD": "learnlab", "POSTGRES_DB": "learnlab"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")
	return fmt.Sprintf("postgres://learnlab:learnlab@%s/learnlab?sslmode=disable", addr)
}

func startRedis(t *testing.T, ctx context.Context) string {
	t.Helper()
	addr := startContainer(t, ctx, tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}, "6379/tcp")
	return "redis://" + addr
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func migrateArchive(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	db := openBun(dsn)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
