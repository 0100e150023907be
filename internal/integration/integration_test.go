package integration

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"survey-service/internal/app"
	"survey-service/internal/domain"
	"survey-service/internal/infra/postgres"
	pgmigrations "survey-service/internal/infra/postgres/migrations"
	infraredis "survey-service/internal/infra/redis"
)

func TestSkipLogicSubmissionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := migrateDB(t, ctx, pgURL)
	defer db.Close()

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewSurveyLoader(pool)
	for _, survey := range sampleSurveys(t) {
		if err := loader.SaveSurvey(ctx, survey); err != nil {
			t.Fatalf("seed survey: %v", err)
		}
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	submissions := postgres.NewSubmissionStore(db)
	service := app.NewSurveyService(
		infraredis.NewSurveyRepository(redisClient, loader, 5*time.Minute),
		infraredis.NewSessionStore(redisClient, 5*time.Minute),
		submissions,
		zap.NewNop(),
	)

	req := app.Request{Slug: "poll", SessionID: "visitor-1"}
	resp, err := service.Serve(ctx, req)
	if err != nil {
		t.Fatalf("first step: %v", err)
	}
	if resp.Mode != app.ModeSkipLogic || resp.Step != 1 {
		t.Fatalf("expected skip logic step 1, got mode=%s step=%d", resp.Mode, resp.Step)
	}

	req.Submit = true
	req.Page = "2"
	req.Form = url.Values{"q1": {"next"}}
	resp, err = service.Serve(ctx, req)
	if err != nil {
		t.Fatalf("answer q1: %v", err)
	}
	if resp.Outcome != app.OutcomeRender || resp.Step != 2 {
		t.Fatalf("expected step 2, got outcome=%s step=%d", resp.Outcome, resp.Step)
	}

	req.Page = "3"
	req.Form = url.Values{"q2": {"friends told me"}}
	resp, err = service.Serve(ctx, req)
	if err != nil {
		t.Fatalf("answer q2: %v", err)
	}
	if resp.Outcome != app.OutcomeRedirect || !resp.Redirect.ThankYou {
		t.Fatalf("expected thank-you redirect, got %+v", resp)
	}

	subs, err := submissions.List(ctx, "s-poll")
	if err != nil {
		t.Fatalf("list submissions: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected one submission, got %d", len(subs))
	}
	if subs[0].Answers["q1"] != "next" || subs[0].Answers["q2"] != "friends told me" {
		t.Fatalf("unexpected answers %+v", subs[0].Answers)
	}

	// The same session is not allowed a second submission.
	resp, err = service.Serve(ctx, app.Request{Slug: "poll", SessionID: "visitor-1"})
	if err != nil {
		t.Fatalf("revisit: %v", err)
	}
	if resp.Outcome != app.OutcomeCompleted {
		t.Fatalf("expected completed, got %s", resp.Outcome)
	}

	// A jump to another survey resolves its slug through the cache.
	resp, err = service.Serve(ctx, app.Request{Slug: "poll", SessionID: "visitor-2", Submit: true, Page: "2", Form: url.Values{"q1": {"survey"}}})
	if err != nil {
		t.Fatalf("jump: %v", err)
	}
	if resp.Outcome != app.OutcomeRedirect || resp.Redirect.Slug != "follow-up" {
		t.Fatalf("expected redirect to follow-up, got %+v", resp.Redirect)
	}

	if err := service.AttachArticle(ctx, subs[0].ID, "article-1"); err != nil {
		t.Fatalf("attach article: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "survey", "POSTGRES_PASSWORD": "surveypass", "POSTGRES_DB": "surveydb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://survey:surveypass@%s:%s/surveydb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	// The container reports the port before Postgres accepts connections.
	var db *bun.DB
	var err error
	for attempt := 0; attempt < 10; attempt++ {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		db = bun.NewDB(sqldb, pgdialect.New())
		if err = db.PingContext(ctx); err == nil {
			break
		}
		_ = db.Close()
		time.Sleep(500 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("ping postgres: %v", err)
	}

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func sampleSurveys(t *testing.T) []domain.Survey {
	t.Helper()
	next := domain.Survey{ID: "s-next", Slug: "follow-up", Title: "Follow up", AllowAnonymous: true}
	poll := domain.Survey{
		ID:             "s-poll",
		Slug:           "poll",
		Title:          "Poll",
		AllowAnonymous: true,
		Questions: []domain.Question{
			{
				ID:       "q1",
				Order:    1,
				Label:    "Where to?",
				Kind:     domain.KindRadio,
				Required: true,
				SkipLogic: []domain.BranchRule{
					{Choice: "next", Action: domain.Continue()},
					{Choice: "end", Action: domain.EndSurvey()},
					{Choice: "survey", Action: domain.JumpToSurvey("s-next")},
				},
			},
			{ID: "q2", Order: 2, Label: "How did you find us?", Kind: domain.KindSingleLine},
		},
	}
	lookup := func(ref string) (domain.Survey, bool) {
		if ref == next.ID || ref == next.Slug {
			return next, true
		}
		return domain.Survey{}, false
	}
	if err := app.PrepareSurvey(&poll, lookup); err != nil {
		t.Fatalf("prepare poll: %v", err)
	}
	return []domain.Survey{next, poll}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
