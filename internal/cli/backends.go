package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"survey-service/internal/app"
	"survey-service/internal/config"
	"survey-service/internal/domain"
	"survey-service/internal/infra/memory"
	infrmongo "survey-service/internal/infra/mongo"
	"survey-service/internal/infra/postgres"
	infraredis "survey-service/internal/infra/redis"
)

// backends are the stores a SurveyService runs on, chosen from config:
// Postgres, then a YAML file, then built-in samples for survey definitions;
// Redis or memory for the cache and sessions; Postgres, then Mongo, then
// memory for submissions.
type backends struct {
	surveys     app.SurveyRepository
	sessions    app.SessionRepository
	submissions app.SubmissionRepository
	closers     []func(context.Context) error
}

func (b *backends) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func openBackends(ctx context.Context, cfg config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}
	fail := func(err error) (*backends, error) {
		_ = b.Close(ctx)
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func(context.Context) error { return redisClient.Close() })
	}

	var loader memory.SurveyLoader
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(fmt.Errorf("connect postgres: %w", err))
		}
		b.closers = append(b.closers, func(context.Context) error { pool.Close(); return nil })
		loader = postgres.NewSurveyLoader(pool)
		log.Info("survey definitions from postgres")
	case cfg.Survey.File != "":
		fileLoader, err := memory.LoadSurveyFile(cfg.Survey.File)
		if err != nil {
			return fail(err)
		}
		loader = fileLoader
		log.Info("survey definitions from file", zap.String("file", cfg.Survey.File))
	default:
		samples, err := sampleSurveys()
		if err != nil {
			return fail(err)
		}
		loader = samples
		log.Warn("no survey source configured, serving built-in samples")
	}

	surveyTTL := config.TTLDuration(cfg.Survey.TTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Session.TTL, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))
	if redisClient != nil {
		b.surveys = infraredis.NewSurveyRepository(redisClient, loader, surveyTTL)
		b.sessions = infraredis.NewSessionStore(redisClient, sessionTTL)
	} else {
		b.surveys = memory.NewSurveyRepository(loader, surveyTTL)
		b.sessions = memory.NewSessionStore(sessionTTL)
	}

	switch {
	case cfg.Postgres.URL != "":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		b.closers = append(b.closers, func(context.Context) error { return db.Close() })
		b.submissions = postgres.NewSubmissionStore(db)
	case cfg.Mongo.URI != "":
		client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fail(fmt.Errorf("connect mongo: %w", err))
		}
		b.closers = append(b.closers, client.Disconnect)
		store := infrmongo.NewSubmissionStore(client, cfg.Mongo.Database)
		if err := store.Ping(ctx); err != nil {
			return fail(fmt.Errorf("ping mongo: %w", err))
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			return fail(err)
		}
		b.submissions = store
		log.Info("submissions in mongo", zap.String("database", cfg.Mongo.Database))
	default:
		b.submissions = memory.NewSubmissionStore()
		log.Warn("submissions are kept in memory only")
	}
	return b, nil
}

// sampleSurveys is a minimal poll used when no survey source is configured.
func sampleSurveys() (*memory.StaticSurveyLoader, error) {
	poll := domain.Survey{
		ID:             "sample-poll",
		Slug:           "sample-poll",
		Title:          "How did you hear about us?",
		AllowAnonymous: true,
		ShowResults:    true,
		Questions: []domain.Question{
			{
				ID:       "channel",
				Order:    1,
				Label:    "How did you hear about us?",
				Kind:     domain.KindRadio,
				Required: true,
				SkipLogic: []domain.BranchRule{
					{Choice: "A friend", Action: domain.Continue()},
					{Choice: "Search", Action: domain.Continue()},
					{Choice: "Rather not say", Action: domain.EndSurvey()},
				},
			},
			{ID: "details", Order: 2, Label: "Tell us more", Kind: domain.KindMultiLine},
		},
	}
	loader := memory.NewStaticSurveyLoader()
	if err := app.PrepareSurvey(&poll, loader.Lookup); err != nil {
		return nil, err
	}
	loader.Put(poll)
	return loader, nil
}
