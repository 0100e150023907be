package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"survey-service/internal/config"
	"survey-service/internal/infra/memory"
	"survey-service/internal/infra/postgres"
	infraredis "survey-service/internal/infra/redis"
)

// NewSeedCmd validates survey definitions from a YAML file and stores them in Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Validate and store survey definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "surveys.yaml", "YAML file with a top-level surveys list")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	// Every survey is checked before anything is written.
	surveys, err := memory.LoadSurveyFile(file)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	loader := postgres.NewSurveyLoader(pool)
	// Running services read definitions through the Redis cache; stored
	// surveys are evicted so edits show up before the TTL runs out.
	var cache *infraredis.SurveyRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()
		cache = infraredis.NewSurveyRepository(client, loader, config.TTLDuration(cfg.Survey.TTL, 10*time.Minute))
	}
	for _, survey := range surveys.All() {
		if err := loader.SaveSurvey(ctx, survey); err != nil {
			return err
		}
		if cache != nil {
			if err := cache.Invalidate(ctx, survey); err != nil {
				log.Warn("evict cached survey", zap.String("survey", survey.ID), zap.Error(err))
			}
		}
		log.Info("survey stored", zap.String("survey", survey.ID), zap.String("slug", survey.Slug), zap.Int("questions", len(survey.Questions)))
	}
	return nil
}
