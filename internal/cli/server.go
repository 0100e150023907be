package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"survey-service/internal/app"
	"survey-service/internal/config"
	"survey-service/internal/infra/amqp"
	"survey-service/internal/pkg/workerpool"
	transport "survey-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the survey server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	stores, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.Close(closeCtx); err != nil {
			log.Warn("close backends", zap.Error(err))
		}
	}()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	pool := workerpool.NewWorkerPool(workerCtx, cfg.Workers.Count, cfg.Workers.Queue, log)

	opts := []app.Option{app.WithResultsHub(app.NewResultsHub())}
	if cfg.AMQP.URL != "" {
		publisher, conn, err := amqp.Dial(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
		if err != nil {
			return err
		}
		defer func() {
			_ = publisher.Close()
			_ = conn.Close()
		}()
		opts = append(opts, app.WithEvents(publisher, pool))
		log.Info("publishing submission events", zap.String("exchange", cfg.AMQP.Exchange))
	}

	service := app.NewSurveyService(stores.surveys, stores.sessions, stores.submissions, log, opts...)
	session := transport.SessionCookie{
		Name:   cfg.Session.Cookie,
		MaxAge: config.TTLDuration(cfg.Session.TTL, 24*time.Hour),
		Secure: cfg.Session.Secure,
	}
	router := transport.NewRouter(
		transport.NewSurveyHandler(service, transport.HeaderSegments{}, session, log),
		transport.NewResultsWSHandler(service, log),
		log,
	)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting survey service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	pool.Shutdown(shutdownCtx)
	return err
}
