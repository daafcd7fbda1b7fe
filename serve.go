package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/audit"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/config"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/database"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/documents"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/handlers"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/llm"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/metrics"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/middleware"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/prompts"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/repositories"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		return serve(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func llmSettings(cfg *config.Config) llm.Settings {
	return llm.Settings{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.RequestTimeout,
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.String("redis_host", cfg.Redis.Host),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model))

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrateDatabase(&cfg.Database, logger); err != nil {
		return err
	}

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	var locker services.JobLocker
	var redisPinger handlers.Pinger
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		locker = services.NewRedisJobLocker(redisClient)
		redisPinger = pingRedis(redisClient)
	} else {
		logger.Info("Redis not configured, generation locks are process-local")
		locker = services.NewLocalJobLocker()
	}

	composer, err := prompts.LoadComposer(cfg.Prompts.TemplatePath)
	if err != nil {
		return err
	}

	generator, err := llm.NewGenerator(ctx, llmSettings(cfg), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := generator.Close(); err != nil {
			logger.Warn("Failed to close model client", zap.Error(err))
		}
	}()

	m := metrics.New()

	policyRepo := repositories.NewPolicyRepository()
	questionnaireRepo := repositories.NewQuestionnaireRepository()
	questionRepo := repositories.NewQuestionRepository()
	answerRepo := repositories.NewAnswerRepository()
	jobRepo := repositories.NewGenerationJobRepository()
	statsRepo := repositories.NewStatisticsRepository()

	pdfExtractor := documents.NewPDFExtractor(logger)
	questionExtractor := documents.NewQuestionExtractor(logger)
	drafter := services.NewAnswerGenerator(composer, generator, logger)

	policyService := services.NewPolicyService(policyRepo, pdfExtractor, m, logger)
	questionnaireService := services.NewQuestionnaireService(questionnaireRepo, questionRepo, statsRepo, questionExtractor, m, logger)
	questionService := services.NewQuestionService(questionRepo, audit.NewReviewAuditor(logger), logger)
	answerService := services.NewAnswerLibraryService(answerRepo, questionExtractor, cfg.AnswerLibrary.MaxBulkImport, logger)
	generationService := services.NewGenerationService(
		questionnaireRepo,
		questionRepo,
		jobRepo,
		policyService,
		drafter,
		locker,
		services.NewScopeContextFunc(db),
		services.GenerationConfig{
			Throttle:   cfg.LLM.Throttle,
			MaxRetries: cfg.LLM.MaxRetries,
			LockTTL:    cfg.Redis.LockTTL,
		},
		m,
		logger,
	)

	mux := http.NewServeMux()
	scope := database.WithScopeContext(db, logger)

	handlers.NewHealthHandler(cfg, db, redisPinger, drafter, logger).RegisterRoutes(mux)
	handlers.NewUploadHandler(policyService, questionnaireService, cfg.Upload, logger).RegisterRoutes(mux, scope)
	handlers.NewPolicyHandler(policyService, logger).RegisterRoutes(mux, scope)
	handlers.NewQuestionnaireHandler(questionnaireService, logger).RegisterRoutes(mux, scope)
	handlers.NewQuestionHandler(questionService, logger).RegisterRoutes(mux, scope)
	handlers.NewAnswerLibraryHandler(answerService, cfg.Upload, logger).RegisterRoutes(mux, scope)
	handlers.NewGenerationHandler(generationService, logger).RegisterRoutes(mux, scope)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
	}

	server := &http.Server{
		Addr: net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler: middleware.Chain(mux,
			middleware.CORS(cfg.CORSOrigins),
			middleware.HTTPMetrics(m),
			middleware.RequestLogger(logger),
		),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting ekaya-questionnaire",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := generationService.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("generation shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func pingRedis(client *redis.Client) handlers.PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
