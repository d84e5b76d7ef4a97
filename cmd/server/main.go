// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skillang/leadg-crm-backend-sub001/internal/channel"
	"github.com/skillang/leadg-crm-backend-sub001/internal/config"
	"github.com/skillang/leadg-crm-backend-sub001/internal/controller"
	"github.com/skillang/leadg-crm-backend-sub001/internal/db"
	"github.com/skillang/leadg-crm-backend-sub001/internal/metrics"
	"github.com/skillang/leadg-crm-backend-sub001/internal/poller"
	"github.com/skillang/leadg-crm-backend-sub001/internal/queue"
	"github.com/skillang/leadg-crm-backend-sub001/internal/repository"
	"github.com/skillang/leadg-crm-backend-sub001/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	metrics.Init()

	database, err := db.Open(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Activity events go to RabbitMQ when configured, otherwise stay in
	// memory so the engine runs without a broker.
	var publisher queue.Publisher = queue.NewMemoryPublisher()
	if cfg.AMQPURL != "" {
		conn, err := amqp.Dial(cfg.AMQPURL)
		if err != nil {
			logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer conn.Close()

		amqpPublisher, err := queue.NewAMQPPublisher(conn, cfg.ActivityQueue)
		if err != nil {
			logger.Fatal("failed to open activity queue", zap.Error(err))
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	}

	campaignRepo := &repository.CampaignRepository{DB: database}
	leadRepo := &repository.LeadRepository{DB: database}
	enrollmentRepo := &repository.EnrollmentRepository{DB: database}
	jobRepo := &repository.MessageJobRepository{DB: database}

	senders := channel.Registry{
		"email": &channel.EmailSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		},
		"chat": channel.NewChatSender(cfg.ChatWebhookURL, cfg.ChatTimeout),
	}

	completion := &service.CompletionDetector{
		CampaignRepo:   campaignRepo,
		EnrollmentRepo: enrollmentRepo,
		JobRepo:        jobRepo,
		Publisher:      publisher,
		Logger:         logger,
	}

	executor := &service.Executor{
		CampaignRepo:   campaignRepo,
		LeadRepo:       leadRepo,
		EnrollmentRepo: enrollmentRepo,
		JobRepo:        jobRepo,
		Senders:        senders,
		Publisher:      publisher,
		Completion:     completion,
		Logger:         logger,
		Limiter:        rate.NewLimiter(rate.Limit(cfg.SendRateLimit), cfg.SendRateLimit),
		BatchSize:      cfg.JobBatchSize,
		RetryDelay:     cfg.RetryDelay,
	}

	campaignService := &service.CampaignService{
		CampaignRepo:   campaignRepo,
		EnrollmentRepo: enrollmentRepo,
		JobRepo:        jobRepo,
		LeadRepo:       leadRepo,
		Logger:         logger,
	}

	enrollmentService := &service.EnrollmentService{
		CampaignRepo:   campaignRepo,
		LeadRepo:       leadRepo,
		EnrollmentRepo: enrollmentRepo,
		JobRepo:        jobRepo,
		Publisher:      publisher,
		Logger:         logger,
	}

	monitor := &service.CriteriaMonitor{
		CampaignRepo:   campaignRepo,
		LeadRepo:       leadRepo,
		EnrollmentRepo: enrollmentRepo,
		JobRepo:        jobRepo,
		Publisher:      publisher,
		Logger:         logger,
	}

	campaignController := &controller.CampaignController{
		CampaignService:   campaignService,
		EnrollmentService: enrollmentService,
		Monitor:           monitor,
		Logger:            logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobPoller := poller.New(cfg.PollInterval, executor, logger)
	go jobPoller.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Group(campaignController.Routes)
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: ":" + cfg.APIPort, Handler: r}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	logger.Info("server running", zap.String("port", cfg.APIPort))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
