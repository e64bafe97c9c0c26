package main

import (
	"context"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/db"
	"github.com/unclebandit/mailblast-backend/internal/handler"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

func main() {
	ctx := context.Background()

	// No .env file is fine; deployed environments use real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)
	defer log.Sync()

	pg, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pg.Close()

	campaignRepo := &repository.CampaignRepository{DB: pg}
	contactRepo := &repository.ContactRepository{DB: pg}
	statusRepo := &repository.EmailStatusRepository{DB: pg}

	sender := buildSender(cfg, log)

	processor := &service.SendJobProcessor{
		CampaignRepo: campaignRepo,
		ContactRepo:  contactRepo,
		StatusRepo:   statusRepo,
		Sender:       sender,
		Log:          log,
	}

	q, err := buildQueue(cfg, processor, log)
	if err != nil {
		log.Fatal("queue setup failed", zap.Error(err))
	}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		ContactRepo:  contactRepo,
		StatusRepo:   statusRepo,
		Queue:        q,
		Log:          log,
	}
	contactService := &service.ContactService{
		ContactRepo: contactRepo,
		Log:         log,
	}

	router := handler.NewRouter(
		&handler.CampaignHandler{Service: campaignService},
		&handler.ContactHandler{Service: contactService},
	)

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	log.Info("server running", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func buildSender(cfg *config.Config, log *zap.Logger) mailer.Sender {
	if cfg.Mailer.Driver == "smtp" {
		return &mailer.SMTPSender{
			Host:     cfg.Mailer.SMTPHost,
			Port:     cfg.Mailer.SMTPPort,
			Username: cfg.Mailer.SMTPUsername,
			Password: cfg.Mailer.SMTPPassword,
			From:     cfg.Mailer.From,
		}
	}
	return mailer.NewSimulatedSender(cfg.Mailer.Latency, cfg.Mailer.FailureRate, log)
}

// buildQueue returns the RabbitMQ publisher when a broker is configured.
// Without one the in-process queue runs the send jobs inside this binary,
// which is how development mode works.
func buildQueue(cfg *config.Config, processor *service.SendJobProcessor, log *zap.Logger) (queue.Queue, error) {
	if cfg.Queue.URL != "" {
		return queue.NewAMQPQueue(cfg.Queue.URL, cfg.Queue.Topic)
	}

	q := queue.NewInMemoryQueue(log)
	q.MaxAttempts = cfg.Queue.MaxAttempts
	q.OnExhausted = processor.Exhausted
	q.Subscribe(cfg.Queue.Topic, processor.Process)
	log.Info("no queue URL configured, running send jobs in-process")
	return q, nil
}
