package main

import (
	"context"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/db"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/mailer"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.LogFormat)
	defer log.Sync()

	if cfg.Queue.URL == "" {
		log.Fatal("QUEUE_URL is required for the worker")
	}

	pg, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer pg.Close()

	campaignRepo := &repository.CampaignRepository{DB: pg}
	contactRepo := &repository.ContactRepository{DB: pg}
	statusRepo := &repository.EmailStatusRepository{DB: pg}

	var sender mailer.Sender
	if cfg.Mailer.Driver == "smtp" {
		sender = &mailer.SMTPSender{
			Host:     cfg.Mailer.SMTPHost,
			Port:     cfg.Mailer.SMTPPort,
			Username: cfg.Mailer.SMTPUsername,
			Password: cfg.Mailer.SMTPPassword,
			From:     cfg.Mailer.From,
		}
	} else {
		sender = mailer.NewSimulatedSender(cfg.Mailer.Latency, cfg.Mailer.FailureRate, log)
	}

	processor := &service.SendJobProcessor{
		CampaignRepo: campaignRepo,
		ContactRepo:  contactRepo,
		StatusRepo:   statusRepo,
		Sender:       sender,
		Log:          log,
	}

	q, err := queue.NewAMQPQueue(cfg.Queue.URL, cfg.Queue.Topic)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
	}
	defer q.Close()

	log.Info("worker running, waiting for send jobs",
		zap.String("topic", cfg.Queue.Topic))
	if err := q.Consume(ctx, cfg.Queue.Topic, cfg.Queue.MaxAttempts,
		processor.Process, processor.Exhausted, log); err != nil {
		log.Fatal("consumer stopped", zap.Error(err))
	}
}
