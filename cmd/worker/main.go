package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/medbooking/config"
	"github.com/Domenick1991/medbooking/internal/bootstrap"
	"github.com/Domenick1991/medbooking/internal/email"
	"github.com/Domenick1991/medbooking/internal/kafka"
	"github.com/Domenick1991/medbooking/internal/logger"
	"github.com/robfig/cron/v3"
	kafkaGo "github.com/segmentio/kafka-go"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log).With().Str("process", "worker").Logger()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wiring dependencies")
	}
	defer app.Close()

	if cfg.Kafka.Enabled() && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()

		sender := email.NewSender(log)
		go func() {
			if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				n, err := kafka.DecodeNotification(msg)
				if err != nil {
					log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping undecodable notification")
					return nil
				}
				return sender.Send(ctx, n)
			}); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("consumer stopped")
			}
		}()
	} else {
		log.Warn().Msg("kafka is not configured, notifications are not consumed")
	}

	scheduler := cron.New()
	if err := bootstrap.ScheduleJobs(ctx, scheduler, cfg.Worker, app); err != nil {
		log.Fatal().Err(err).Msg("scheduling jobs")
	}
	scheduler.Start()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	<-scheduler.Stop().Done()
}
