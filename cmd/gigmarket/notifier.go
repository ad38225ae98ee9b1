package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"gigmarket/internal/config"
	"gigmarket/internal/infra"
	"gigmarket/internal/kafkax"
	"gigmarket/internal/modules/notification"
	"gigmarket/internal/modules/user"
)

func notifierCommand() *cli.Command {
	return &cli.Command{
		Name:  "notifier",
		Usage: "consume stored notifications and deliver them by push and e-mail",
		Action: func(c *cli.Context) error {
			cfg, log, err := bootstrap(c)
			if err != nil {
				return err
			}
			return runNotifier(c.Context, cfg, log)
		},
	}
}

func runNotifier(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	db, err := infra.NewDB(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	sinks, err := buildSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	worker := notification.NewWorker(user.NewStore(db), log.WithField("module", "notifier"), sinks...)

	dead := kafkax.NewWriter(cfg.Kafka.Brokers, notification.DeadLetterTopic)
	defer dead.Close()

	reader := kafkax.NewReader(cfg.Kafka.Brokers, cfg.Kafka.Group, notification.Topic)
	consumer := kafkax.NewConsumer(reader, cfg.Kafka.Workers, log.WithField("module", "kafka")).
		WithDeadLetter(kafkax.NewDeadLetter(dead))
	log.WithFields(logrus.Fields{"topic": notification.Topic, "group": cfg.Kafka.Group, "sinks": len(sinks)}).Info("notifier started")
	return consumer.Start(ctx, worker.HandleMessage)
}

// buildSinks enables push when Firebase is configured and e-mail when SMTP is.
func buildSinks(ctx context.Context, cfg config.Config, log logrus.FieldLogger) ([]notification.Sink, error) {
	var sinks []notification.Sink
	if cfg.Firebase.ProjectID != "" {
		app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, err
		}
		fcm, err := infra.NewMessaging(ctx, app)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notification.NewPushSink(fcm))
	}
	if cfg.SMTP.Host != "" {
		client, err := notification.NewSMTPClient(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notification.NewMailSink(client, cfg.SMTP.From, cfg.PublicURL))
	}
	if len(sinks) == 0 {
		log.Warn("no delivery sinks configured; notifications stay in the inbox only")
	}
	return sinks, nil
}
