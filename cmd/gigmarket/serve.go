package main

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"gigmarket/internal/config"
	httptransport "gigmarket/internal/http"
	"gigmarket/internal/http/handlers"
	"gigmarket/internal/infra"
	"gigmarket/internal/kafkax"
	"gigmarket/internal/migrations"
	"gigmarket/internal/modules/gig"
	"gigmarket/internal/modules/notification"
	"gigmarket/internal/modules/order"
	"gigmarket/internal/modules/payment"
	"gigmarket/internal/modules/rating"
	"gigmarket/internal/modules/review"
	"gigmarket/internal/redisx"
	"gigmarket/internal/storage"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "migrate", Usage: "apply pending migrations before serving"},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := bootstrap(c)
			if err != nil {
				return err
			}
			if err := cfg.ValidateAuth(); err != nil {
				return err
			}
			if c.Bool("migrate") {
				if err := migrations.Up(cfg.DB.DSN); err != nil {
					return err
				}
			}
			return serve(c.Context, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	db, err := infra.NewDB(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	// The producer outlives ctx so requests draining after a signal can still publish.
	producer := kafkax.NewProducer(kafkax.NewWriter(cfg.Kafka.Brokers, notification.Topic), cfg.Kafka.Buffer, log)
	producer.Start(context.Background())
	defer func() {
		producer.Close()
		producer.WaitClosed()
	}()

	guard := redisx.NewGuard(rdb)
	notifications := notification.NewService(
		notification.NewStore(db), guard, notification.NewKafkaPublisher(producer), log.WithField("module", "notification"))

	deps := order.Deps{
		Repo:        order.NewStore(db),
		Gigs:        gig.NewStore(db),
		Notifier:    notifications,
		Idempotency: guard,
		Logger:      log.WithField("module", "order"),
	}
	var downloads handlers.DownloadSigner
	if cfg.Storage.Endpoint != "" {
		deliveries, err := newDeliveries(cfg)
		if err != nil {
			return err
		}
		deps.Files = deliveries
		downloads = deliveries
	}
	orders := order.NewService(deps)

	ratings := rating.NewAggregator(rating.NewStore(db), rating.NewRedisCache(rdb), log.WithField("module", "rating"))
	reviews := review.NewService(review.NewStore(db), orders, ratings, notifications, log.WithField("module", "review"))
	webhooks := payment.NewProcessor(cfg.Stripe.WebhookSecret, orders, log.WithField("module", "payment"))

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Verifier:      verifier,
		Logger:        log.WithField("module", "http"),
		Orders:        orders,
		Downloads:     downloads,
		Reviews:       reviews,
		Ratings:       ratings,
		Notifications: notifications,
		Webhooks:      webhooks,
	})
	return httptransport.NewServer(cfg.HTTP.Addr, router, log).Run(ctx, cfg.HTTP.ShutdownTimeout)
}

func newVerifier(ctx context.Context, cfg config.Config) (infra.TokenVerifier, error) {
	if cfg.Auth.Provider == "jwt" {
		return infra.NewJWTVerifier(cfg.Auth.JWTSecret), nil
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		return nil, err
	}
	return infra.NewFirebaseVerifier(ctx, app)
}

func newDeliveries(cfg config.Config) (*storage.Deliveries, error) {
	client, err := storage.NewClient(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.Secure)
	if err != nil {
		return nil, err
	}
	return storage.NewDeliveries(client, cfg.Storage.Bucket, cfg.Storage.LinkExpiry), nil
}

