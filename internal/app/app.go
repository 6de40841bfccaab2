// Package app assembles the service components from configuration. It is
// shared by the server and the operator CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/internal/infrastructure/config"
	"aerorelay-service/internal/infrastructure/lock"
	"aerorelay-service/internal/infrastructure/messaging"
	"aerorelay-service/internal/infrastructure/oauth"
	"aerorelay-service/internal/infrastructure/persistence"
	repo "aerorelay-service/internal/interface/repository"
	"aerorelay-service/internal/usecase"
	"aerorelay-service/pkg/applejwt"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/metrics"

	"gorm.io/gorm"
)

// App holds the wired components
type App struct {
	DB          *gorm.DB
	Poller      *usecase.FlightPoller
	Dispatcher  *usecase.NotificationDispatcher
	Journeys    *usecase.JourneyService
	Leaderboard *usecase.LeaderboardIngest

	// Consumer is set when transitions travel through Kafka
	Consumer *messaging.KafkaConsumer

	closers []func() error
}

// Build connects to every configured backend and wires the use cases.
// Optional backends (MongoDB, Redis, Kafka, S3) are skipped when unset.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Metrics) (*App, error) {
	a := &App{}

	log.Info("Connecting to PostgreSQL")
	db, err := persistence.NewPostgresDB(ctx, cfg.PostgresURI)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if cfg.RunMigrations {
		log.Info("Running database migrations")
		if err := persistence.RunMigrations(ctx, db); err != nil {
			a.Close()
			return nil, err
		}
	}

	journeyRepo := repo.NewGormJourneyRepository(db)
	eventRepo := repo.NewGormJourneyEventRepository(db)
	userRepo := repo.NewGormUserRepository(db)
	airlineRepo := repo.NewGormAirlineRepository(db)
	leaderboardRepo := repo.NewGormLeaderboardRepository(db)

	var auditRepo repository.NotificationEventRepository
	if cfg.MongoURI != "" {
		log.Info("Connecting to MongoDB")
		mongoClient, mongoDB, err := persistence.NewMongoClient(ctx, persistence.MongoConfig{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDB,
			Username: cfg.MongoUser,
			Password: cfg.MongoPassword,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return mongoClient.Disconnect(disconnectCtx)
		})
		auditRepo = repo.NewMongoNotificationEventRepository(mongoDB)
	}

	gateways, err := buildGateways(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Dispatcher = usecase.NewNotificationDispatcher(
		gateways,
		entity.PushProvider(cfg.PushProvider),
		journeyRepo,
		userRepo,
		eventRepo,
		auditRepo,
		log,
		m,
	)
	a.Journeys = usecase.NewJourneyService(journeyRepo, eventRepo, a.Dispatcher, log)
	a.Leaderboard = usecase.NewLeaderboardIngest(airlineRepo, leaderboardRepo, log)

	if cfg.CiriumAppID == "" || cfg.CiriumAppKey == "" {
		log.Warn("Cirium credentials are not configured, flight status requests will be rejected upstream")
	}
	statusRepo := repo.NewCiriumClient(repo.CiriumConfig{
		BaseURL:        cfg.CiriumBaseURL,
		AppID:          cfg.CiriumAppID,
		AppKey:         cfg.CiriumAppKey,
		RequestTimeout: cfg.PollTimeout,
		MaxRetries:     cfg.PollMaxRetries,
		RetryBase:      cfg.PollRetryBase,
		RPS:            cfg.UpstreamRPS,
	}, &http.Client{}, log, m)

	a.Poller = usecase.NewFlightPoller(journeyRepo, statusRepo, usecase.PollerConfig{
		MaxJourneys:   cfg.PollMaxJourneys,
		Concurrency:   cfg.PollConcurrency,
		GroupDelay:    cfg.PollGroupDelay,
		ResultSamples: cfg.PollResultSamples,
	}, log, m)

	if cfg.ArchiveBucket != "" {
		archive, err := repo.NewS3RawArchive(ctx, repo.S3ArchiveConfig{
			Bucket:    cfg.ArchiveBucket,
			Region:    cfg.ArchiveRegion,
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveKeyID,
			SecretKey: cfg.ArchiveSecret,
		}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Poller.WithArchive(archive)
		log.Info("Archiving upstream payloads", "bucket", cfg.ArchiveBucket)
	}

	if cfg.RedisURL != "" {
		redisClient, err := lock.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, redisClient.Close)
		a.Poller.WithLock(lock.NewRedisLease(redisClient, cfg.PollLeaseName, cfg.PollLeaseTTL, log))
		log.Info("Poller lease enabled", "key", cfg.PollLeaseName)
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTransitionTopic, log, m)
		a.closers = append(a.closers, publisher.Close)
		a.Poller.WithPublisher(publisher)

		a.Consumer = messaging.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTransitionTopic, cfg.KafkaConsumerGroup, a.Dispatcher, log, m)
		a.closers = append(a.closers, a.Consumer.Close)
		log.Info("Publishing transitions to Kafka", "topic", cfg.KafkaTransitionTopic)
	} else {
		a.Poller.WithPublisher(messaging.NewInProcessPublisher(a.Dispatcher, m))
	}

	return a, nil
}

// Close releases every backend connection in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildGateways(ctx context.Context, cfg *config.Config, log logger.Logger) ([]repository.PushGateway, error) {
	var gateways []repository.PushGateway

	if cfg.FirebaseConfigured() {
		firebase, err := oauth.NewFirebaseOAuth(cfg.FirebaseProjectID, cfg.FirebaseClientEmail, cfg.FirebasePrivateKey, log)
		if err != nil {
			return nil, err
		}
		svc, err := firebase.NewFCMService(ctx)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, repo.NewFCMGateway(svc, firebase.ProjectID(), log))
		log.Info("FCM gateway enabled", "project", firebase.ProjectID())
	}

	if cfg.AppleConfigured() && cfg.AppleBundleID != "" {
		signer, err := applejwt.NewSigner(applejwt.Config{
			TeamID:         cfg.AppleTeamID,
			KeyID:          cfg.AppleKeyID,
			BundleID:       cfg.AppleBundleID,
			PrivateKeyPath: cfg.ApplePrivateKeyPath,
		})
		if err != nil {
			// an unusable key only disables the APNs gateway
			log.Warn("APNs gateway disabled", "error", err)
		} else {
			client := repo.NewAPNsClient(signer.PrivateKey(), cfg.AppleKeyID, cfg.AppleTeamID, cfg.APNsProduction)
			gateways = append(gateways, repo.NewAPNsGateway(client, cfg.AppleBundleID, log))
			log.Info("APNs gateway enabled", "endpoint", client.Host)
		}
	}

	found := false
	for _, g := range gateways {
		if string(g.Provider()) == cfg.PushProvider {
			found = true
		}
	}
	if !found {
		log.Warn(fmt.Sprintf("Push provider %s has no credentials, notifications will be rejected", cfg.PushProvider))
	}

	return gateways, nil
}
