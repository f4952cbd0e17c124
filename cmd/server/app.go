package main

import (
	"context"
	"fmt"
	"log"

	"studyblocks-backend/internal/config"
	"studyblocks-backend/internal/database"
	"studyblocks-backend/internal/repository"
	"studyblocks-backend/internal/services"
)

// app holds the storage and delivery dependencies shared by every command.
type app struct {
	cfg      *config.Config
	store    services.ReminderStore
	contacts services.ContactResolver
	ping     func(ctx context.Context) error
	redis    *database.RedisClients
	closers  []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log.Println("✓ Environment variables loaded")

	a := &app{cfg: cfg}
	if err := a.openStore(ctx); err != nil {
		a.close()
		return nil, err
	}

	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		a.redis = redisClients
		a.closers = append(a.closers, redisClients.Close)
		log.Println("✓ Redis connected")
	} else {
		log.Println("⚠ REDIS_URL not set: contact cache and cross-instance live push disabled")
	}

	if a.redis != nil {
		a.contacts = services.NewCachedContactResolver(a.contacts, a.redis.Cache, cfg.ContactCacheTTL)
	}

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.StoreDriver {
	case config.StoreDriverSQLite:
		db, err := database.OpenSQLite(ctx, a.cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("sqlite open failed: %w", err)
		}
		a.closers = append(a.closers, func() { db.Close() })
		a.store = repository.NewSQLiteStudySessionRepo(db)
		a.contacts = services.NewRepoContactResolver(repository.NewSQLiteUserRepo(db))
		a.ping = db.PingContext
		log.Printf("✓ SQLite store opened at %s", a.cfg.SQLitePath)

	default:
		pool, err := database.NewPostgresPool(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("postgres connection failed: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(ctx, pool, a.cfg.MigrationsDir); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
		log.Println("✓ Database migrations applied")

		a.store = repository.NewStudySessionRepo(pool)
		a.contacts = services.NewRepoContactResolver(repository.NewUserRepo(pool))
		a.ping = pool.Ping
	}
	return nil
}

func (a *app) newMailer() services.Mailer {
	if a.cfg.EmailProvider == config.EmailProviderResend {
		log.Println("✓ Email delivery via Resend")
		return services.NewResendMailer(a.cfg.ResendAPIKey, a.cfg.SMTPFrom)
	}
	return services.NewSMTPMailer(a.cfg.SMTPHost, a.cfg.SMTPPort, a.cfg.SMTPUser, a.cfg.SMTPPass, a.cfg.SMTPFrom)
}

func (a *app) newDispatcher(publisher services.ReminderPublisher) *services.ReminderDispatcher {
	return services.NewReminderDispatcher(a.store, a.contacts, a.newMailer(), publisher, services.ReminderOptions{
		LeadTime:    a.cfg.ReminderLeadTime,
		Window:      a.cfg.ReminderWindow,
		BatchSize:   a.cfg.ReminderBatchSize,
		FrontendURL: a.cfg.FrontendURL,
	})
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
