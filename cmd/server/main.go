// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"sterihub/internal/audit"
	"sterihub/internal/jwttoken"
	"sterihub/internal/platform/config"
	"sterihub/internal/platform/httpserver"
	"sterihub/internal/platform/logger"
	"sterihub/internal/platform/metrics"
	platformredis "sterihub/internal/platform/redis"
	"sterihub/internal/server/handler"
	"sterihub/internal/server/lockout"
	"sterihub/internal/server/service"
	"sterihub/internal/server/store/refreshtoken"
	"sterihub/internal/server/store/user"
	"sterihub/pkg/secrets"
)

func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Stores: Redis/Postgres when configured, in-memory otherwise.
	var (
		userStore    user.Store
		refreshStore refreshtoken.Store
		lockoutStore lockout.Store
	)

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		refreshStore = refreshtoken.NewRedisStore(redisClient.Client)
		lockoutStore = lockout.NewRedisStore(redisClient.Client)
		log.Info("using redis-backed token and lockout stores")
	} else {
		refreshStore = refreshtoken.NewMemoryStore()
		lockoutStore = lockout.NewMemoryStore()
		log.Info("redis not configured, using in-memory token and lockout stores")
	}

	if cfg.Postgres.URL != "" {
		db, err := user.Open(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		userStore = user.NewPostgresStore(db)
		log.Info("using postgres user store")
	} else {
		memStore := user.NewMemoryStore()
		seedDevUser(ctx, memStore, log)
		userStore = memStore
		log.Info("postgres not configured, using in-memory user store")
	}

	lockoutSvc, err := lockout.New(lockoutStore,
		lockout.WithLogger(log),
		lockout.WithConfig(lockout.Config{
			AttemptsPerWindow: cfg.Auth.LockoutAttempts,
			Window:            cfg.Auth.LockoutWindow,
			HardLockThreshold: cfg.Auth.HardLockThreshold,
			HardLockDuration:  cfg.Auth.HardLockDuration,
		}),
	)
	if err != nil {
		log.Error("failed to build lockout service", "error", err)
		os.Exit(1)
	}

	var auditPublisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		auditPublisher = kafkaPublisher
		log.Info("publishing audit events", "topic", cfg.Kafka.AuditTopic)
	}

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	authService := service.New(userStore, refreshStore, lockoutSvc, jwtService, log,
		service.WithAuditPublisher(auditPublisher),
		service.WithMetrics(metrics.New(prometheus.DefaultRegisterer)),
		service.WithTokenTTLs(cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL),
	)

	h := handler.New(authService, jwtService, log)
	router := handler.NewRouter(h, log)

	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting sterihub auth gateway", "addr", cfg.Server.Addr)

	if err := httpserver.Run(srv, cfg.Server.ShutdownTimeout, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// seedDevUser creates a development account when the in-memory store is in
// use, so a fresh gateway is immediately usable.
func seedDevUser(ctx context.Context, store *user.MemoryStore, log *slog.Logger) {
	email := os.Getenv("STERIHUB_SEED_EMAIL")
	password := os.Getenv("STERIHUB_SEED_PASSWORD")
	if email == "" || password == "" {
		return
	}

	hash, err := secrets.Hash(password)
	if err != nil {
		log.Warn("failed to hash seed password", "error", err)
		return
	}
	if err := store.Create(ctx, &user.User{
		ID:           uuid.New(),
		Email:        email,
		Role:         "admin",
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    time.Now(),
	}); err != nil {
		log.Warn("failed to seed dev user", "error", err)
		return
	}
	log.Info("seeded dev user", "email", email)
}
