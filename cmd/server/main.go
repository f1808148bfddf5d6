package main // Entry point package

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/auth"
	"github.com/iliyamo/auth-service/internal/config"
	"github.com/iliyamo/auth-service/internal/database"
	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/ratelimit"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/router"
	queue_publisher "github.com/iliyamo/auth-service/internal/service"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	verifications := repository.NewVerificationRepo(db)
	attempts := repository.NewAttemptRepo(db)

	// Prefer the shared Redis limiter; fall back to the in-memory
	// backend when Redis is unreachable so a cache outage never takes
	// login down with it.
	var backend ratelimit.Backend
	if rdb := config.NewRedisClient(); rdb != nil {
		backend = ratelimit.NewRedisBackend(rdb, "rl")
		log.Printf("ratelimit: using redis backend")
	} else {
		backend = ratelimit.NewMemoryBackend()
		log.Printf("ratelimit: redis unavailable, using in-memory backend")
	}
	limiter := ratelimit.New(backend)
	presets := config.LoadRateLimitPresets()

	hasher := auth.NewHasher(cfg.BcryptCost, auth.DefaultPasswordPolicy())
	tokenSvc := auth.NewTokenService(
		cfg.JWTSecret,
		time.Duration(cfg.AccessTTLMin)*time.Minute,
		time.Duration(cfg.RefreshTTLDays)*24*time.Hour,
		tokens, users,
	)
	verifySvc := auth.NewVerificationService(verifications)
	lockout := auth.NewLockoutTracker(attempts,
		time.Duration(cfg.LockoutWindowMin)*time.Minute, cfg.LockoutThreshold)

	svc := auth.NewService(users, hasher, tokenSvc, verifySvc, lockout,
		limiter, presets, queue_publisher.NewPublisher())

	// Background consumer turning security events into the audit log.
	go func() {
		if err := queue.StartSecurityConsumer(); err != nil {
			log.Printf("security-consumer: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	if config.RateLimitEnabled() {
		router.RegisterAuth(e, handler.NewAuthHandler(svc), svc, limiter, presets)
	} else {
		router.RegisterAuth(e, handler.NewAuthHandler(svc), svc, nil, presets)
	}
	router.RegisterOps(e, handler.NewOpsHandler(limiter), svc)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
