package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/course-identity/config"
	"github.com/oksasatya/course-identity/internal/application"
	"github.com/oksasatya/course-identity/internal/container"
	pginfra "github.com/oksasatya/course-identity/internal/infrastructure/postgres"
	"github.com/oksasatya/course-identity/internal/interface/middleware"
	"github.com/oksasatya/course-identity/internal/router"
	"github.com/oksasatya/course-identity/internal/verification"
	"github.com/oksasatya/course-identity/pkg/helpers"
	"github.com/oksasatya/course-identity/pkg/phone"
	"github.com/oksasatya/course-identity/pkg/pii"
	"github.com/oksasatya/course-identity/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx := context.Background()

	pool, err := pginfra.NewPool(ctx, pginfra.PoolConfig{
		DSN:         cfg.PostgresDSN(),
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		MaxConnLife: cfg.DBMaxConnLife,
	})
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pginfra.Migrate(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	rdb := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer func() { _ = rdb.Close() }()
	if err := helpers.RedisPing(ctx, rdb); err != nil {
		logger.WithError(err).Warn("redis not reachable at startup; logins will fail until it is")
	}

	gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
	if err != nil {
		// avatars are optional; UploadAvatar reports storage as unavailable
		logger.WithError(err).Warn("GCS client unavailable")
	} else {
		defer func() { _ = gcsClient.Close() }()
	}

	es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		logger.WithError(err).Warn("elasticsearch client unavailable")
	} else if err := helpers.EnsureUsersIndex(ctx, es, cfg.ESUsersIndex); err != nil {
		// directory search degrades; indexing errors are logged per write
		logger.WithError(err).WithField("index", cfg.ESUsersIndex).Warn("elasticsearch users index not ready")
	}

	pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
	if err != nil {
		// invites are still created; their emails fail and are logged
		logger.WithError(err).Error("rabbitmq unavailable, invite emails will not be queued")
	} else {
		pub.AppID = cfg.AppName
		defer pub.Close()
	}

	normalizer, err := phone.NewNormalizer(cfg.PhoneDefaultRegion, cfg.PhoneDefaultCallingCode)
	if err != nil {
		log.Fatalf("phone normalizer: %v", err)
	}
	// phone indexes are derived from the normalized number so lookups match
	vault := buildVault(cfg, logger, pii.WithCanonicalizer(pii.FieldPhone, normalizer.Canonical))

	users := pginfra.NewUserRepository(pool)
	verifier := verification.New(verification.Options{
		Credentials: verification.Credentials{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			ServiceSID: cfg.TwilioVerifyServiceSID,
		},
		Timeout: cfg.VerificationTimeout,
		Channel: cfg.VerificationChannel,
	}, normalizer, application.NewPhoneDirectory(users, vault), logger)

	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)

	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetPGPool(pool)
	container.SetRedis(rdb)
	container.SetGCS(gcsClient)
	container.SetES(es)
	container.SetRabbitPub(pub)
	container.SetJWT(jwtManager)
	container.SetVault(vault)
	container.SetNormalizer(normalizer)
	container.SetVerifier(verifier)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled {
		r.Use(gin.Logger())
	}

	reg := router.NewRegistry(r, logger)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		helpers.LogInfo(logger, "server starting", logrus.Fields{
			"port":              cfg.Port,
			"verification_mode": verifier.Mode(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Info("server exited properly")
}

// buildVault returns nil when a PII key is missing or malformed. A nil vault
// fails every seal, open and index call, so no PII is stored or looked up.
func buildVault(cfg *config.Config, logger *logrus.Logger, opts ...pii.VaultOption) *pii.Vault {
	master, err := pii.ParseKey(cfg.PIIIndexKey)
	if err != nil {
		logger.WithError(err).Error("PII_INDEX_KEY unusable; PII operations will fail")
		return nil
	}
	indexer, err := pii.NewBlindIndexer(master)
	if err != nil {
		logger.WithError(err).Error("PII_INDEX_KEY unusable; PII operations will fail")
		return nil
	}
	encKey, err := pii.ParseKey(cfg.PIIEncryptionKey)
	if err != nil {
		logger.WithError(err).Error("PII_ENCRYPTION_KEY unusable; PII operations will fail")
		return nil
	}
	vault, err := pii.NewVault(encKey, indexer, opts...)
	if err != nil {
		logger.WithError(err).Error("PII_ENCRYPTION_KEY unusable; PII operations will fail")
		return nil
	}
	return vault
}
