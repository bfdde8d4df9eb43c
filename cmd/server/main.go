package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cgillinger/facebook-stats/internal/api"
	"github.com/cgillinger/facebook-stats/internal/app"
	"github.com/cgillinger/facebook-stats/internal/config"
	"github.com/cgillinger/facebook-stats/internal/inbox"
	"github.com/cgillinger/facebook-stats/internal/jobs"
	"github.com/cgillinger/facebook-stats/internal/mapping"
	"github.com/cgillinger/facebook-stats/internal/pipeline"
	"github.com/cgillinger/facebook-stats/internal/pkg/distlock"
	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
	"github.com/cgillinger/facebook-stats/internal/repository/postgres"
	"github.com/cgillinger/facebook-stats/internal/storage"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

const mappingLockKey = "fbstats:mapping:edit"

func fatal(msg string, fields ...interface{}) {
	logger.Error(msg, fields...)
	os.Exit(1)
}

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %w", port, addr, err)
	}
	return ln.Close()
}

func openDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

func openRedis(ctx context.Context, url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, using in-memory jobs and database or local locks", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected", "addr", opts.Addr)
	return client
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	if _, err := os.Stat(*configPath); err != nil {
		*configPath = ""
	}
	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatal("failed to load config", "error", err)
	}
	if level, ok := logger.ParseLevel(cfg.Logging.Level); ok {
		logger.SetLevel(level)
	}
	logger.SetRedact(cfg.Logging.RedactSecrets())

	host, port := cfg.Server.GetHost(), cfg.Server.Port
	if err := checkPortAvailable(host, port); err != nil {
		fatal("pre-flight check failed", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		db    *sql.DB
		store storage.Backend
	)
	if cfg.Storage.Type == "postgres" {
		if cfg.Storage.DatabaseURL == "" {
			fatal("storage.database_url is required for postgres storage")
		}
		logger.Info("connecting to postgres", "dsn", logger.RedactDSN(cfg.Storage.DatabaseURL))
		if db, err = openDatabase(ctx, cfg.Storage.DatabaseURL); err != nil {
			fatal("failed to connect to database", "error", err)
		}
		defer db.Close()
		version, err := postgres.Migrate(db)
		if err != nil {
			fatal("migrations failed", "error", err)
		}
		logger.Info("database schema ready", "version", version)
		store = postgres.NewDocumentRepo(db)
	} else if store, err = storage.New(ctx, cfg.Storage); err != nil {
		fatal("failed to initialize storage", "type", cfg.Storage.Type, "error", err)
	}

	// Redis
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient = openRedis(ctx, cfg.Redis.URL)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Mapping table
	required, err := app.RequiredFields(cfg.Pipeline.RequiredFields)
	if err != nil {
		fatal("invalid pipeline config", "error", err)
	}
	mappingStore, err := mapping.NewStore(mapping.DefaultTable())
	if err != nil {
		fatal("failed to build mapping table", "error", err)
	}
	mappings := mapping.NewService(mappingStore, store, func() distlock.DistLock {
		return distlock.NewLock(redisClient, db, mappingLockKey, 30*time.Second)
	})
	if err := mappings.Load(ctx, required); err != nil {
		fatal("failed to load mapping table", "error", err)
	}

	// Pipeline session
	opts, err := app.SessionOptions(cfg.Pipeline, mappingStore)
	if err != nil {
		fatal("invalid pipeline config", "error", err)
	}
	opts.OnSnapshot = app.SaveSnapshots(store, 30*time.Second)
	session, err := pipeline.NewSession(opts)
	if err != nil {
		fatal("failed to create session", "error", err)
	}
	session.Start()

	// Job tracking
	var tracker jobs.Tracker = jobs.NewMemoryTracker(cfg.Redis.JobTTL())
	if redisClient != nil {
		tracker = jobs.NewRedisTracker(redisClient, cfg.Redis.JobTTL())
	}

	handlers := api.NewHandlers(session, mappings, tracker)
	handlers.SetStorage(store)
	handlers.SetMaxUploadBytes(cfg.Server.MaxUploadBytes())
	handlers.SetAbortOnMissing(cfg.Pipeline.AbortOnMissingRequired)

	// S3 inbox
	var (
		poller *inbox.Poller
		bucket api.BucketHeader
	)
	if cfg.Inbox.Enabled {
		if cfg.Inbox.S3Bucket == "" {
			fatal("inbox.s3_bucket is required when the inbox is enabled")
		}
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Inbox.S3Region, cfg.Inbox.AWSProfile, cfg.Storage.AccessKeyID, cfg.Storage.SecretKey)
		if err != nil {
			fatal("failed to load AWS config for inbox", "error", err)
		}
		s3Client := s3.NewFromConfig(awsCfg)
		bucket = s3Client
		poller = inbox.NewPoller(inbox.NewS3Store(s3Client, cfg.Inbox.S3Bucket), session, inbox.Config{
			Prefix:   cfg.Inbox.Prefix,
			Interval: cfg.Inbox.Interval(),
			Jobs:     tracker,
		})
		poller.Start()
		handlers.SetInbox(poller)
		logger.Info("inbox poller started", "bucket", cfg.Inbox.S3Bucket, "prefix", cfg.Inbox.Prefix, "interval", cfg.Inbox.Interval().String())
	}

	health := api.NewHealthChecker(db, redisClient, bucket, cfg.Inbox.S3Bucket)
	health.SetQueue(session.QueueLen, cfg.Pipeline.QueueSize)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           api.SetupRoutes(handlers, health, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "addr", server.Addr, "storage", cfg.Storage.Type)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal("server error", "error", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if poller != nil {
		poller.Stop()
	}
	session.Stop()
	logger.Info("server stopped")
}
