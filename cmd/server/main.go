package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/searchterm-optimizer/internal/api"
	"github.com/ignite/searchterm-optimizer/internal/cache"
	"github.com/ignite/searchterm-optimizer/internal/config"
	"github.com/ignite/searchterm-optimizer/internal/datanorm"
	"github.com/ignite/searchterm-optimizer/internal/metrics"
	"github.com/ignite/searchterm-optimizer/internal/pkg/distlock"
	"github.com/ignite/searchterm-optimizer/internal/pkg/logger"
	"github.com/ignite/searchterm-optimizer/internal/repository/postgres"
	"github.com/ignite/searchterm-optimizer/internal/service/report"
	"github.com/ignite/searchterm-optimizer/internal/storage"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %w", addr, err)
	}
	ln.Close()
	return nil
}

// withTimeouts appends connect and statement timeouts to a Postgres DSN
// unless the DSN already sets them.
func withTimeouts(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "connect_timeout") {
		dsn += sep + "connect_timeout=5"
		sep = "&"
	}
	if !strings.Contains(dsn, "statement_timeout") {
		dsn += sep + "options=-c%20statement_timeout%3D30000"
	}
	return dsn
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config.yaml")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	level, ok := logger.ParseLevel(cfg.Log.Level)
	if !ok {
		logger.Warn("unknown log level, using info", "level", cfg.Log.Level)
	}
	logger.SetLevel(level)
	log := logger.With("component", "server")

	if cfg.Database.URL == "" {
		log.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		log.Error("cannot bind", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	log.Info("connecting to database", "dsn", logger.RedactDSN(cfg.Database.URL))
	db, err := sql.Open("postgres", withTimeouts(cfg.Database.URL))
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime())

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	pingCancel()
	if err != nil {
		log.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	log.Info("database connected")

	checks := []api.HealthCheck{{Name: "postgres", Check: db.PingContext}}

	// Redis is optional: without it the summary cache is off and the
	// watcher falls back to PG advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			redisClient = redis.NewClient(&redis.Options{Addr: cfg.Redis.URL})
		} else {
			redisClient = redis.NewClient(opts)
		}
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis connection failed, cache disabled", "error", err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Info("redis connected")
			defer redisClient.Close()
			checks = append(checks, api.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}})
		}
		pingCancel()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	repo := postgres.NewReportRepo(db)
	registry.MustRegister(metrics.NewStoredReportsCollector(repo))

	// Report service
	svcOpts := []report.Option{
		report.WithRecorder(recorder),
		report.WithDefaults(cfg.Analysis),
	}
	if redisClient != nil {
		svcOpts = append(svcOpts, report.WithCache(cache.New(redisClient, cfg.Cache.TTL())))
	}
	archive, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Warn("report archive disabled", "error", err)
	} else if archive != nil {
		svcOpts = append(svcOpts, report.WithArchive(archive))
	}
	reports := report.NewService(repo, svcOpts...)

	handlerOpts := []api.HandlerOption{}

	// S3 inbox watcher and optional SQS notifications
	if cfg.DataNorm.Enabled {
		watcher, listener, err := startInbox(ctx, cfg, db, redisClient, reports, recorder)
		if err != nil {
			log.Error("inbox watcher not started", "error", err)
		} else {
			defer watcher.Stop()
			handlerOpts = append(handlerOpts, api.WithImports(watcher))
			checks = append(checks, api.HealthCheck{Name: "s3_inbox", Check: func(context.Context) error {
				if !watcher.Status().Healthy {
					return errors.New("last inbox listing failed")
				}
				return nil
			}})
			if listener != nil {
				go listener.Run(ctx)
			}
		}
	}

	handlers := api.NewHandlers(reports, cfg.Upload, cfg.Server.DefaultOrgID,
		append(handlerOpts, api.WithHealthChecks(checks...))...)
	server := api.NewServer(cfg.Server, handlers, registry)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			done <- syscall.SIGTERM
		}
	}()

	<-done
	log.Info("shutting down")

	// Cancel background tasks
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	log.Info("server stopped")
}

// startInbox builds and starts the S3 inbox watcher. The SQS listener is
// returned unstarted and is nil when no queue is configured.
func startInbox(ctx context.Context, cfg *config.Config, db *sql.DB, rdb *redis.Client,
	reports *report.Service, recorder *metrics.Metrics) (*datanorm.Watcher, *datanorm.SQSListener, error) {
	dn := cfg.DataNorm
	awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
		Region:          dn.S3Region,
		Profile:         dn.GetAWSProfile(),
		AccessKeyID:     dn.AWSAccessKeyID,
		SecretAccessKey: dn.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, nil, err
	}

	watcher := datanorm.NewWatcher(s3.NewFromConfig(awsCfg), db, reports, datanorm.Config{
		Bucket:      dn.S3Bucket,
		Region:      dn.S3Region,
		AWSProfile:  dn.GetAWSProfile(),
		Prefix:      dn.Prefix,
		OrgID:       dn.OrganizationID,
		Interval:    dn.Interval(),
		MaxRetries:  dn.MaxRetries,
		Concurrency: dn.Concurrency,
		MaxRows:     cfg.Upload.MaxRows,
	},
		datanorm.WithLock(distlock.NewLock(rdb, db, "searchterm:datanorm:cycle", 10*time.Minute)),
		datanorm.WithRecorder(recorder),
	)
	watcher.Start(ctx)
	logger.Info("inbox watcher started", "bucket", dn.S3Bucket, "prefix", dn.Prefix, "interval", dn.Interval())

	var listener *datanorm.SQSListener
	if dn.SQSQueueURL != "" {
		listener = datanorm.NewSQSListener(sqs.NewFromConfig(awsCfg), dn.SQSQueueURL, dn.S3Bucket, watcher)
	}
	return watcher, listener, nil
}
