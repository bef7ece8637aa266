// Command fingerprintd runs the long-lived extraction daemon: it owns
// the worker pool, both database connections, and an optional minimal
// HTTP surface for health checks and Prometheus scraping.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/matiaszanolli/auralis/internal/analysisclient"
	"github.com/matiaszanolli/auralis/internal/analyzer"
	"github.com/matiaszanolli/auralis/internal/cache"
	"github.com/matiaszanolli/auralis/internal/config"
	"github.com/matiaszanolli/auralis/internal/database"
	"github.com/matiaszanolli/auralis/internal/logger"
	"github.com/matiaszanolli/auralis/internal/metrics"
	"github.com/matiaszanolli/auralis/internal/pipeline"
	"github.com/matiaszanolli/auralis/internal/repository"
	"github.com/matiaszanolli/auralis/internal/telemetry"
	"go.uber.org/zap"
)

func main() {
	cfg := loadConfig()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	metrics.Initialize()

	tracerProvider, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  cfg.OTELServiceName,
		Environment:  cfg.OTELEnvironment,
		OTLPEndpoint: cfg.OTELEndpoint,
		Enabled:      cfg.OTELEnabled,
		SamplingRate: cfg.OTELSamplingRate,
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize tracer", zap.Error(err))
	}
	if tracerProvider != nil {
		defer tracerProvider.Shutdown(context.Background())
	}

	pg, err := database.Postgres(postgresDSN(cfg))
	if err != nil {
		logger.Log.Fatal("failed to connect to postgres", zap.Error(err))
	}

	sqliteDB, err := database.SQLite(cfg.PersistentCachePath)
	if err != nil {
		logger.Log.Fatal("failed to open persistent cache", zap.Error(err))
	}

	persistentCache := cache.NewPersistent(sqliteDB, cfg.PersistentCacheMaxEntries, cfg.PersistentCacheMaxBytes)
	if err := persistentCache.Migrate(); err != nil {
		logger.Log.Fatal("failed to migrate persistent cache", zap.Error(err))
	}

	memoryCache := cache.NewMemory(cfg.MemoryCacheCapacity)
	fingerprintRepo := repository.New(pg)
	localAnalyzer := analyzer.New()

	var remoteClient *analysisclient.Client
	if cfg.RemoteAnalyzerURL != "" {
		remoteClient = analysisclient.New(cfg.RemoteAnalyzerURL, cfg.RemoteAnalyzerTimeout, cfg.HealthCheckTimeout, cfg.HealthCheckCacheTTL)
	}

	deps := pipeline.Dependencies{
		Analyzer:       localAnalyzer,
		Repository:     fingerprintRepo,
		Memory:         memoryCache,
		Persistent:     persistentCache,
		SidecarEnabled: cfg.SidecarEnabled,
	}
	if remoteClient != nil {
		deps.RemoteClient = remoteClient
	}

	pool := pipeline.NewPool(deps, cfg.Workers, cfg.QueueCapacity, cfg.EnqueueTimeout, cfg.JobDeadline)
	pool.Start()

	server := newHTTPServer(cfg.HTTPAddr, pg, sqliteDB)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}()

	logger.Log.Info("fingerprintd started",
		zap.Int("workers", cfg.Workers),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("remote_analyzer", remoteClient != nil),
	)

	waitForShutdownSignal()

	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("http server shutdown error", zap.Error(err))
	}
	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn("pipeline shutdown error", zap.Error(err))
	}
}

func loadConfig() *config.Config {
	_ = godotenv.Load()
	return config.Load()
}

func postgresDSN(cfg *config.Config) string {
	if cfg.DatabaseURL != "" {
		return cfg.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

// newHTTPServer builds the daemon's minimal surface: a liveness check
// and a Prometheus scrape endpoint. Nothing here is on the extraction
// hot path - the worker pool runs entirely independently of this
// router.
func newHTTPServer(addr string, pg, sqliteDB *gorm.DB) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/healthz", func(c *gin.Context) { healthz(c, pg, sqliteDB) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &http.Server{
		Addr:    addr,
		Handler: router,
	}
}

// healthz reports liveness only once both the Postgres repository and
// the SQLite persistent cache answer a ping within a short deadline -
// the two dependencies a job can't make progress without.
func healthz(c *gin.Context, pg, sqliteDB *gorm.DB) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := pingDB(ctx, pg); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "postgres", "error": err.Error()})
		return
	}
	if err := pingDB(ctx, sqliteDB); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "component": "sqlite", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func pingDB(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func waitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
