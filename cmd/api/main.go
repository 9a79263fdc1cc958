package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studentdash/internal/attendance"
	"studentdash/internal/auth"
	"studentdash/internal/civil"
	"studentdash/internal/cloudinary"
	"studentdash/internal/config"
	"studentdash/internal/dashboard"
	"studentdash/internal/dataservice"
	"studentdash/internal/handler"
	"studentdash/internal/httpmiddleware"
	"studentdash/internal/queue"
	"studentdash/internal/store"
	"studentdash/internal/worker"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

// backend builds the data service selected by DATA_BACKEND and a readiness probe for it.
func backend(ctx context.Context, cfg config.App) (dataservice.Service, func(context.Context) error, func(), error) {
	if cfg.DataBackend == config.BackendPostgres {
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		pg := dataservice.NewPostgres(db.Client)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return pg, db.Client.PingContext, func() { _ = db.Close() }, nil
	}
	client := dataservice.NewClient(cfg.DataServiceURL, cfg.DataServiceToken, cfg.DataServiceTimeout)
	return client, client.Health, func() {}, nil
}

func runHTTP(cfg config.App) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	loc := civil.LoadZone(cfg.Timezone)

	base, probe, closeBackend, err := backend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()
	log.Printf("data backend: %s", cfg.DataBackend)

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("warning: redis not reachable at %s, counters are read uncached", cfg.RedisAddr)
	}
	cached := dataservice.NewCached(base, redisClient.Client, cfg.CacheTTL)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(256)
		// no separate worker process shares an in-memory queue
		go func() {
			if err := worker.New(cached).Run(ctx, q); err != nil {
				log.Printf("in-process worker stopped: %v", err)
			}
		}()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	}

	tracker := dashboard.NewTracker(attendance.NewCalculator(cached, cfg.DataServiceTimeout))
	defer tracker.Close()
	dash := dashboard.NewBuilder(cached, tracker, loc)
	att := attendance.NewService(cached, q, loc)

	sched := dashboard.NewScheduler(dash, tracker, cfg.RolloverSchedule, loc, cfg.DataServiceTimeout*3)
	if err := sched.Start(); err != nil {
		return err
	}
	defer func() { <-sched.Stop().Done() }()

	// Cloudinary client (nil when not configured)
	var cdnClient *cloudinary.Client
	if cfg.CloudinaryCloud != "" && cfg.CloudinaryKey != "" && cfg.CloudinarySecret != "" {
		cdnClient = cloudinary.New(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloud)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/readyz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/readyz", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		backendErr := probe(pctx)
		redisHealthy := redisClient.Healthy(pctx)
		status := http.StatusOK
		if backendErr != nil {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"backend": backendErr == nil, "redis": redisHealthy})
	})

	limiter := httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	h := handler.New(dash, att, cached, cdnClient, cfg.MaxUploadBytes)
	h.Register(r, auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer), limiter.GinMiddleware())

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
