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

	"objgate/bootstrap"
	"objgate/config"
	"objgate/controllers"
	"objgate/metrics"
	"objgate/router"
	"objgate/services/objects"
	"objgate/storage"
	"objgate/tracing"
	"objgate/utils"

	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Printf("Fatal: %v", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if closer := utils.SetupLogging(cfg.LogFile); closer != nil {
		defer closer.Close()
	}
	log.Printf("objgate %s starting up...", version)

	shutdownTracing, err := tracing.Init(context.Background(), cfg.Tracing, utils.NewCustomLogger("TRACING"))
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("Warning: tracing shutdown: %v", err)
		}
	}()

	var m *metrics.Metrics
	var observer metrics.StorageObserver = metrics.NopObserver
	if cfg.MetricsEnabled {
		m = metrics.New()
		observer = m.Storage
	}

	// Prepare the bucket before accepting any request
	bootCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := bootstrap.Run(bootCtx, bootstrap.Options{
		Storage: cfg.Storage,
		NewClient: func(sc config.StorageConfig) (storage.ObjectStorage, error) {
			return storage.NewMinioStorage(sc, storage.Options{
				PartSize: uint64(cfg.UploadPartSizeMB) << 20,
				Logger:   utils.NewCustomLogger("STORAGE"),
				Observer: observer,
			})
		},
		VerifyConnectivity: cfg.VerifyConnectivity,
		ObjectExpiryDays:   cfg.ObjectExpiryDays,
		Logger:             utils.NewCustomLogger("BOOTSTRAP"),
	})
	cancel()
	if err != nil {
		return err
	}
	log.Printf("Storage ready, bucket: %s", cfg.Storage.Bucket)

	gin.SetMode(gin.ReleaseMode)

	svc := objects.NewService(store, cfg.Storage.Bucket, utils.NewCustomLogger("OBJECTS"))
	opts := router.Options{
		CorsOrigin:      cfg.CorsOrigin,
		UploadRateLimit: cfg.UploadRateLimit,
		RequestTimeout:  cfg.RequestTimeout,
		Metrics:         m,
		Logger:          utils.NewCustomLogger("HTTP"),
	}
	engine := router.NewEngine(opts)
	router.RegisterRoutes(engine, router.Controllers{
		Home:    controllers.NewHomeController(cfg.Storage.Bucket, cfg.PublicBaseURL),
		Objects: controllers.NewObjectController(svc, cfg.PublicBaseURL, cfg.MaxUploadMB<<20),
		Health:  controllers.NewHealthController(version, store),
	}, opts)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Printf("Received %s, shutting down...", sig)
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(ctx)
}
