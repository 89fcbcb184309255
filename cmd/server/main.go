// @title Image Describer API
// @version 1.0
// @description Accessibility-focused image descriptions generated by a hosted vision model.
// @BasePath /
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/cache"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/config"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/handler"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.Default()

	describer, err := newDescriber(cfg, http.DefaultClient)
	if err != nil {
		log.Fatalf("upstream error: %v", err)
	}
	if err := describer.Configured(); err != nil {
		// Keep serving: every describe request reports the configuration error.
		logger.Printf("warning: %s: %v\n", describer.Name(), err)
	}

	describeService := service.NewDescribeService(logger, describer, cfg.Upstream, cfg.Describe)

	if cfg.CacheEnable {
		redisCache := cache.NewRedisCache(
			cfg.RedisConfig.Addr,
			cfg.RedisConfig.Password,
			cfg.RedisConfig.DB,
			cfg.RedisConfig.TTL,
		)
		defer redisCache.Close()
		if err := redisCache.Ping(ctx); err != nil {
			logger.Printf("redis ping failed, cache errors will be logged per request: %v\n", err)
		}
		describeService.SetCacheClient(redisCache)
		logger.Println("set redis as cache")
	}

	d := handler.NewDescribeHandler(describeService, logger, cfg.Server.MaxBodyBytes)

	r := newRouter(cfg.Server, d)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Printf("server started :%s (upstream %s)\n", cfg.Server.Port, describer.Name())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Println("server stopped")
}
