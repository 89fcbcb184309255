package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/config"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/handler"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "github.com/kostiantynkovalchuk/DESCRIBER/docs"
	httpSwagger "github.com/swaggo/http-swagger"
)

// newRouter builds the full middleware chain. CORS runs before Throttle and
// Timeout so their 429 and 504 responses are readable by the browser.
func newRouter(cfg config.ServerConfig, d *handler.DescribeHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use([]func(http.Handler) http.Handler{
		middleware.Logger,
		handler.CORS(cfg.AllowOrigin),
		middleware.Recoverer,
		middleware.Throttle(cfg.ThrottleLimit),
		middleware.Timeout(cfg.Timeout),
		metrics.Middleware,
	}...)

	r.Mount("/api", d.Routes())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Handle("/metrics", promhttp.Handler())
	return r
}
