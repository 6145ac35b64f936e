package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/reloved/flutter-openwrap-sdk/internal/channel"
	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/internal/middleware"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// RouterConfig holds everything the HTTP transport serves
type RouterConfig struct {
	Handler channel.Handler
	Views   ViewProvider
	Events  *EventStream

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // nil means the default gatherer

	Checks    map[string]Check
	SizeLimit *middleware.SizeLimitConfig
}

// NewRouter builds the gin engine of the HTTP transport
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.Log.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("HTTP handler panicked")
		c.AbortWithStatus(http.StatusInternalServerError)
	}))
	r.Use(middleware.Logging())
	r.Use(middleware.Metrics(cfg.Metrics))

	health := NewHealthHandler(cfg.Checks)
	r.GET("/health", health.Health)
	r.GET("/health/ready", health.Ready)

	metricsHandler := metrics.Handler()
	if cfg.Gatherer != nil {
		metricsHandler = metrics.HandlerFor(cfg.Gatherer)
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	v1 := r.Group("/v1")
	v1.Use(middleware.NewSizeLimiter(cfg.SizeLimit).Handler())

	ch := NewChannelHandler(cfg.Handler, cfg.Events, cfg.Metrics)
	v1.POST("/channel/:method", ch.Call)
	v1.GET("/channel/events", ch.Events)

	if cfg.Views != nil {
		v1.GET("/views/:adId", NewViewHandler(cfg.Views).Get)
	}

	return r
}
