package router

import (
	"fmt"
	"net/http"
	"time"

	"aerorelay-service/internal/interface/handler"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const allowedHeaders = "authorization, x-client-info, apikey, content-type"

// NewHTTPRouter wires the JSON endpoints, health and metrics into a gin engine
func NewHTTPRouter(h *handler.Handler, m *metrics.Metrics, log logger.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(Recovery(log), CORS(), Metrics(m))

	engine.GET("/health", h.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	functions := engine.Group("/functions/v1")
	functions.POST("/check-flight-statuses", h.CheckFlightStatuses)
	functions.POST("/process-flight-status", h.ProcessFlightStatus)
	functions.POST("/flight-phase-notification", h.FlightPhaseNotification)
	functions.POST("/flight-status-notification", h.FlightStatusNotification)
	functions.POST("/flight-update-notification", h.FlightUpdateNotification)
	functions.POST("/send-push-notification", h.SendPushNotification)
	functions.POST("/send-batch-notifications", h.SendBatchNotifications)

	return engine
}

// CORS answers preflight requests and tags every response for browser callers
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		if c.Request.Method == http.MethodOptions {
			c.String(http.StatusOK, "ok")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Metrics records request count and latency per route
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		method := c.Request.Method
		status := fmt.Sprintf("%d", c.Writer.Status())

		m.HTTPRequests.WithLabelValues(endpoint, status, method).Inc()
		m.HTTPRequestDuration.WithLabelValues(endpoint, method).Observe(time.Since(start).Seconds())
	}
}

// Recovery turns a handler panic into the regular 500 body
func Recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error("Recovered from handler panic", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": fmt.Sprint(recovered),
		})
	})
}
