package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"TokenVault/internal/core"
	"TokenVault/internal/observability"
	"TokenVault/internal/oracle"
	"TokenVault/internal/query"
)

// Server exposes the ledger over HTTP/JSON. Mutating and live-valuation
// requests are serialized through the engine dispatcher; historical queries
// read Postgres projections.
type Server struct {
	engine     *core.Engine
	dispatcher *core.Dispatcher
	queries    *query.Service
	feeds      *oracle.FeedCache
	health     *observability.HealthChecker
	log        zerolog.Logger
	metrics    *observability.Metrics
}

func New(
	engine *core.Engine,
	dispatcher *core.Dispatcher,
	queries *query.Service,
	feeds *oracle.FeedCache,
	health *observability.HealthChecker,
	log zerolog.Logger,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		engine:     engine,
		dispatcher: dispatcher,
		queries:    queries,
		feeds:      feeds,
		health:     health,
		log:        log,
		metrics:    metrics,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.observe())

	r.GET("/healthz", gin.WrapF(s.health.LivenessHandler))
	r.GET("/readyz", gin.WrapF(s.health.ReadinessHandler))

	v1 := r.Group("/v1")
	{
		v1.GET("/assets", s.listAssets)
		v1.POST("/assets", s.registerAsset)
		v1.GET("/assets/:id/limit", s.getLimit)
		v1.PUT("/assets/:id/limit", s.updateLimit)
		v1.PUT("/assets/:id/price-source", s.updatePriceSource)

		v1.POST("/deposits", s.deposit)
		v1.POST("/withdrawals", s.withdraw)
		v1.POST("/admin/emergency-withdrawals", s.emergencyWithdraw)

		v1.GET("/balances/:holder", s.listHolderBalances)
		v1.GET("/balances/:holder/:asset", s.getBalance)
		v1.GET("/balances/:holder/:asset/value", s.getCanonicalValue)

		v1.GET("/valuation/total", s.totalValue)
		v1.GET("/valuation/capacity", s.capacity)
		v1.GET("/valuation/convert", s.convert)

		v1.GET("/events", s.listEvents)
		v1.GET("/integrity", s.verifyIntegrity)
	}

	return r
}

// observe logs each request and records HTTP metrics.
func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())
		}

		evt := s.log.Info()
		if status >= 500 {
			evt = s.log.Error()
		} else if status >= 400 {
			evt = s.log.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("http request")
	}
}
