package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/service/metrics"
	"SignalForge/internal/service/ratelimit"
	xhttp "SignalForge/pkg/http"
	xlogger "SignalForge/pkg/logger"
	"SignalForge/pkg/util"
)

// WeightSource is the read side of the weight store.
type WeightSource interface {
	Snapshot() []models.SignalWeight
	Get(sourceID string) (models.SignalWeight, bool)
}

// EngineStatusProvider reports live engine state.
type EngineStatusProvider interface {
	Status() models.EngineStatus
}

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// StatusHandler serves read-only views of weights, engine state and consensus history.
type StatusHandler struct {
	logger  *xlogger.Logger
	weights WeightSource
	engine  EngineStatusProvider
	archive domrepo.ConsensusArchive
	checks  map[string]HealthCheck
	rl      *ratelimit.Limiter
	now     func() time.Time
}

type Option func(*StatusHandler)

// WithArchive enables the consensus history endpoint.
func WithArchive(a domrepo.ConsensusArchive) Option {
	return func(h *StatusHandler) { h.archive = a }
}

// WithHealthCheck adds a dependency to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(h *StatusHandler) { h.checks[name] = check }
}

func WithNow(now func() time.Time) Option {
	return func(h *StatusHandler) { h.now = now }
}

func NewStatusHandler(logger *xlogger.Logger, weights WeightSource, engine EngineStatusProvider, opts ...Option) *StatusHandler {
	metrics.Register()
	h := &StatusHandler{
		logger:  logger,
		weights: weights,
		engine:  engine,
		checks:  map[string]HealthCheck{},
		rl:      ratelimit.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = xlogger.Nop()
	}
	return h
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	g := e.Group("/api", h.rateLimit)
	g.GET("/weights", h.Weights)
	g.GET("/weights/:source", h.Weight)
	g.GET("/engine", h.Engine)
	if h.archive != nil {
		g.GET("/consensus/:token", h.Consensus)
	}
}

// rateLimit allows 20 requests per second per client with bursts of 40.
func (h *StatusHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.rl.Allow(c.RealIP(), 40, 20) {
			metrics.APIErrors.WithLabelValues("rate_limited").Inc()
			return xhttp.ErrorResponse(c, xhttp.RateLimitedError())
		}
		return next(c)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// Weights lists current source weights.
func (h *StatusHandler) Weights(c echo.Context) error {
	defer observe("weights", time.Now())
	req := &models.WeightsQuery{}
	if err := xhttp.ReadAndValidateRequest(c, req); err != nil {
		metrics.APIErrors.WithLabelValues("weights").Inc()
		return xhttp.ErrorResponse(c, err)
	}
	ws := h.weights.Snapshot()
	sortWeights(ws, req.Sort)
	total := int64(len(ws))
	if len(ws) > req.Limit {
		ws = ws[:req.Limit]
	}
	return xhttp.ListResponse(c, ws, total)
}

func sortWeights(ws []models.SignalWeight, by string) {
	switch by {
	case "source":
		sort.SliceStable(ws, func(i, j int) bool { return ws[i].SourceID < ws[j].SourceID })
	case "observations":
		sort.SliceStable(ws, func(i, j int) bool { return ws[i].Observations > ws[j].Observations })
	default:
		sort.SliceStable(ws, func(i, j int) bool { return ws[i].Weight > ws[j].Weight })
	}
}

// Weight returns one source weight.
func (h *StatusHandler) Weight(c echo.Context) error {
	defer observe("weight", time.Now())
	id := c.Param("source")
	w, ok := h.weights.Get(id)
	if !ok {
		metrics.APIErrors.WithLabelValues("weight").Inc()
		return xhttp.ErrorResponse(c, xhttp.NotFoundErrorf("source %q has no weight", id).WithParam("source_id", id))
	}
	return xhttp.SuccessResponse(c, w)
}

// Engine returns shard level engine status.
func (h *StatusHandler) Engine(c echo.Context) error {
	defer observe("engine", time.Now())
	return xhttp.SuccessResponse(c, h.engine.Status())
}

// Consensus returns archived results of a token, newest first.
func (h *StatusHandler) Consensus(c echo.Context) error {
	defer observe("consensus", time.Now())
	req := &models.ConsensusQuery{}
	if err := xhttp.ReadAndValidateRequest(c, req); err != nil {
		metrics.APIErrors.WithLabelValues("consensus").Inc()
		return xhttp.ErrorResponse(c, err)
	}
	since, ok := util.ParseTime(req.Since)
	if !ok {
		since = h.now().Add(-24 * time.Hour)
	}
	rs, err := h.archive.Recent(c.Request().Context(), util.NormalizeToken(req.Token), since, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues("consensus").Inc()
		h.logger.Error("api.consensus_failed", xlogger.String("token", req.Token), xlogger.Error(err))
		return xhttp.ErrorResponse(c, xhttp.InternalError("consensus archive unavailable").WithError(err))
	}
	out := make([]models.ConsensusMessage, 0, len(rs))
	for _, r := range rs {
		out = append(out, models.NewConsensusMessage(r))
	}
	return xhttp.ListResponse(c, out, int64(len(out)))
}

// Health reports 200 when every dependency answers, 503 otherwise.
func (h *StatusHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	res := models.HealthStatus{Status: "ok", Dependencies: map[string]string{}}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			res.Status = "degraded"
			res.Dependencies[name] = err.Error()
			continue
		}
		res.Dependencies[name] = "ok"
	}
	if res.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, res)
	}
	return xhttp.SuccessResponse(c, res)
}
