// Package chi exposes the router over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	gochi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
	domroute "github.com/kailas-cloud/semroute/internal/domain/route"
	domusage "github.com/kailas-cloud/semroute/internal/domain/usage"
	logpkg "github.com/kailas-cloud/semroute/internal/logger"
	"github.com/kailas-cloud/semroute/internal/metrics"
	healthuc "github.com/kailas-cloud/semroute/internal/usecase/health"
)

// maxBodyBytes caps request bodies; a 4000-character query fits comfortably.
const maxBodyBytes = 64 << 10

// Router answers queries.
type Router interface {
	Route(ctx context.Context, query string) domroute.Decision
}

// StatsReader returns usage statistics.
type StatsReader interface {
	GetUsageStats(ctx context.Context) domusage.Report
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server serves the HTTP API.
type Server struct {
	router        Router
	stats         StatsReader
	health        HealthChecker
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(router Router, stats StatsReader, health HealthChecker, logger *zap.Logger) *Server {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	s := &Server{
		router:   router,
		stats:    stats,
		health:   health,
		validate: v,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeValidationFailed),
	}
	return s
}

// Handler builds the chi router with the middleware stack.
func (s *Server) Handler(apiKeys []string) http.Handler {
	r := gochi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chimw.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r gochi.Router) {
		r.Post("/route", s.RouteQuery)
		r.Get("/stats", s.GetStats)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
	return r
}

// RouteQuery handles POST /v1/route.
func (s *Server) RouteQuery(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.handleDomainError(w, r, errEmptyQuery)
		return
	}

	d := s.router.Route(r.Context(), req.Query)
	s.log(r).Info("Query routed",
		zap.String("source", string(d.Source())),
		zap.Float64("confidence", d.Confidence()),
		zap.Strings("tags", d.MatchedTags()),
	)

	writeJSON(w, http.StatusOK, RouteResponse{
		Text:        d.Text(),
		Source:      string(d.Source()),
		Confidence:  d.Confidence(),
		MatchedTags: d.MatchedTags(),
		Suggestions: d.Suggestions(),
		Sources:     d.Sources(),
	})
}

// GetStats handles GET /v1/stats.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	report := s.stats.GetUsageStats(r.Context())

	stages := make(map[string]StageStatsResponse, len(domusage.Stages))
	for _, st := range domusage.Stages {
		ss := report.Stage(st)
		stages[string(st)] = StageStatsResponse{
			Count:   ss.Count(),
			AvgMs:   millis(ss.Avg()),
			MinMs:   millis(ss.Min()),
			MaxMs:   millis(ss.Max()),
			TotalMs: millis(ss.Total()),
		}
	}

	decisions := make(map[string]int64, 3)
	for _, src := range []domroute.Source{domroute.SourceCache, domroute.SourceKnowledge, domroute.SourceFallback} {
		decisions[string(src)] = report.Decisions(src)
	}

	resp := StatsResponse{
		Since:          report.Since().UnixMilli(),
		Stages:         stages,
		Decisions:      decisions,
		TotalDecisions: report.TotalDecisions(),
		CacheHitRate:   report.CacheHitRate(),
	}
	if n := report.CacheEntries(); n >= 0 {
		resp.CacheEntries = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	resp := HealthResponse{Status: string(report.Status), Checks: checks}
	if report.KnowledgePassages >= 0 {
		n := report.KnowledgePassages
		resp.KnowledgePassages = &n
	}
	writeJSON(w, httpStatus, resp)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) log(r *http.Request) *zap.Logger {
	return logpkg.FromContext(r.Context(), s.logger)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
