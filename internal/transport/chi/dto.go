package chi

// RouteRequest is the body of POST /v1/route.
type RouteRequest struct {
	Query string `json:"query" validate:"required,max=4000"`
}

// RouteResponse is the routed answer.
type RouteResponse struct {
	Text        string   `json:"text"`
	Source      string   `json:"source"`
	Confidence  float64  `json:"confidence"`
	MatchedTags []string `json:"matched_tags"`
	Suggestions []string `json:"suggestions,omitempty"`
	Sources     []string `json:"sources,omitempty"`
}

// StageStatsResponse holds latency aggregates in milliseconds.
type StageStatsResponse struct {
	Count   int64   `json:"count"`
	AvgMs   float64 `json:"avg_ms"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
	TotalMs float64 `json:"total_ms"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Since          int64                         `json:"since"`
	Stages         map[string]StageStatsResponse `json:"stages"`
	Decisions      map[string]int64              `json:"decisions"`
	TotalDecisions int64                         `json:"total_decisions"`
	CacheHitRate   float64                       `json:"cache_hit_rate"`
	CacheEntries   *int64                        `json:"cache_entries"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string            `json:"status"`
	Checks            map[string]string `json:"checks"`
	KnowledgePassages *int64            `json:"knowledge_passages,omitempty"`
}

// ErrorResponse is returned for every non-2xx answer.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorCode is a stable machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeValidationFailed ErrorCode = "validation_failed"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeNotFound         ErrorCode = "not_found"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)
