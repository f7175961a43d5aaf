package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"MarketForge/internal/domain/models"
	domrepo "MarketForge/internal/domain/repository"
	icache "MarketForge/internal/service/cache"
	"MarketForge/internal/service/metrics"
	"MarketForge/internal/service/ratelimit"
	"MarketForge/internal/usecase"
	xhttp "MarketForge/pkg/http"
	applogger "MarketForge/pkg/logger"
	"MarketForge/pkg/queue"
	"MarketForge/pkg/util"

	"github.com/labstack/echo/v4"
)

const (
	dateLayout   = "2006-01-02"
	runIDLayout  = "20060102T150405Z"
	featuresTTL  = 30 * time.Second
	driftTTL     = 30 * time.Second
	runRateCap   = 2
	runRefillSec = 0.1
)

// PipelineHandler exposes run triggering and read endpoints over Echo.
// At most one pipeline run executes at a time; concurrent triggers are
// rejected rather than queued behind each other.
type PipelineHandler struct {
	runs     queue.QueueService
	tracker  *usecase.RunTracker
	queries  *usecase.QueriesUseCase
	training *usecase.TrainingUseCase
	bars     domrepo.BarStore
	ds       domrepo.DatasetStore
	hub      *LiveHub
	cache    icache.BytesCache
	rl       *ratelimit.Limiter
	l        *applogger.Logger
}

func NewPipelineHandler(
	runs queue.QueueService,
	tracker *usecase.RunTracker,
	queries *usecase.QueriesUseCase,
	training *usecase.TrainingUseCase,
	bars domrepo.BarStore,
	ds domrepo.DatasetStore,
	hub *LiveHub,
) *PipelineHandler {
	metrics.Register()
	return &PipelineHandler{
		runs:     runs,
		tracker:  tracker,
		queries:  queries,
		training: training,
		bars:     bars,
		ds:       ds,
		hub:      hub,
		rl:       ratelimit.New(),
	}
}

func (h *PipelineHandler) SetCache(c icache.BytesCache) { h.cache = c }

// SetLogger injects a structured logger.
func (h *PipelineHandler) SetLogger(l *applogger.Logger) { h.l = l }

func (h *PipelineHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/runs", h.TriggerRun)
	g.GET("/runs/latest", h.LatestRun)
	g.GET("/features", h.Features)
	g.GET("/drift", h.Drift)
	g.POST("/train", h.Train)
	g.GET("/live", h.hub.Serve)
	e.GET("/healthz", h.Health)
}

// TriggerRun starts an asynchronous pipeline run and returns its id. A run
// already in flight yields 409.
func (h *PipelineHandler) TriggerRun(c echo.Context) error {
	start := time.Now()
	defer func() { metrics.APILatency.WithLabelValues("runs").Observe(time.Since(start).Seconds()) }()

	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		return xhttp.BadRequestResponse(c, "from must be YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, "to must be YYYY-MM-DD")
	}
	if from.After(to) {
		return xhttp.BadRequestResponse(c, "from must be <= to")
	}
	if !h.rl.Allow(c.RealIP()+":runs", runRateCap, runRefillSec) {
		if h.l != nil {
			h.l.Warn("run trigger rate_limited", applogger.String("remote", c.RealIP()))
		}
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limited")
	}

	if !h.tracker.TryStart() {
		return xhttp.DataResponse(c, http.StatusConflict, "run already in progress")
	}

	runID := "run-" + time.Now().UTC().Format(runIDLayout)
	params := models.RunParams{RunID: runID, From: from, To: to, Symbols: req.Symbols}
	if err := h.runs.PublishMessage(c.Request().Context(), usecase.RunJobType, params); err != nil {
		h.tracker.Abort()
		metrics.APIErrors.WithLabelValues("runs").Inc()
		if h.l != nil {
			h.l.Error("run enqueue failed", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.DataResponse(c, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (h *PipelineHandler) LatestRun(c echo.Context) error {
	latest, ok := h.tracker.Latest()
	if !ok {
		if h.tracker.Running() {
			return xhttp.DataResponse(c, http.StatusAccepted, "run in progress")
		}
		return xhttp.NotFoundResponse(c, "no completed runs")
	}
	return xhttp.SuccessResponse(c, latest)
}

func (h *PipelineHandler) Features(c echo.Context) error {
	start := time.Now()
	endpoint := "features"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.FeaturesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	cacheKey := fmt.Sprintf("features:%s:%s:%s:%d", req.Symbol, req.From, req.To, req.Limit)
	if b, ok := h.cached(endpoint, cacheKey); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.queries.GetFeatures(c.Request().Context(), usecase.GetFeaturesParams{
		Symbol: req.Symbol,
		From:   from,
		To:     to,
		Limit:  req.Limit,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("features query error", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	h.store(endpoint, cacheKey, res, featuresTTL)
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineHandler) Drift(c echo.Context) error {
	start := time.Now()
	endpoint := "drift"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.DriftRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cacheKey := "drift:" + req.RunID
	if b, ok := h.cached(endpoint, cacheKey); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	res, err := h.queries.GetDrift(c.Request().Context(), req.RunID)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("drift query error", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	h.store(endpoint, cacheKey, res, driftTTL)
	return xhttp.SuccessResponse(c, res)
}

// Train fits a model on the persisted dataset of a run and registers it.
func (h *PipelineHandler) Train(c echo.Context) error {
	start := time.Now()
	endpoint := "train"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	train, test, err := h.ds.GetDataset(c.Request().Context(), req.RunID)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("dataset read error", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	result, err := h.training.Train(c.Request().Context(), train, test)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.l != nil {
			h.l.Error("training error", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, result)
}

func (h *PipelineHandler) Health(c echo.Context) error {
	if err := h.bars.Health(c.Request().Context()); err != nil {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, err.Error())
	}
	return xhttp.SuccessResponse(c, "ok")
}

// cached returns the stored response envelope for key, if present.
func (h *PipelineHandler) cached(endpoint, key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		if h.l != nil {
			h.l.Warn(endpoint+" cache_get_error", applogger.Error(err))
		}
		return nil, false
	}
	if ok && h.l != nil {
		h.l.Debug(endpoint+" cache_hit", applogger.String("key", key))
	}
	return b, ok
}

// store caches the full response envelope so hits replay byte-identical bodies.
func (h *PipelineHandler) store(endpoint, key string, data interface{}, ttl time.Duration) {
	if h.cache == nil {
		return
	}
	b, err := json.Marshal(xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
	if err != nil {
		return
	}
	if err := h.cache.SetBytes(key, b, ttl); err != nil && h.l != nil {
		h.l.Warn(endpoint+" cache_set_error", applogger.Error(err))
	}
}

func parseRange(fromStr, toStr string) (from, to time.Time, err error) {
	to = time.Now().UTC()
	if toStr != "" {
		var ok bool
		if to, ok = util.ParseTime(toStr); !ok {
			return from, to, fmt.Errorf("to must be a date, RFC3339, or unix seconds")
		}
	}
	if fromStr != "" {
		var ok bool
		if from, ok = util.ParseTime(fromStr); !ok {
			return from, to, fmt.Errorf("from must be a date, RFC3339, or unix seconds")
		}
	}
	from, to = util.AlignFromTo(from, to, "1h")
	return from, to, nil
}
