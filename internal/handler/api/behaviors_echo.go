package api

import (
	"encoding/json"
	"net/http"
	"time"

	models "CollarPulse/internal/domain/models"
	icache "CollarPulse/internal/service/cache"
	"CollarPulse/internal/service/ratelimit"
	"CollarPulse/internal/usecase"
	xhttp "CollarPulse/pkg/http"
	xlogger "CollarPulse/pkg/logger"
	"CollarPulse/pkg/queue"

	"github.com/labstack/echo/v4"
)

const rulesetCacheKey = "api:ruleset"

// BehaviorsEchoHandler exposes the analysis and optimization API.
type BehaviorsEchoHandler struct {
	logger   *xlogger.Logger
	analyzer *usecase.BehaviorAnalyzerUseCase
	optim    *usecase.OptimizationUseCase
	events   *usecase.EventsUseCase
	feedback queue.QueueService
	rsCache  icache.BytesCache
	limiter  *ratelimit.Limiter
}

func NewBehaviorsEchoHandler(
	logger *xlogger.Logger,
	analyzer *usecase.BehaviorAnalyzerUseCase,
	optim *usecase.OptimizationUseCase,
	events *usecase.EventsUseCase,
	feedback queue.QueueService,
) *BehaviorsEchoHandler {
	return &BehaviorsEchoHandler{
		logger:   logger,
		analyzer: analyzer,
		optim:    optim,
		events:   events,
		feedback: feedback,
		rsCache:  icache.NewTTLCache(),
		limiter:  ratelimit.New(),
	}
}

// SetRulesetCache overrides the default in-process ruleset cache, e.g. with
// a Redis-backed one shared across instances.
func (h *BehaviorsEchoHandler) SetRulesetCache(c icache.BytesCache) {
	if c != nil {
		h.rsCache = c
	}
}

func (h *BehaviorsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/analyze", h.Analyze)
	g.POST("/optimize", h.Optimize)
	g.GET("/ruleset", h.RuleSet)
	g.GET("/events", h.Events)
	g.POST("/feedback", h.Feedback)
}

func (h *BehaviorsEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, ok := xhttp.ParseTime(req.From)
	if !ok {
		return xhttp.BadRequestResponse(c, "from must be RFC3339 or unix seconds")
	}
	to, ok := xhttp.ParseTime(req.To)
	if !ok {
		return xhttp.BadRequestResponse(c, "to must be RFC3339 or unix seconds")
	}

	res, err := h.analyzer.Analyze(c.Request().Context(), usecase.AnalyzeParams{
		CollarID: req.CollarID,
		From:     from,
		To:       to,
		Persist:  req.Persist,
	})
	if err != nil {
		h.logger.Error("analyze usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BehaviorsEchoHandler) Optimize(c echo.Context) error {
	// optimization runs are expensive; one every 30s with a small burst
	if !h.limiter.Allow("optimize", 2, 1.0/30) {
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "optimization rate limit exceeded")
	}

	req := &models.OptimizeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.optim.Optimize(c.Request().Context(), usecase.OptimizeParams{
		DryRun:           req.DryRun,
		TrialBudget:      req.OptimizationCalls,
		MinImprovement:   req.MinImprovement,
		MaxFeedbackItems: req.MaxFeedbackItems,
	})
	if err != nil {
		h.logger.Error("optimize usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if !req.DryRun {
		// rules may have changed
		_ = h.rsCache.SetBytes(rulesetCacheKey, nil, 0)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BehaviorsEchoHandler) RuleSet(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	if b, ok, _ := h.rsCache.GetBytes(rulesetCacheKey); ok && len(b) > 0 {
		return xhttp.SuccessResponse(c, json.RawMessage(b))
	}

	doc, err := h.optim.CurrentRuleSet(c.Request().Context())
	if err != nil {
		h.logger.Error("ruleset usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if b, err := json.Marshal(doc); err == nil {
		_ = h.rsCache.SetBytes(rulesetCacheKey, b, 15*time.Second)
	}
	return xhttp.SuccessResponse(c, doc)
}

func (h *BehaviorsEchoHandler) Events(c echo.Context) error {
	req := &models.EventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	// default range: last 24h
	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)

	res, err := h.events.GetEvents(c.Request().Context(), usecase.GetEventsParams{
		CollarID: req.CollarID,
		From:     from,
		To:       to,
		Limit:    req.Limit,
	})
	if err != nil {
		h.logger.Error("events usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BehaviorsEchoHandler) Feedback(c echo.Context) error {
	req := &models.FeedbackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if req.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, req.Timestamp); err != nil {
			return xhttp.BadRequestResponse(c, "timestamp must be RFC3339")
		}
	}

	if err := h.feedback.PublishMessage(c.Request().Context(), usecase.FeedbackJobType, req); err != nil {
		h.logger.Error("feedback enqueue error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, map[string]string{"status": "accepted", "event_id": req.EventID})
}
