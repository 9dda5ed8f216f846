package api

import (
	"context"
	"time"

	models "PriceShaper/internal/domain/models"
	domrepo "PriceShaper/internal/domain/repository"
	"PriceShaper/internal/service/metrics"
	"PriceShaper/internal/service/ratelimit"
	"PriceShaper/internal/usecase"
	xhttp "PriceShaper/pkg/http"
	xlogger "PriceShaper/pkg/logger"

	"github.com/labstack/echo/v4"
)

// CandlesService serves overlaid historical candles.
type CandlesService interface {
	GetCandles(ctx context.Context, p usecase.GetCandlesParams) (*usecase.GetCandlesResult, error)
}

// LiveSessions exposes the live overlay's per-instrument sessions.
type LiveSessions interface {
	Latest(symbol string) (usecase.LiveSnapshot, bool)
	Drop(symbol string) bool
	Sessions() int
}

// StreamStatus reports the upstream market feed state.
type StreamStatus interface {
	IsConnected() bool
}

// OverlayEchoHandler implements the overlay HTTP API on Echo.
type OverlayEchoHandler struct {
	logger  *xlogger.Logger
	candles CandlesService
	live    LiveSessions
	stream  StreamStatus
	rl      *ratelimit.Limiter
}

func NewOverlayEchoHandler(logger *xlogger.Logger, candles CandlesService, live LiveSessions, stream StreamStatus, rl *ratelimit.Limiter) *OverlayEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &OverlayEchoHandler{logger: logger, candles: candles, live: live, stream: stream, rl: rl}
}

func (h *OverlayEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/candles", h.Candles)
	g.GET("/live", h.Live)
	g.DELETE("/sessions/:symbol", h.DropSession)
	e.GET("/healthz", h.Health)
}

type CandlesResponse struct {
	Symbol      string       `json:"symbol"`
	Timeframe   string       `json:"timeframe"`
	From        int64        `json:"from"`
	To          int64        `json:"to"`
	Count       int          `json:"count"`
	Manipulated bool         `json:"manipulated"`
	Degraded    bool         `json:"degraded,omitempty"`
	Candles     []models.Bar `json:"candles"`
}

type LiveResponse struct {
	Symbol       string     `json:"symbol"`
	Phase        string     `json:"phase"`
	AdjustmentID string     `json:"adjustment_id,omitempty"`
	Bar          models.Bar `json:"bar"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	StreamConnected bool   `json:"stream_connected"`
	Sessions        int    `json:"sessions"`
}

func (h *OverlayEchoHandler) Candles(c echo.Context) error {
	const endpoint = "candles"
	defer observe(endpoint, time.Now())
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "validation").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	now := time.Now().UTC()
	to := xhttp.ParseTimeDefault(req.To, now)
	from := xhttp.ParseTimeDefault(req.From, to.Add(-time.Duration(req.Limit)*tf.Duration()))
	if from.After(to) {
		metrics.APIErrors.WithLabelValues(endpoint, "validation").Inc()
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must be <= to"))
	}

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: tf,
		Limit:     req.Limit,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "usecase").Inc()
		h.logger.Error("candles usecase error", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("candles unavailable").WithError(err))
	}
	if res.Manipulated {
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	} else {
		c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	}
	return xhttp.SuccessResponse(c, CandlesResponse{
		Symbol:      res.Symbol,
		Timeframe:   res.Timeframe,
		From:        res.From.UnixMilli(),
		To:          res.To.UnixMilli(),
		Count:       res.Count,
		Manipulated: res.Manipulated,
		Degraded:    res.Degraded,
		Candles:     res.Candles,
	})
}

func (h *OverlayEchoHandler) Live(c echo.Context) error {
	const endpoint = "live"
	defer observe(endpoint, time.Now())
	if !h.allow(c, endpoint) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	req := &models.LiveRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.APIErrors.WithLabelValues(endpoint, "validation").Inc()
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, ok := h.live.Latest(req.Symbol)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no live session for %s", req.Symbol))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, LiveResponse{
		Symbol:       snap.Bar.Symbol,
		Phase:        string(snap.Phase),
		AdjustmentID: snap.GoverningID,
		Bar:          snap.Bar,
	})
}

func (h *OverlayEchoHandler) DropSession(c echo.Context) error {
	const endpoint = "sessions"
	defer observe(endpoint, time.Now())

	req := &models.SessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.live.Drop(req.Symbol) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no live session for %s", req.Symbol))
	}
	h.logger.Info("live session reset via api", xlogger.String("symbol", req.Symbol), xlogger.String("remote", c.RealIP()))
	return xhttp.NoContentResponse(c)
}

func (h *OverlayEchoHandler) Health(c echo.Context) error {
	res := HealthResponse{Status: "ok", Sessions: h.live.Sessions()}
	if h.stream != nil {
		res.StreamConnected = h.stream.IsConnected()
		if !res.StreamConnected {
			res.Status = "degraded"
		}
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *OverlayEchoHandler) allow(c echo.Context, endpoint string) bool {
	if h.rl == nil || h.rl.Allow(c.RealIP()+":"+endpoint) {
		return true
	}
	metrics.APIErrors.WithLabelValues(endpoint, "rate_limited").Inc()
	h.logger.Warn("rate limited", xlogger.String("endpoint", endpoint), xlogger.String("remote", c.RealIP()))
	return false
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
