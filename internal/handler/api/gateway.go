package api

import (
	"errors"
	"io"
	"net/http"

	"SolGate/internal/domain/models"
	"SolGate/internal/ingest"
	"SolGate/internal/publish"
	"SolGate/internal/registry"
	"SolGate/internal/router"
	"SolGate/internal/usecase"
	xhttp "SolGate/pkg/http"
	xlogger "SolGate/pkg/logger"

	"github.com/labstack/echo/v4"
)

// GatewayHandler exposes the RPC proxy, webhook intake, and ops endpoints.
type GatewayHandler struct {
	logger       *xlogger.Logger
	gateway      *usecase.Gateway
	ingestor     *ingest.Ingestor
	publisher    *publish.Publisher
	registry     *registry.Registry
	policy       models.RoutingPolicy
	network      models.Network
	ackMalformed bool
}

func NewGatewayHandler(
	logger *xlogger.Logger,
	gateway *usecase.Gateway,
	ingestor *ingest.Ingestor,
	publisher *publish.Publisher,
	reg *registry.Registry,
	policy models.RoutingPolicy,
	network models.Network,
	ackMalformed bool,
) *GatewayHandler {
	return &GatewayHandler{
		logger:       logger,
		gateway:      gateway,
		ingestor:     ingestor,
		publisher:    publisher,
		registry:     reg,
		policy:       policy,
		network:      network,
		ackMalformed: ackMalformed,
	}
}

func (h *GatewayHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/rpc", h.RPC)
	e.POST("/webhooks/:provider", h.Webhook)
	e.GET("/webhooks/metrics", h.WebhookMetrics)

	g := e.Group("/api")
	g.GET("/providers", h.Providers)
	g.GET("/usage", h.Usage)

	e.GET("/healthz", h.Healthz)
}

// RPCCallRequest is the proxy request body.
type RPCCallRequest struct {
	Method string      `json:"method" validate:"required"`
	Params interface{} `json:"params"`
}

// RPC proxies one JSON-RPC method call through cache, coalescing and
// provider routing.
func (h *GatewayHandler) RPC(c echo.Context) error {
	req := &RPCCallRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	result, err := h.gateway.Call(c.Request().Context(), req.Method, req.Params)
	if err != nil {
		var rpcErr *models.RPCError
		if errors.As(err, &rpcErr) {
			return xhttp.DataResponse(c, http.StatusOK, map[string]interface{}{"error": rpcErr})
		}
		if errors.Is(err, router.ErrNoProviders) {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("no_providers", "", "no eligible rpc providers", http.StatusServiceUnavailable))
		}
		h.logger.Error("rpc call failed",
			xlogger.String("method", req.Method),
			xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("upstream call failed"))
	}

	return xhttp.DataResponse(c, http.StatusOK, map[string]interface{}{"result": result})
}

// Webhook receives one provider delivery, runs the ingestion pipeline, and
// fans emitted signals out to the configured sinks.
func (h *GatewayHandler) Webhook(c echo.Context) error {
	source := c.Param("provider")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return xhttp.BadRequestResponse(c, map[string]string{"error": "unreadable body"})
	}

	report, err := h.ingestor.Process(c.Request().Header.Get(echo.HeaderAuthorization), source, body)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrUnauthorized):
			return xhttp.UnauthorizedResponse(c, map[string]string{"error": "unauthorized"})
		case errors.Is(err, ingest.ErrRateLimited):
			return xhttp.TooManyRequestsResponse(c, map[string]string{"error": "rate limit exceeded"})
		case errors.Is(err, ingest.ErrMalformed):
			if h.ackMalformed {
				return xhttp.SuccessResponse(c, map[string]interface{}{"status": "accepted", "signals": 0})
			}
			return xhttp.BadRequestResponse(c, map[string]string{"error": "malformed payload"})
		default:
			h.logger.Error("webhook processing failed", xlogger.String("source", source), xlogger.Error(err))
			return xhttp.InternalServerErrorResponse(c)
		}
	}

	if len(report.Signals) > 0 {
		h.publisher.PublishAsync(report.Signals)
	}

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":          "processed",
		"events_seen":     report.EventsSeen,
		"events_relevant": report.EventsRelevant,
		"signals":         len(report.Signals),
		"risks":           len(report.Risks),
	})
}

// WebhookMetrics reports the ingestion counters as JSON.
func (h *GatewayHandler) WebhookMetrics(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.ingestor.Stats())
}

// Providers reports per-provider health and usage.
func (h *GatewayHandler) Providers(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.gateway.Report(h.policy, h.network))
}

// Usage reports quota consumption only, for dashboards that do not need the
// full provider view.
func (h *GatewayHandler) Usage(c echo.Context) error {
	report := h.gateway.Report(h.policy, h.network)
	type usageRow struct {
		Provider     string  `json:"provider"`
		Calls        int64   `json:"calls"`
		Quota        int64   `json:"quota"`
		UsagePercent float64 `json:"usage_percent"`
		Cost         float64 `json:"cost"`
	}
	rows := make([]usageRow, 0, len(report.Providers))
	for _, p := range report.Providers {
		rows = append(rows, usageRow{
			Provider:     p.Name,
			Calls:        p.CallsThisMonth,
			Quota:        p.MonthlyQuota,
			UsagePercent: p.UsagePercent,
			Cost:         p.CostThisMonth,
		})
	}
	return xhttp.SuccessResponse(c, rows)
}

// Healthz is the liveness probe.
func (h *GatewayHandler) Healthz(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status":    "ok",
		"providers": h.registry.Len(),
	})
}
