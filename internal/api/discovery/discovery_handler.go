package discovery

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-poi-discovery/app/observability/metrics"
	"github.com/FACorreiaa/go-poi-discovery/internal/api"
	"github.com/FACorreiaa/go-poi-discovery/internal/types"
)

type HandlerImpl struct {
	discoveryService Service
	logger           *slog.Logger
	metrics          *metrics.AppMetrics
}

func NewHandlerImpl(discoveryService Service, logger *slog.Logger) *HandlerImpl {
	metrics.InitAppMetrics()
	return &HandlerImpl{
		discoveryService: discoveryService,
		logger:           logger,
		metrics:          metrics.Get(),
	}
}

// Query handles one conversational discovery turn.
func (h *HandlerImpl) Query(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DiscoveryHandler").Start(r.Context(), "Query", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/discovery/query"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Query"))

	start := time.Now()
	defer func() {
		h.metrics.TurnDurationSeconds.Record(ctx, time.Since(start).Seconds())
	}()

	var req types.DiscoverRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.ErrorContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.discoveryService.Discover(ctx, req)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, types.ErrValidation):
			l.WarnContext(ctx, "Invalid discovery request", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusBadRequest, "Query must not be empty")
		case errors.Is(err, types.ErrCircuitOpen):
			l.WarnContext(ctx, "Search short-circuited", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusServiceUnavailable, "Search temporarily unavailable")
		case errors.Is(err, types.ErrTimeout):
			l.ErrorContext(ctx, "Search timed out", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusGatewayTimeout, "Search timed out")
		case errors.Is(err, types.ErrNotConnected):
			l.ErrorContext(ctx, "Vector store not connected", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusServiceUnavailable, "Search backend unavailable")
		default:
			l.ErrorContext(ctx, "Discovery turn failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to process query")
		}
		return
	}

	h.metrics.DiscoveryTurnsTotal.Add(ctx, 1)
	if resp.IsFollowUp {
		h.metrics.FollowUpResolvedTotal.Add(ctx, 1)
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// DeleteSession ends a conversation explicitly.
func (h *HandlerImpl) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DiscoveryHandler").Start(r.Context(), "DeleteSession", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/discovery/sessions/{sessionID}"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "DeleteSession"))

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		l.ErrorContext(ctx, "Invalid session ID format", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid session ID format")
		return
	}

	if !h.discoveryService.EndSession(ctx, sessionID) {
		api.ErrorResponse(w, r, http.StatusNotFound, "Session not found")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}
