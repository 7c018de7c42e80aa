// Package handlers contains the HTTP handlers for the courtwind API.
//
// Routes mounted under /v1:
//   - POST /advice           advice for one location
//   - POST /advice/batch     advice for several locations
//   - GET  /advice/defaults  configured horizons, thresholds and model
//   - POST /decisions        decision engine on client-supplied forecasts
//   - GET  /decisions/recent decision log for a location
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"courtwind/internal/advisor"
	"courtwind/internal/core"
	"courtwind/internal/types"
)

// AdvisorService is the service contract the advice handler depends on.
type AdvisorService interface {
	Advise(ctx context.Context, req types.AdviceRequest) (*types.Advice, error)
	AdviseBatch(ctx context.Context, reqs []types.AdviceRequest) (*types.BatchAdviceResult, error)
	Decide(req types.DecideRequest) (types.Decision, error)
	Recent(ctx context.Context, locationID string, limit int) ([]types.DecisionRecord, error)
	Defaults() advisor.Defaults
}

// AdviceHandler maps HTTP requests onto the advisor.
type AdviceHandler struct {
	service   AdvisorService
	validator *core.Validator
	logger    *slog.Logger
}

// NewAdviceHandler creates an AdviceHandler.
func NewAdviceHandler(svc AdvisorService, val *core.Validator, logger *slog.Logger) *AdviceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdviceHandler{service: svc, validator: val, logger: logger}
}

// RegisterRoutes mounts the advice and decision endpoints.
func (h *AdviceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/advice", func(r chi.Router) {
		r.Post("/", h.HandleAdvise)
		r.Post("/batch", h.HandleAdviseBatch)
		r.Get("/defaults", h.HandleDefaults)
	})
	r.Route("/decisions", func(r chi.Router) {
		r.Post("/", h.HandleDecide)
		r.Get("/recent", h.HandleRecent)
	})
}

// HandleAdvise handles POST /v1/advice.
func (h *AdviceHandler) HandleAdvise(w http.ResponseWriter, r *http.Request) {
	var req types.AdviceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	advice, err := h.service.Advise(r.Context(), req)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := core.APIResponse{Data: advice}
	if advice.FallbackReason != types.FallbackNone {
		resp.Meta = &core.ResponseMeta{Warnings: []string{
			"forecast fell back to persistence: " + advice.FallbackReason,
		}}
	}
	core.JSON(w, r, http.StatusOK, resp)
}

// HandleAdviseBatch handles POST /v1/advice/batch. Per-location failures are
// reported in the result; the status is 207 when some locations failed and
// 200 otherwise.
func (h *AdviceHandler) HandleAdviseBatch(w http.ResponseWriter, r *http.Request) {
	var req types.BatchAdviceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.AdviseBatch(r.Context(), req.Requests)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	status := http.StatusOK
	if len(result.Errors) > 0 {
		status = http.StatusMultiStatus
		h.logger.WarnContext(r.Context(), "batch advice partially failed",
			"requested", len(req.Requests),
			"failed", len(result.Errors),
		)
	}
	core.Data(w, r, status, result)
}

// HandleDefaults handles GET /v1/advice/defaults.
func (h *AdviceHandler) HandleDefaults(w http.ResponseWriter, r *http.Request) {
	core.Data(w, r, http.StatusOK, h.service.Defaults())
}

// HandleDecide handles POST /v1/decisions.
func (h *AdviceHandler) HandleDecide(w http.ResponseWriter, r *http.Request) {
	var req types.DecideRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	d, err := h.service.Decide(req)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, d)
}

// HandleRecent handles GET /v1/decisions/recent?location_id=...&limit=...
func (h *AdviceHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	locationID := q.Get("location_id")
	if locationID == "" {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"location_id query parameter is required", nil))
		return
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidBody,
				"limit must be a positive integer", nil))
			return
		}
		limit = n
	}

	records, err := h.service.Recent(r.Context(), locationID, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if records == nil {
		records = []types.DecisionRecord{}
	}
	core.Data(w, r, http.StatusOK, records)
}
