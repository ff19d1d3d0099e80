package applications

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"patent-backend/internal/shared/server/middleware"
	"patent-backend/internal/shared/server/respond"
	"patent-backend/internal/workflow"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches application routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/workflow/statuses", h.statuses)

	rg.POST("/applications", middleware.RequireRole(workflow.RoleApplicant), h.submit)
	rg.GET("/applications/mine", h.mine)
	rg.GET("/applications/:id", h.get)
	rg.GET("/applications/:id/progress", h.progress)
	rg.GET("/applications/:id/history", h.history)

	admin := rg.Group("", middleware.RequireAdmin())
	admin.GET("/applications", h.list)
	admin.GET("/applications/stats", h.stats)
	admin.POST("/applications/:id/status", h.changeStatus)
	admin.POST("/applications/:id/status/next", h.next)
	admin.POST("/applications/:id/status/previous", h.previous)
	admin.POST("/applications/:id/attorney", h.assignAttorney)
}

func (h *Handler) statuses(c *gin.Context) {
	respond.OK(c, workflow.All())
}

func (h *Handler) submit(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	app, err := h.Svc.Submit(c.Request.Context(), Applicant{
		ID:   middleware.UserIDFromContext(c),
		Name: middleware.UserNameFromContext(c),
	}, payload)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Set("applicationId", app.ID)
	respond.Created(c, toResponse(app))
}

func (h *Handler) mine(c *gin.Context) {
	apps, err := h.Svc.ListForApplicant(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, toSummaries(apps))
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set("applicationId", id)
	app, err := h.Svc.Get(c.Request.Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, toResponse(app))
}

func (h *Handler) progress(c *gin.Context) {
	id := c.Param("id")
	c.Set("applicationId", id)
	p, err := h.Svc.Progress(c.Request.Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, p)
}

func (h *Handler) history(c *gin.Context) {
	id := c.Param("id")
	c.Set("applicationId", id)
	entries, err := h.Svc.History(c.Request.Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, toHistory(entries))
}

func (h *Handler) list(c *gin.Context) {
	filter := Filter{
		View:  View(strings.ToLower(strings.TrimSpace(c.Query("view")))),
		Limit: 50,
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, ok := workflow.ParseStatus(raw)
		if !ok {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown status", gin.H{"status": raw})
			return
		}
		filter.Status = status
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			filter.Offset = parsed
		}
	}

	apps, err := h.Svc.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, toSummaries(apps))
}

func (h *Handler) stats(c *gin.Context) {
	counts, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, counts)
}

type changeStatusRequest struct {
	ToStatus   string `json:"to_status"`
	NextStatus string `json:"next_status"`
}

func (h *Handler) changeStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	to := strings.TrimSpace(req.ToStatus)
	if to == "" {
		to = strings.TrimSpace(req.NextStatus)
	}
	if to == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "to_status is required", nil)
		return
	}

	id := c.Param("id")
	c.Set("applicationId", id)
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	res, err := h.Svc.ChangeStatus(ctx, id, to, middleware.ActorFromContext(c))
	h.transitionResult(c, res, err)
}

func (h *Handler) next(c *gin.Context) {
	id := c.Param("id")
	c.Set("applicationId", id)
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	res, err := h.Svc.MoveNext(ctx, id, middleware.ActorFromContext(c))
	h.transitionResult(c, res, err)
}

func (h *Handler) previous(c *gin.Context) {
	id := c.Param("id")
	c.Set("applicationId", id)
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	res, err := h.Svc.MovePrevious(ctx, id, middleware.ActorFromContext(c))
	h.transitionResult(c, res, err)
}

type assignAttorneyRequest struct {
	AttorneyID string `json:"attorney_id"`
}

func (h *Handler) assignAttorney(c *gin.Context) {
	var req assignAttorneyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	id := c.Param("id")
	c.Set("applicationId", id)
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	app, err := h.Svc.AssignAttorney(ctx, id, req.AttorneyID, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, toResponse(app))
}

func (h *Handler) transitionResult(c *gin.Context, res workflow.Result, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	if !res.NoOp {
		c.Set("statusTransition", string(res.PreviousStatus)+"->"+string(res.NewStatus))
	}
	respond.OK(c, res)
}

// fail maps service and engine errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error) {
	var verr *ValidationError
	var werr *workflow.Error
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", "application failed validation", gin.H{"fields": verr.Fields})
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "not allowed to access this application", nil)
	case errors.As(err, &werr):
		h.failWorkflow(c, werr)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "application not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected error", nil)
	}
}

func (h *Handler) failWorkflow(c *gin.Context, werr *workflow.Error) {
	details := gin.H{"reason": werr.Reason, "retryable": werr.Retryable()}
	switch werr.Code {
	case workflow.CodeNotFound:
		respond.Error(c, http.StatusNotFound, "not_found", "application not found", nil)
	case workflow.CodeConflict:
		respond.Error(c, http.StatusConflict, "conflict", "status changed concurrently; reload and retry", details)
	case workflow.CodeStoreUnavailable:
		respond.Error(c, http.StatusServiceUnavailable, "store_unavailable", "application store unavailable", details)
	case workflow.CodeUnknownStatus:
		respond.Error(c, http.StatusInternalServerError, "unknown_status", "application has an unrecognized status", details)
	case workflow.CodePolicyDenied:
		if werr.Reason == workflow.ReasonUnauthorizedRole {
			respond.Error(c, http.StatusForbidden, "forbidden", "role may not change status", details)
			return
		}
		respond.Error(c, http.StatusUnprocessableEntity, "transition_denied", "transition not allowed", details)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected error", nil)
	}
}
