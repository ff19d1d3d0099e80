package documents

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"patent-backend/internal/applications"
	"patent-backend/internal/shared/server/middleware"
	"patent-backend/internal/shared/server/respond"
)

const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/applications/:id/documents", h.upload)
	rg.GET("/applications/:id/documents", h.list)
	rg.GET("/documents/:documentId/download", h.download)
}

func (h *Handler) upload(c *gin.Context) {
	limit := h.Svc.MaxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	kind, ok := ParseKind(c.PostForm("kind"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "kind must be one of poc, mou, source_agreement, form_iii", nil)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	id := c.Param("id")
	c.Set("applicationId", id)
	doc, err := h.Svc.Upload(c.Request.Context(), id, kind, fileHeader.Filename, file, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.Created(c, doc)
}

func (h *Handler) list(c *gin.Context) {
	id := c.Param("id")
	c.Set("applicationId", id)
	docs, err := h.Svc.List(c.Request.Context(), id, middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond.OK(c, docs)
}

func (h *Handler) download(c *gin.Context) {
	dl, err := h.Svc.Download(c.Request.Context(), c.Param("documentId"), middleware.ActorFromContext(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	doc := dl.Document
	c.Set("applicationId", doc.ApplicationID)
	if dl.URL != "" {
		c.Redirect(http.StatusFound, dl.URL)
		return
	}
	defer dl.Body.Close()

	c.DataFromReader(http.StatusOK, doc.SizeBytes, doc.MimeType, dl.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.FileName),
	})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "too_large", "file exceeds upload limit", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, applications.ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "not allowed to access this application", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, applications.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "application not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "document operation failed", nil)
	}
}
