package webinars

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/internal/models"
	"github.com/aura-webinar/livestream/pkg/response"
)

// CreateRequest is the body for POST /webinars: a complete draft plus the host identity.
type CreateRequest struct {
	Draft
	HostID string `json:"hostId"`
}

// Handler handles webinar HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a webinar handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /webinars. The response is the only place the host token is returned.
func (h *Handler) Create(c *gin.Context) {
	req := CreateRequest{Draft: NewDraft()}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	w, err := h.svc.Create(c.Request.Context(), req.Draft, req.HostID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, w)
}

// GetByID handles GET /webinars/:id.
func (h *Handler) GetByID(c *gin.Context) {
	w, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, w.Public())
}

// List handles GET /webinars (newest first).
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list webinars failed", zap.Error(err))
		response.Internal(c, "failed to list webinars")
		return
	}
	out := make([]models.Webinar, 0, len(list))
	for _, w := range list {
		out = append(out, w.Public())
	}
	response.OK(c, out)
}
