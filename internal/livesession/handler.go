package livesession

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/pkg/response"
)

// Handler exposes live sessions over HTTP.
type Handler struct {
	mgr    *Manager
	logger *zap.Logger
}

// NewHandler creates a live session handler.
func NewHandler(mgr *Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{mgr: mgr, logger: logger}
}

type openRequest struct {
	HostToken string `json:"hostToken"`
}

// Open handles POST /webinars/:id/live/sessions. A failed handshake still returns the session
// snapshot in the error state.
func (h *Handler) Open(c *gin.Context) {
	var req openRequest
	_ = c.ShouldBindJSON(&req)
	s, err := h.mgr.Open(c.Request.Context(), c.Param("id"), req.HostToken)
	if err != nil {
		response.FailWith(c, err, s)
		return
	}
	response.Created(c, s)
}

// Get handles GET /live/sessions/:sid.
func (h *Handler) Get(c *gin.Context) {
	s, err := h.mgr.Get(c.Param("sid"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.mgr.Touch(s.ID)
	response.OK(c, s)
}

// Refresh handles POST /live/sessions/:sid/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	s, err := h.mgr.Refresh(c.Request.Context(), c.Param("sid"))
	h.reply(c, s, err)
}

// GoLive handles POST /live/sessions/:sid/go-live.
func (h *Handler) GoLive(c *gin.Context) {
	s, err := h.mgr.GoLive(c.Request.Context(), c.Param("sid"))
	h.reply(c, s, err)
}

// StopLive handles POST /live/sessions/:sid/stop-live.
func (h *Handler) StopLive(c *gin.Context) {
	s, err := h.mgr.StopLive(c.Request.Context(), c.Param("sid"))
	h.reply(c, s, err)
}

// Close handles DELETE /live/sessions/:sid.
func (h *Handler) Close(c *gin.Context) {
	if err := h.mgr.Close(c.Request.Context(), c.Param("sid")); err != nil {
		response.Fail(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) reply(c *gin.Context, s Session, err error) {
	if err != nil {
		if s.ID == "" {
			response.Fail(c, err)
			return
		}
		response.FailWith(c, err, s)
		return
	}
	response.OK(c, s)
}
