package landing

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/pkg/response"
)

// Handler serves landing pages and the countdown event stream.
type Handler struct {
	svc      *Service
	interval time.Duration
	logger   *zap.Logger
}

// NewHandler creates a landing handler that pushes a countdown event every second.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, interval: time.Second, logger: logger}
}

// Get handles GET /webinars/:id/landing.
func (h *Handler) Get(c *gin.Context) {
	page, err := h.svc.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, page)
}

// Countdown handles GET /webinars/:id/countdown as server-sent events: one "countdown" event per
// tick, then a final "finished" event carrying the join affordance.
func (h *Handler) Countdown(c *gin.Context) {
	ctx := c.Request.Context()
	w, start, err := h.svc.Start(ctx, c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	Tick(ctx, h.interval, func(time.Time) bool {
		page, err := Build(w, h.svc.loc, h.svc.now())
		if err != nil {
			h.logger.Warn("countdown build failed", zap.String("webinar_id", w.ID), zap.Error(err))
			return false
		}
		c.SSEvent("countdown", page.Countdown)
		if page.Countdown.Finished {
			c.SSEvent("finished", gin.H{"canJoin": page.CanJoin, "joinPath": page.JoinPath})
		}
		c.Writer.Flush()
		return !page.Countdown.Finished
	})
	h.logger.Debug("countdown stream closed", zap.String("webinar_id", w.ID), zap.Time("starts_at", start))
}
