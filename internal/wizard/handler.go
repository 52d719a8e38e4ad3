package wizard

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/livestream/internal/webinars"
	"github.com/aura-webinar/livestream/pkg/response"
)

// View is the wizard as returned by the API.
type View struct {
	Wizard
	StepNumber  int    `json:"stepNumber"`
	LandingPath string `json:"landingPath,omitempty"`
}

// viewOf renders w. The created webinar's host token is only revealed by the submit reply.
func viewOf(w Wizard, revealToken bool) View {
	v := View{Wizard: w, StepNumber: w.Step.Number()}
	if w.Created != nil {
		v.LandingPath = LandingPath(w.Created.ID)
		if !revealToken {
			pub := w.Created.Public()
			v.Created = &pub
		}
	}
	return v
}

// Handler exposes wizards over HTTP.
type Handler struct {
	store   *Store
	creator Creator
	logger  *zap.Logger
}

// NewHandler creates a wizard handler.
func NewHandler(store *Store, creator Creator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, creator: creator, logger: logger}
}

type openRequest struct {
	HostID string `json:"hostId"`
}

// Open handles POST /wizards.
func (h *Handler) Open(c *gin.Context) {
	var req openRequest
	_ = c.ShouldBindJSON(&req)
	w := h.store.Open(req.HostID)
	h.logger.Debug("wizard opened", zap.String("wizard_id", w.ID))
	response.Created(c, viewOf(w, false))
}

// Get handles GET /wizards/:id.
func (h *Handler) Get(c *gin.Context) {
	w, err := h.store.Get(c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, viewOf(w, false))
}

// UpdateDraft handles PATCH /wizards/:id/draft. Fields absent from the body keep their value.
func (h *Handler) UpdateDraft(c *gin.Context) {
	var bindErr error
	w, err := h.store.Do(c.Param("id"), func(w *Wizard) error {
		d := w.Draft
		if bindErr = c.ShouldBindJSON(&d); bindErr != nil {
			return nil
		}
		return w.UpdateDraft(d)
	})
	if bindErr != nil {
		response.BadRequest(c, "invalid request: "+bindErr.Error())
		return
	}
	h.reply(c, w, err)
}

// Next handles POST /wizards/:id/next.
func (h *Handler) Next(c *gin.Context) {
	w, err := h.store.Do(c.Param("id"), (*Wizard).Next)
	h.reply(c, w, err)
}

// Back handles POST /wizards/:id/back.
func (h *Handler) Back(c *gin.Context) {
	w, err := h.store.Do(c.Param("id"), (*Wizard).Back)
	h.reply(c, w, err)
}

// Submit handles POST /wizards/:id/submit.
func (h *Handler) Submit(c *gin.Context) {
	w, err := h.store.Do(c.Param("id"), func(w *Wizard) error {
		return w.Submit(c.Request.Context(), h.creator)
	})
	if err != nil {
		h.logger.Warn("wizard submit failed", zap.String("wizard_id", c.Param("id")), zap.Error(err))
		response.Fail(c, err)
		return
	}
	response.OK(c, viewOf(w, true))
}

// Cancel handles POST /wizards/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	w, err := h.store.Do(c.Param("id"), (*Wizard).Cancel)
	h.reply(c, w, err)
}

// Restart handles POST /wizards/:id/restart.
func (h *Handler) Restart(c *gin.Context) {
	w, err := h.store.Do(c.Param("id"), (*Wizard).Restart)
	h.reply(c, w, err)
}

// Finish handles POST /wizards/:id/finish.
func (h *Handler) Finish(c *gin.Context) {
	w, err := h.store.Do(c.Param("id"), func(w *Wizard) error {
		_, err := w.Finish()
		return err
	})
	h.reply(c, w, err)
}

func (h *Handler) reply(c *gin.Context, w Wizard, err error) {
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, viewOf(w, false))
}

var _ Creator = (*webinars.Service)(nil)
