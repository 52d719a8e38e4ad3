package stream

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the token endpoint browsers and the CLI call before connecting.
type Handler struct {
	issuer *Issuer
	logger *zap.Logger
}

// NewHandler creates a token handler.
func NewHandler(issuer *Issuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{issuer: issuer, logger: logger}
}

type tokenRequest struct {
	UserID string `json:"userId"`
}

// IssueToken handles POST /api/stream-token.
// Body { userId } returns { token, userId, apiKey }. The response is not wrapped in the
// envelope so existing clients keep reading token at the top level.
func (h *Handler) IssueToken(c *gin.Context) {
	var req tokenRequest
	_ = c.ShouldBindJSON(&req)
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return
	}
	token, err := h.issuer.IssueToken(userID, 0)
	if err != nil {
		h.logger.Error("token generation failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":  token.Value,
		"userId": token.UserID,
		"apiKey": h.issuer.APIKey(),
	})
}
