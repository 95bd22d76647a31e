package session

import (
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/middleware"
	"github.com/HayasMoustapha/event-planner-auth/internal/models"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/autherr"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

type sessionResponse struct {
	ID         string    `json:"id"`
	IP         string    `json:"ip"`
	UA         string    `json:"ua"`
	DeviceInfo string    `json:"device_info,omitempty"`
	Current    bool      `json:"current"`
	Created    time.Time `json:"created"`
	LastSeen   time.Time `json:"last_seen"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type Handler struct{ mgr *Manager }

func NewHandler(mgr *Manager) *Handler { return &Handler{mgr: mgr} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	s := rg.Group("/sessions", authMW)

	s.GET("", h.list)
	s.GET("/stats", h.stats)
	s.DELETE("/:id", h.revoke)
	s.DELETE("", h.revokeOthers)
}

func (h *Handler) list(c *gin.Context) {
	sessions, err := h.mgr.ListActive(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	current := middleware.CurrentSessionID(c)
	items := make([]sessionResponse, len(sessions))
	for i, s := range sessions {
		items[i] = toSessionResponse(&s, current)
	}
	response.OK(c, gin.H{"data": items})
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.mgr.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, stats)
}

func (h *Handler) revoke(c *gin.Context) {
	err := h.mgr.Revoke(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), "user-revoked")
	if err != nil {
		if err == autherr.ErrAuthentication {
			response.NotFoundMsg(c, "session not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

// revokeOthers ends every session except the one making the call.
func (h *Handler) revokeOthers(c *gin.Context) {
	count, err := h.mgr.RevokeAllForUser(c.Request.Context(),
		middleware.CurrentUserID(c), middleware.CurrentSessionID(c), "user-revoked")
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"revoked": count})
}

func toSessionResponse(s *models.Session, currentID string) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		IP:         s.IP,
		UA:         s.UA,
		DeviceInfo: s.DeviceInfo,
		Current:    s.ID == currentID,
		Created:    s.CreatedAt,
		LastSeen:   s.UpdatedAt,
		ExpiresAt:  s.ExpiresAt,
	}
}
