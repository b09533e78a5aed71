package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"dlerbot/internal/session"
)

// Sessions is the read-only view of the session manager the API exposes.
type Sessions interface {
	Len() int
	IsBusy() bool
	Snapshots() []session.Snapshot
	Get(id string) (*session.Session, bool)
}

type healthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	Busy           bool   `json:"busy"`
}

type sessionsResponse struct {
	Sessions []session.Snapshot `json:"sessions"`
}

type API struct {
	sessions Sessions
}

func NewAPI(sessions Sessions) *API {
	return &API{sessions: sessions}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", a.Health)
	api := router.Group("/api/v1")
	{
		api.GET("/sessions", a.ListSessions)
		api.GET("/sessions/:id", a.GetSession)
	}
}

func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:         "ok",
		ActiveSessions: a.sessions.Len(),
		Busy:           a.sessions.IsBusy(),
	})
}

// ListSessions returns every live session, oldest first
func (a *API) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, sessionsResponse{Sessions: a.sessions.Snapshots()})
}

func (a *API) GetSession(c *gin.Context) {
	id := c.Param("id")
	if s, ok := a.sessions.Get(id); ok {
		c.JSON(http.StatusOK, s.Snapshot())
		return
	}
	log.Warn().Str("session_id", id).Msg("session not found on get")
	c.JSON(http.StatusNotFound, gin.H{"error": session.ErrSessionNotFound.Error()})
}
