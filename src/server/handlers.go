package server

import (
	"net/http"

	"bot-mirror/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Read side
// -----------------------------------------------------------------------------

func (s *DashboardServer) getSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Snapshot())
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getHealth(c *gin.Context) {
	snap := s.store.Snapshot()

	body := gin.H{
		"status":           "ok",
		"connection":       snap.Connection,
		"stale":            snap.Stale,
		"market_open":      snap.MarketOpen,
		"last_liveness_at": snap.LastLivenessAt,
		"version":          snap.Version,
		"viewers":          s.viewers.Load(),
	}
	if s.router != nil {
		body["messages"] = s.router.Stats()
	}
	c.JSON(http.StatusOK, body)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Summary())
}

// -----------------------------------------------------------------------------
// Parameters
// -----------------------------------------------------------------------------

func (s *DashboardServer) getParams(c *gin.Context) {
	c.JSON(http.StatusOK, s.control.Params.Current())
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) putParams(c *gin.Context) {
	var req models.MSavedParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	saved, err := s.control.UpdateParams(c.Request.Context(), req.Params, req.SelectedIndex)
	if err != nil {
		status, detail := errorStatus(err)
		c.JSON(status, gin.H{"detail": detail, "saved": saved})
		return
	}
	c.JSON(http.StatusOK, saved)
}

// -----------------------------------------------------------------------------
// Bot commands
// -----------------------------------------------------------------------------

func (s *DashboardServer) postCommand(c *gin.Context) {
	resp, err := s.control.Execute(c.Request.Context(), c.Param("command"))
	respond(c, resp, err)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) postAuthenticate(c *gin.Context) {
	var req models.MTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	resp, err := s.control.Authenticate(c.Request.Context(), req.RequestToken)
	respond(c, resp, err)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getAuthStatus(c *gin.Context) {
	resp, err := s.control.Status(c.Request.Context())
	respond(c, resp, err)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) postOptimize(c *gin.Context) {
	resp, err := s.control.Optimize(c.Request.Context())
	respond(c, resp, err)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) postWatchlist(c *gin.Context) {
	var req models.MWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}
	resp, err := s.control.AddToWatchlist(c.Request.Context(), req.Side, req.Strike)
	respond(c, resp, err)
}

// -----------------------------------------------------------------------------
// Local actions
// -----------------------------------------------------------------------------

func (s *DashboardServer) postDismissNotices(c *gin.Context) {
	s.sched.Post(s.store.DismissNotices)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) postReconnect(c *gin.Context) {
	if s.reconnect == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "reconnect is not available"})
		return
	}
	s.reconnect()
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
