package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sniper-core/internal/risk"
	"sniper-core/pkg/ledger"
)

func (s *Server) getLimits(c *gin.Context) {
	c.JSON(http.StatusOK, s.Gate.GetLimits())
}

func (s *Server) updateLimits(c *gin.Context) {
	var limits risk.Limits
	if err := c.ShouldBindJSON(&limits); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Gate.UpdateLimits(c.Request.Context(), limits); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, limits)
}

func (s *Server) resetVolumes(c *gin.Context) {
	s.Gate.ResetDailyVolumes()
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) getBlacklist(c *gin.Context) {
	entries := s.Gate.Blacklist()
	out := make(map[string]string, len(entries))
	for id, reason := range entries {
		out[id.String()] = reason
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) addBlacklist(c *gin.Context) {
	var body struct {
		Token  string `json:"token" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := ledger.ParseIdentity(body.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token identity"})
		return
	}
	s.Gate.MarkBlacklisted(id, body.Reason)
	c.JSON(http.StatusOK, gin.H{"status": "blacklisted"})
}

func (s *Server) removeBlacklist(c *gin.Context) {
	id, err := ledger.ParseIdentity(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token identity"})
		return
	}
	s.Gate.Unflag(id)
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) getPending(c *gin.Context) {
	type entry struct {
		Signature   string `json:"signature"`
		SubmittedAt string `json:"submitted_at"`
	}
	pending := s.Pending.Snapshot()
	out := make([]entry, 0, len(pending))
	for _, tx := range pending {
		out = append(out, entry{
			Signature:   string(tx.Signature),
			SubmittedAt: tx.SubmittedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getTransactions(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "persistence disabled"})
		return
	}
	recs, err := s.DB.ListTransactions(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) getWallet(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"identity": s.Exec.Payer().String()})
}

func (s *Server) getBalance(c *gin.Context) {
	balance, err := s.Client.GetBalance(c.Request.Context(), s.Exec.Payer())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"lamports": balance})
}
