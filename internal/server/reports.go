package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) GetClaimSummary(c *gin.Context) {
	f, err := parseReportFilters(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp, err := s.querySvc.ClaimSummary(c.Request.Context(), f)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRejectedClaims(c *gin.Context) {
	f, err := parseReportFilters(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp, err := s.querySvc.RejectedClaims(c.Request.Context(), f)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBalanceAging(c *gin.Context) {
	f, err := parseReportFilters(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp, err := s.querySvc.BalanceAging(c.Request.Context(), f)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDoctorDenial(c *gin.Context) {
	f, err := parseReportFilters(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	resp, err := s.querySvc.DoctorDenial(c.Request.Context(), f)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetFilterOptions(c *gin.Context) {
	resp, err := s.querySvc.Options(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetClaimRemittances(c *gin.Context) {
	claimID := strings.TrimSpace(c.Param("claim_id"))
	if claimID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	resp, err := s.querySvc.RemittanceDetail(c.Request.Context(), claimID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type refreshRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PostRefresh kicks off a report rebuild for the requested range. The
// range is validated up front, the rebuild itself runs detached from
// the request.
func (s *Server) PostRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	from, err := parseRefreshTime(req.From)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	to, err := parseRefreshTime(req.To)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if from.IsZero() || to.IsZero() || from.After(to) {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RefreshTableTimeout)
		defer cancel()
		if err := s.aggregates.RefreshRange(ctx, from, to); err != nil {
			s.log.Error("report refresh failed",
				zap.Time("from", from),
				zap.Time("to", to),
				zap.Error(err),
			)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{
		"status": "accepted",
		"from":   from,
		"to":     to,
	}})
}

func (s *Server) GetRefreshRuns(c *gin.Context) {
	runs, err := s.aggregates.LastRuns(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

func parseRefreshTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return time.Time{}, ErrInvalidRequest
	}
	return ts.UTC(), nil
}
