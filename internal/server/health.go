package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetHealth(c *gin.Context) {
	status := s.monitor.Status()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"data": status})
}
