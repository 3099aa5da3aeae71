package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	refdatadomain "github.com/acmehealth/claimsight/internal/refdata/domain"
)

type referenceItemRequest struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
	Name string `json:"name"`
}

func (s *Server) GetReferenceItem(c *gin.Context) {
	kind := strings.TrimSpace(c.Param("kind"))
	code := strings.TrimSpace(c.Param("code"))
	if kind == "" || code == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item, err := s.refdataSvc.Resolve(c.Request.Context(), refdatadomain.Kind(kind), code)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) PutReferenceItem(c *gin.Context) {
	var req referenceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	kind := strings.TrimSpace(req.Kind)
	code := strings.TrimSpace(req.Code)
	name := strings.TrimSpace(req.Name)
	if kind == "" || code == "" || name == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	item := refdatadomain.Item{Kind: refdatadomain.Kind(kind), Code: code, Name: name}
	if err := s.refdataSvc.Upsert(c.Request.Context(), item); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) PostReferenceInvalidate(c *gin.Context) {
	if err := s.refdataSvc.Invalidate(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "invalidated"}})
}
