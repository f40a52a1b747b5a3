package api

import (
	"errors"
	"net/http"

	"automateeasy/internal/api/response"
	"automateeasy/internal/catalog"
	"automateeasy/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListTemplates(c *gin.Context) {
	templates := s.catalog.List()
	response.OKList(c, len(templates), gin.H{"templates": templates})
}

func (s *Server) handleSearchTemplates(c *gin.Context) {
	templates := s.catalog.Search(c.Query("query"), c.Query("category"))
	response.OKList(c, len(templates), gin.H{"templates": templates})
}

func (s *Server) handleTemplateCategories(c *gin.Context) {
	categories := s.catalog.Categories()
	response.OKList(c, len(categories), gin.H{"categories": categories})
}

func (s *Server) handleGetTemplate(c *gin.Context) {
	detail, err := s.catalog.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			err = apperr.NotFound("Template not found").Wrap(err)
		}
		response.Error(c, s.logger, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"template": detail})
}
