package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"automateeasy/internal/api/response"

	"github.com/gin-gonic/gin"
)

type cloneScenarioRequest struct {
	TeamID json.Number `json:"teamId"`
	Name   string      `json:"name"`
}

// upstream 把 Make.com 的原始响应放进 data 字段返回。
func (s *Server) upstream(c *gin.Context, body json.RawMessage, err error) {
	if err != nil {
		response.Error(c, s.logger, err)
		return
	}
	if len(body) == 0 {
		body = json.RawMessage("null")
	}
	response.OK(c, http.StatusOK, body)
}

func (s *Server) handleMakeTeams(c *gin.Context) {
	body, err := s.make.GetTeams(c.Request.Context())
	s.upstream(c, body, err)
}

func (s *Server) handleMakeScenarios(c *gin.Context) {
	body, err := s.make.GetScenarios(c.Request.Context(), c.Param("teamId"))
	s.upstream(c, body, err)
}

func (s *Server) handleMakeScenario(c *gin.Context) {
	body, err := s.make.GetScenario(c.Request.Context(), c.Param("id"))
	s.upstream(c, body, err)
}

func (s *Server) handleMakeClone(c *gin.Context) {
	var req cloneScenarioRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Fail(c, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if req.TeamID == "" {
		response.Fail(c, http.StatusBadRequest, "Please provide a teamId.")
		return
	}
	body, err := s.make.CloneScenario(c.Request.Context(), c.Param("id"), req.TeamID.String(), req.Name)
	s.upstream(c, body, err)
}

func (s *Server) handleMakeUpdate(c *gin.Context) {
	var req map[string]any
	if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
		response.Fail(c, http.StatusBadRequest, "Please provide the scenario fields to update.")
		return
	}
	body, err := s.make.UpdateScenario(c.Request.Context(), c.Param("id"), req)
	s.upstream(c, body, err)
}

func (s *Server) handleMakeActivate(c *gin.Context) {
	body, err := s.make.ActivateScenario(c.Request.Context(), c.Param("id"))
	s.upstream(c, body, err)
}

func (s *Server) handleMakeDeactivate(c *gin.Context) {
	body, err := s.make.DeactivateScenario(c.Request.Context(), c.Param("id"))
	s.upstream(c, body, err)
}

func (s *Server) handleMakeExecutions(c *gin.Context) {
	body, err := s.make.GetScenarioExecutions(c.Request.Context(), c.Param("id"), c.Request.URL.Query())
	s.upstream(c, body, err)
}
