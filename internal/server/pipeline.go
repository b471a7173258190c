package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	pipelinedomain "github.com/smallbiznis/dealdesk/internal/pipeline/domain"
)

type createPipelineRequest struct {
	Name         string                              `json:"name"`
	IsDefault    bool                                `json:"is_default"`
	DisplayOrder int                                 `json:"display_order"`
	Stages       []pipelinedomain.CreateStageRequest `json:"stages"`
}

func (s *Server) CreatePipeline(c *gin.Context) {
	var req createPipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pipelineSvc.Create(c.Request.Context(), pipelinedomain.CreatePipelineRequest{
		OrgID:        s.orgID(c),
		Name:         strings.TrimSpace(req.Name),
		IsDefault:    req.IsDefault,
		DisplayOrder: req.DisplayOrder,
		Stages:       req.Stages,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updatePipelineRequest struct {
	Name      *string `json:"name"`
	IsActive  *bool   `json:"is_active"`
	IsDefault *bool   `json:"is_default"`
}

func (s *Server) UpdatePipeline(c *gin.Context) {
	var req updatePipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pipelineSvc.Update(c.Request.Context(), pipelinedomain.UpdatePipelineRequest{
		OrgID:     s.orgID(c),
		ID:        strings.TrimSpace(c.Param("id")),
		Name:      req.Name,
		IsActive:  req.IsActive,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPipelineByID(c *gin.Context) {
	resp, err := s.pipelineSvc.GetByID(c.Request.Context(), pipelinedomain.GetPipelineRequest{
		OrgID: s.orgID(c),
		ID:    strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPipelines(c *gin.Context) {
	resp, err := s.pipelineSvc.List(c.Request.Context(), s.orgID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddStage(c *gin.Context) {
	var req pipelinedomain.CreateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pipelineSvc.AddStage(c.Request.Context(), pipelinedomain.AddStageRequest{
		OrgID:      s.orgID(c),
		PipelineID: strings.TrimSpace(c.Param("id")),
		Stage:      req,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateStageRequest struct {
	Name               *string `json:"name"`
	IsActive           *bool   `json:"is_active"`
	DefaultProbability *int16  `json:"default_probability"`
	Color              *string `json:"color"`
}

func (s *Server) UpdateStage(c *gin.Context) {
	var req updateStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pipelineSvc.UpdateStage(c.Request.Context(), pipelinedomain.UpdateStageRequest{
		OrgID:              s.orgID(c),
		ID:                 strings.TrimSpace(c.Param("id")),
		Name:               req.Name,
		IsActive:           req.IsActive,
		DefaultProbability: req.DefaultProbability,
		Color:              req.Color,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStages(c *gin.Context) {
	resp, err := s.pipelineSvc.ListStages(c.Request.Context(), pipelinedomain.ListStagesRequest{
		OrgID:      s.orgID(c),
		PipelineID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
