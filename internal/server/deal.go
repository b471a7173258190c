package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dealdomain "github.com/smallbiznis/dealdesk/internal/deal/domain"
	"github.com/smallbiznis/dealdesk/pkg/db/pagination"
)

type createDealRequest struct {
	PipelineID        string         `json:"pipeline_id"`
	StageID           string         `json:"stage_id"`
	Title             string         `json:"title"`
	AmountCents       *int64         `json:"amount_cents"`
	Currency          string         `json:"currency"`
	Probability       *int16         `json:"probability"`
	ExpectedCloseDate string         `json:"expected_close_date"`
	OwnerID           string         `json:"owner_id"`
	DealType          string         `json:"deal_type"`
	Tags              []string       `json:"tags"`
	CustomFields      map[string]any `json:"custom_fields"`
}

func (s *Server) CreateDeal(c *gin.Context) {
	var req createDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	expectedCloseDate, err := parseOptionalTime(req.ExpectedCloseDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("expected_close_date", "invalid_close_date", "invalid expected_close_date"))
		return
	}

	resp, err := s.dealSvc.Create(c.Request.Context(), dealdomain.CreateDealRequest{
		OrgID:             s.orgID(c),
		ActorID:           s.actorID(c),
		PipelineID:        strings.TrimSpace(req.PipelineID),
		StageID:           strings.TrimSpace(req.StageID),
		Title:             strings.TrimSpace(req.Title),
		AmountCents:       req.AmountCents,
		Currency:          strings.TrimSpace(req.Currency),
		Probability:       req.Probability,
		ExpectedCloseDate: expectedCloseDate,
		OwnerID:           strings.TrimSpace(req.OwnerID),
		DealType:          strings.TrimSpace(req.DealType),
		Tags:              req.Tags,
		CustomFields:      req.CustomFields,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateDealRequest struct {
	StageID           *string        `json:"stage_id"`
	Title             *string        `json:"title"`
	AmountCents       *int64         `json:"amount_cents"`
	ClearAmount       bool           `json:"clear_amount"`
	Currency          *string        `json:"currency"`
	Probability       *int16         `json:"probability"`
	ExpectedCloseDate *string        `json:"expected_close_date"`
	OwnerID           *string        `json:"owner_id"`
	DealType          *string        `json:"deal_type"`
	Tags              []string       `json:"tags"`
	CustomFields      map[string]any `json:"custom_fields"`
}

func (s *Server) UpdateDeal(c *gin.Context) {
	var req updateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := dealdomain.UpdateDealRequest{
		OrgID:        s.orgID(c),
		ActorID:      s.actorID(c),
		ID:           strings.TrimSpace(c.Param("id")),
		StageID:      req.StageID,
		Title:        req.Title,
		AmountCents:  req.AmountCents,
		ClearAmount:  req.ClearAmount,
		Currency:     req.Currency,
		Probability:  req.Probability,
		OwnerID:      req.OwnerID,
		DealType:     req.DealType,
		Tags:         req.Tags,
		CustomFields: req.CustomFields,
	}

	if req.ExpectedCloseDate != nil {
		parsed, err := parseOptionalTime(*req.ExpectedCloseDate, false)
		if err != nil {
			AbortWithError(c, newValidationError("expected_close_date", "invalid_close_date", "invalid expected_close_date"))
			return
		}
		update.ExpectedCloseDate = parsed
	}

	resp, err := s.dealSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetDealByID(c *gin.Context) {
	resp, err := s.dealSvc.GetByID(c.Request.Context(), dealdomain.GetDealRequest{
		OrgID: s.orgID(c),
		ID:    strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListDeals(c *gin.Context) {
	var query struct {
		pagination.Pagination
		PipelineID   string `form:"pipeline_id"`
		StageID      string `form:"stage_id"`
		OwnerID      string `form:"owner_id"`
		Currency     string `form:"currency"`
		Status       string `form:"status"`
		ExpectedFrom string `form:"expected_from"`
		ExpectedTo   string `form:"expected_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	expectedFrom, err := parseOptionalTime(query.ExpectedFrom, false)
	if err != nil {
		AbortWithError(c, newValidationError("expected_from", "invalid_expected_from", "invalid expected_from"))
		return
	}

	expectedTo, err := parseOptionalTime(query.ExpectedTo, true)
	if err != nil {
		AbortWithError(c, newValidationError("expected_to", "invalid_expected_to", "invalid expected_to"))
		return
	}

	resp, err := s.dealSvc.List(c.Request.Context(), dealdomain.ListDealRequest{
		OrgID:        s.orgID(c),
		PageToken:    query.PageToken,
		PageSize:     int32(query.PageSize),
		PipelineID:   strings.TrimSpace(query.PipelineID),
		StageID:      strings.TrimSpace(query.StageID),
		OwnerID:      strings.TrimSpace(query.OwnerID),
		Currency:     strings.TrimSpace(query.Currency),
		Status:       strings.TrimSpace(query.Status),
		ExpectedFrom: expectedFrom,
		ExpectedTo:   expectedTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteDeal(c *gin.Context) {
	err := s.dealSvc.Delete(c.Request.Context(), dealdomain.DeleteDealRequest{
		OrgID:   s.orgID(c),
		ActorID: s.actorID(c),
		ID:      strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

type moveDealRequest struct {
	StageID string `json:"stage_id"`
	Reason  string `json:"reason"`
}

func (s *Server) MoveDealToStage(c *gin.Context) {
	var req moveDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.dealSvc.MoveToStage(c.Request.Context(), dealdomain.MoveDealRequest{
		OrgID:   s.orgID(c),
		ActorID: s.actorID(c),
		ID:      strings.TrimSpace(c.Param("id")),
		StageID: strings.TrimSpace(req.StageID),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type bulkMoveRequest struct {
	IDs     []string `json:"ids"`
	StageID string   `json:"stage_id"`
}

func (s *Server) BulkMoveDeals(c *gin.Context) {
	var req bulkMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	moved, err := s.dealSvc.BulkMoveToStage(c.Request.Context(), dealdomain.BulkMoveRequest{
		OrgID:   s.orgID(c),
		ActorID: s.actorID(c),
		IDs:     req.IDs,
		StageID: strings.TrimSpace(req.StageID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"moved": moved}})
}

func (s *Server) ListDealHistory(c *gin.Context) {
	resp, err := s.dealSvc.ListHistory(c.Request.Context(), dealdomain.ListHistoryRequest{
		OrgID: s.orgID(c),
		ID:    strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
