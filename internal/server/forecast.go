package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	forecastdomain "github.com/smallbiznis/dealdesk/internal/forecast/domain"
)

func (s *Server) GetRangeForecast(c *gin.Context) {
	var query struct {
		Start      string `form:"start"`
		End        string `form:"end"`
		PipelineID string `form:"pipeline_id"`
		Currency   string `form:"currency"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, err := parseOptionalTime(query.Start, false)
	if err != nil || start == nil {
		AbortWithError(c, newValidationError("start", "invalid_range", "invalid start"))
		return
	}

	end, err := parseOptionalTime(query.End, true)
	if err != nil || end == nil {
		AbortWithError(c, newValidationError("end", "invalid_range", "invalid end"))
		return
	}

	resp, err := s.forecastSvc.Range(c.Request.Context(), forecastdomain.RangeForecastRequest{
		OrgID:      s.orgID(c),
		Start:      *start,
		End:        *end,
		PipelineID: strings.TrimSpace(query.PipelineID),
		Currency:   strings.TrimSpace(query.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetQuarterForecast(c *gin.Context) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil {
		AbortWithError(c, newValidationError("year", "invalid_quarter", "invalid year"))
		return
	}

	quarter, err := strconv.Atoi(strings.TrimSpace(c.Query("quarter")))
	if err != nil {
		AbortWithError(c, newValidationError("quarter", "invalid_quarter", "invalid quarter"))
		return
	}

	resp, err := s.forecastSvc.Quarter(c.Request.Context(), forecastdomain.QuarterForecastRequest{
		OrgID:      s.orgID(c),
		Year:       year,
		Quarter:    quarter,
		PipelineID: strings.TrimSpace(c.Query("pipeline_id")),
		Currency:   strings.TrimSpace(c.Query("currency")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMonthForecast(c *gin.Context) {
	year, err := strconv.Atoi(strings.TrimSpace(c.Query("year")))
	if err != nil {
		AbortWithError(c, newValidationError("year", "invalid_month", "invalid year"))
		return
	}

	month, err := strconv.Atoi(strings.TrimSpace(c.Query("month")))
	if err != nil {
		AbortWithError(c, newValidationError("month", "invalid_month", "invalid month"))
		return
	}

	resp, err := s.forecastSvc.Month(c.Request.Context(), forecastdomain.MonthForecastRequest{
		OrgID:      s.orgID(c),
		Year:       year,
		Month:      time.Month(month),
		PipelineID: strings.TrimSpace(c.Query("pipeline_id")),
		Currency:   strings.TrimSpace(c.Query("currency")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
