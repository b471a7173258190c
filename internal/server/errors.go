package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dealdomain "github.com/smallbiznis/dealdesk/internal/deal/domain"
	forecastdomain "github.com/smallbiznis/dealdesk/internal/forecast/domain"
	pipelinedomain "github.com/smallbiznis/dealdesk/internal/pipeline/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case isPipelineValidationError(err),
		isDealValidationError(err),
		isForecastValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, pipelinedomain.ErrPipelineNotFound),
		errors.Is(err, pipelinedomain.ErrStageNotFound),
		errors.Is(err, dealdomain.ErrDealNotFound),
		errors.Is(err, dealdomain.ErrPipelineNotFound),
		errors.Is(err, dealdomain.ErrStageNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isPipelineValidationError(err error) bool {
	switch {
	case errors.Is(err, pipelinedomain.ErrInvalidOrganization),
		errors.Is(err, pipelinedomain.ErrInvalidName),
		errors.Is(err, pipelinedomain.ErrInvalidID),
		errors.Is(err, pipelinedomain.ErrMissingStages),
		errors.Is(err, pipelinedomain.ErrInvalidDisplayOrder),
		errors.Is(err, pipelinedomain.ErrInvalidProbability),
		errors.Is(err, pipelinedomain.ErrWonStageNotClosed):
		return true
	default:
		return false
	}
}

func isDealValidationError(err error) bool {
	switch {
	case errors.Is(err, dealdomain.ErrInvalidOrganization),
		errors.Is(err, dealdomain.ErrInvalidActor),
		errors.Is(err, dealdomain.ErrInvalidID),
		errors.Is(err, dealdomain.ErrInvalidTitle),
		errors.Is(err, dealdomain.ErrPipelineInactive),
		errors.Is(err, dealdomain.ErrStageInactive),
		errors.Is(err, dealdomain.ErrInvalidStage),
		errors.Is(err, dealdomain.ErrInvalidAmount),
		errors.Is(err, dealdomain.ErrInvalidProbability),
		errors.Is(err, dealdomain.ErrInvalidCurrency),
		errors.Is(err, dealdomain.ErrInvalidCloseDate),
		errors.Is(err, dealdomain.ErrInvalidDealType),
		errors.Is(err, dealdomain.ErrInvalidStatus):
		return true
	default:
		return false
	}
}

func isForecastValidationError(err error) bool {
	switch {
	case errors.Is(err, forecastdomain.ErrInvalidOrganization),
		errors.Is(err, forecastdomain.ErrInvalidID),
		errors.Is(err, forecastdomain.ErrInvalidRange),
		errors.Is(err, forecastdomain.ErrInvalidQuarter),
		errors.Is(err, forecastdomain.ErrInvalidMonth),
		errors.Is(err, forecastdomain.ErrInvalidCurrency):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}
