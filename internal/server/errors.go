package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	claimsdomain "github.com/acmehealth/claimsight/internal/claims/domain"
	ingestdomain "github.com/acmehealth/claimsight/internal/ingest/domain"
	aggdomain "github.com/acmehealth/claimsight/internal/reporting/aggregate/domain"
	"github.com/acmehealth/claimsight/internal/reporting/query"
	rollupservice "github.com/acmehealth/claimsight/internal/rollup/service"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
)

// ErrorHandlingMiddleware maps service errors collected on the context
// into JSON payloads after the handler chain runs.
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

func mapError(err error) (int, errorPayload) {
	var sortErr *query.InvalidSortError
	var refreshErr *aggdomain.RefreshError

	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case errors.As(err, &sortErr),
		errors.As(err, &refreshErr),
		errors.Is(err, query.ErrInvalidMode),
		errors.Is(err, query.ErrInvalidRange),
		errors.Is(err, ingestdomain.ErrMissingClaimID),
		errors.Is(err, ingestdomain.ErrMissingActivity),
		errors.Is(err, ingestdomain.ErrEmptyRemittance),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, claimsdomain.ErrClaimKeyNotFound),
		errors.Is(err, claimsdomain.ErrClaimNotFound),
		errors.Is(err, rollupservice.ErrPaymentNotFound),
		errors.Is(err, ErrNotFound):
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

// classifyErrorForLog tags the request log line with the error family.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= http.StatusInternalServerError:
		return "error", payload.Type
	case status >= http.StatusBadRequest:
		return "warn", payload.Type
	default:
		return "info", payload.Type
	}
}
