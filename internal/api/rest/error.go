package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ticketbay/tb-projector/internal/domain"
	"github.com/ticketbay/tb-projector/internal/logger"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	errCodeBadRequest        ErrorCode = "bad_request"
	errCodeNotFound          ErrorCode = "not_found"
	errCodeValidationFailed  ErrorCode = "validation_failed"
	errCodeUnauthorized      ErrorCode = "unauthorized"
	errCodeSubmissionDecline ErrorCode = "submission_declined"
	errCodeMutationInFlight  ErrorCode = "mutation_in_flight"
	errCodeItemAlreadySold   ErrorCode = "item_already_sold"
	errCodeExecution         ErrorCode = "execution"

	// Server errors (5xx)
	errCodeInternalError      ErrorCode = "internal_error"
	errCodeServiceUnavailable ErrorCode = "service_unavailable"
)

// errorResponse represents a standardized error response
type errorResponse struct {
	Error errorDetail `json:"error"`
}

// errorDetail contains error information
type errorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// respondWithError sends a standardized error response
func respondWithError(c *gin.Context, statusCode int, code ErrorCode, message string, details ...string) {
	response := errorResponse{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	}

	if len(details) > 0 {
		response.Error.Details = details[0]
	}

	c.JSON(statusCode, response)
}

// respondBadRequest sends a 400 Bad Request response
func respondBadRequest(c *gin.Context, message string, details ...string) {
	respondWithError(c, http.StatusBadRequest, errCodeBadRequest, message, details...)
}

// respondValidationError sends a 400 Bad Request with validation error
func respondValidationError(c *gin.Context, details string) {
	respondWithError(c, http.StatusBadRequest, errCodeValidationFailed, "Validation failed", details)
}

// respondDomainError maps a domain error to its HTTP representation
func respondDomainError(c *gin.Context, err error) {
	var validation *domain.ValidationError
	var execution *domain.ExecutionError

	switch {
	case errors.As(err, &validation):
		respondValidationError(c, validation.Error())

	case errors.Is(err, domain.ErrLedgerUnavailable):
		respondWithError(c, http.StatusServiceUnavailable, errCodeServiceUnavailable,
			"Ledger unavailable", err.Error())

	case errors.Is(err, domain.ErrSubmissionDeclined):
		respondWithError(c, http.StatusConflict, errCodeSubmissionDecline,
			"Submission declined", err.Error())

	case errors.Is(err, domain.ErrMutationInFlight):
		respondWithError(c, http.StatusConflict, errCodeMutationInFlight,
			"Another mutation is pending finality", err.Error())

	case errors.Is(err, domain.ErrItemAlreadySold):
		respondWithError(c, http.StatusConflict, errCodeItemAlreadySold,
			"Item already sold", err.Error())

	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrOfferNotFound):
		respondWithError(c, http.StatusNotFound, errCodeNotFound, err.Error())

	case errors.As(err, &execution):
		respondWithError(c, http.StatusUnprocessableEntity, errCodeExecution,
			"Ledger rejected the mutation", execution.Reason)

	default:
		logger.Error(err, zap.String("path", c.Request.URL.Path))
		respondWithError(c, http.StatusInternalServerError, errCodeInternalError,
			"Internal server error")
	}
}
