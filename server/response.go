package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/onchaincommerce/minibet/errors"
	"github.com/onchaincommerce/minibet/middleware"
	"github.com/onchaincommerce/minibet/types"
)

const ErrUndefinedErrorCode = -99

// ErrorDetail is an alias for types.ErrorDetail
// @Description Error payload details
type ErrorDetail = types.ErrorDetail

// ErrorResponse is an alias for types.ErrorResponse
// @Description Standardized error response
type ErrorResponse = types.ErrorResponse

// BaseResponse is types.SuccessResponse[interface{}] for swagger
// @Description Standard API response wrapper
type BaseResponse = types.SuccessResponse[interface{}]

// Success sends a success response
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, BaseResponse{
		StatusCode: statusCode,
		IsSuccess:  true,
		Data:       data,
	})
}

// OK sends a 200 OK response
func OK(c *gin.Context, data interface{}) {
	Success(c, http.StatusOK, data)
}

// Error sends an error response
func Error(c *gin.Context, statusCode int, err error) {
	errorMsg := err.Error()
	errCode := ErrUndefinedErrorCode
	if appErr, ok := apperrors.AsAppError(err); ok {
		errorMsg = appErr.Message
		errCode = appErr.Code
	}
	c.JSON(statusCode, types.NewErrorResponse(
		statusCode,
		time.Now().Format(time.RFC3339),
		c.Request.URL.Path,
		errorMsg,
		errCode,
		middleware.GetTraceID(c),
	))
}

// ErrorWithMessage sends an error response with a custom message
func ErrorWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, types.NewErrorResponse(
		statusCode,
		time.Now().Format(time.RFC3339),
		c.Request.URL.Path,
		message,
		ErrUndefinedErrorCode,
		middleware.GetTraceID(c),
	))
}

// BadRequest sends a 400 Bad Request response
func BadRequest(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, err)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(c *gin.Context, err error) {
	Error(c, http.StatusInternalServerError, err)
}

// ServiceUnavailable sends a 503 Service Unavailable response
func ServiceUnavailable(c *gin.Context, err error) {
	Error(c, http.StatusServiceUnavailable, err)
}

// HandleAppError maps an AppError code to its HTTP status. Anything else
// is a 500.
func HandleAppError(c *gin.Context, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		Error(c, apperrors.HTTPStatusFromCode(appErr.Code), appErr)
		return
	}
	InternalError(c, err)
}
