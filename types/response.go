package types

// ErrorDetail represents the error payload details
type ErrorDetail struct {
	Timestamp    string `json:"timestamp"`
	Path         string `json:"path"`
	ErrorMessage string `json:"error_message"`
	ErrorCode    int    `json:"error_code,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
}

// ErrorResponse represents the standardized error response structure
type ErrorResponse struct {
	StatusCode int         `json:"status_code"`
	IsSuccess  bool        `json:"is_success"`
	Error      ErrorDetail `json:"error,omitempty"`
}

// SuccessResponse represents the standardized success response structure
type SuccessResponse[T any] struct {
	StatusCode int  `json:"status_code"`
	IsSuccess  bool `json:"is_success"`
	Data       T    `json:"data,omitempty"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Page    int  `json:"page"`
	HasMore bool `json:"hasMore"`
}

// NewErrorResponse builds an ErrorResponse stamped with timestamp.
func NewErrorResponse(statusCode int, timestamp, path, message string, code int, traceID string) ErrorResponse {
	return ErrorResponse{
		StatusCode: statusCode,
		IsSuccess:  false,
		Error: ErrorDetail{
			Timestamp:    timestamp,
			Path:         path,
			ErrorMessage: message,
			ErrorCode:    code,
			TraceID:      traceID,
		},
	}
}
