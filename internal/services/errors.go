// Package services holds the request-level logic between the HTTP handlers
// and the forecast engine, history sources, cache and job queue.
package services

import "errors"

// Service error codes
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodePipeline    = "PIPELINE_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeUnavailable = "UNAVAILABLE"
	CodeRateLimited = "RATE_LIMITED"
)

// ServiceError represents a service layer error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError creates a new ServiceError
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
	}
}

// NewServiceErrorWithDetails creates a new ServiceError with details
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

func validationError(field, message string) *ServiceError {
	return NewServiceErrorWithDetails(CodeValidation, message, map[string]interface{}{"field": field})
}

// pipelineError surfaces an unexpected fault with the underlying message
func pipelineError(err error) *ServiceError {
	return NewServiceError(CodePipeline, err.Error())
}

// AsServiceError unwraps err into a ServiceError. Errors of any other type
// become PIPELINE_ERROR.
func AsServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return pipelineError(err)
}
