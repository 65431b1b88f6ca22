package models

import "github.com/pifses/mlpipeline/internal/training"

// JobListResponse represents the list of training jobs
type JobListResponse struct {
	Jobs  []training.Job `json:"jobs"`
	Count int            `json:"count"`
}

// ErrorResponse represents error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}
