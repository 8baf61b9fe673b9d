package model

// APIResponse is the JSON envelope returned by every API endpoint
type APIResponse struct {
	Status  string    `json:"status"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError represents error response details
type APIError struct {
	Code    string `json:"error_code"`
	Message string `json:"message"`
}
