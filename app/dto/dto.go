package dto

// APIResponse is the envelope every segmentation endpoint returns. Data
// carries the segment payload on success; Error carries the failure detail.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail carries a machine-readable error code plus optional detail,
// such as the offending criterion when validation fails.
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}
