package http

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// FieldError describes one rejected request parameter. Field is the wire name.
type FieldError struct {
	Code    string                 `json:"code" example:"ERR_LTE"`
	Field   string                 `json:"field,omitempty" example:"limit"`
	Message string                 `json:"message" example:"limit must be at most 500"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ValidationErrors is returned by ReadAndValidateRequest.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "invalid request"
	}
	return v[0].Message
}

// ListDataResponse holds one page of rows and the size of the full result.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
