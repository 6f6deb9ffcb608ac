package errx

// Response is the payload written to API clients
type Response struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Type    string                 `json:"type"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ToResponse converts an Error to its client payload. The underlying cause is
// only included when includeCause is set.
func (e *Error) ToResponse(includeCause bool) Response {
	resp := Response{
		Error:  e.Message,
		Code:   e.Code,
		Type:   string(e.Type),
		Status: e.HTTPStatus,
	}
	if len(e.Details) > 0 {
		resp.Details = e.Details
	}
	if includeCause && e.Err != nil {
		if resp.Details == nil {
			resp.Details = make(map[string]interface{})
		}
		resp.Details["cause"] = e.Err.Error()
	}
	return resp
}
