package http

// ExtractRequest is the body accepted by both /groq endpoints. HTML holds
// arbitrary page text; it is not parsed as HTML unless the service runs
// with a non-raw input mode. An absent or null field is the empty string;
// numbers, booleans, arrays and objects are used as their JSON text.
type ExtractRequest struct {
	HTML string `json:"html"`
}

// ErrorResponse is the envelope for request and server errors.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}
