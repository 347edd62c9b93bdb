package types

// SuccessEnvelope wraps every successful API payload. The remote cart
// service speaks the same envelope, so cartapi reuses these types when
// decoding backend responses.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
