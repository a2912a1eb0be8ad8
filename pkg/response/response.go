package response

// Envelope for middleware-level rejections. Handlers own their route
// specific response shapes; this package only covers responses written
// before a request reaches one.

// Response is the middleware rejection body.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorData  `json:"error,omitempty"`
}

// ErrorData carries a machine-readable code and a human message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError builds an error body without writing it, for use with
// AbortWithStatusJSON.
func NewError(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorData{
			Code:    code,
			Message: message,
		},
	}
}
