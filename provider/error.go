package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is a rejection reported by the auth provider. The status is
// the provider's HTTP status for the failed operation; handlers mirror
// it to the browser instead of collapsing everything to 500.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"error_code,omitempty"`
	Message string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider: %s (status=%d)", e.Message, e.Status)
}

// parseError decodes the provider's error body. The provider is not
// consistent about field names across endpoints, so every known shape
// is tried before falling back to the bare status text.
func parseError(status int, body []byte) *Error {
	var raw struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		ErrorField       string `json:"error"`
		ErrorCode        string `json:"error_code"`
	}
	_ = json.Unmarshal(body, &raw)

	message := raw.Msg
	if message == "" {
		message = raw.Message
	}
	if message == "" {
		message = raw.ErrorDescription
	}
	if message == "" {
		message = raw.ErrorField
	}
	if message == "" {
		message = http.StatusText(status)
	}

	code := raw.ErrorCode
	if code == "" {
		code = raw.ErrorField
	}

	return &Error{
		Status:  status,
		Code:    code,
		Message: message,
	}
}
