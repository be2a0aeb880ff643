package yaade

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request correlation id.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// NewRequestID generates a new request id.
func NewRequestID() string {
	return uuid.NewString()
}

// RequestIDFromHeader returns the inbound request id, or "" when it is
// missing or not a short printable token.
func RequestIDFromHeader(r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if len(id) > maxRequestIDLength {
		return ""
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return ""
		}
	}
	return id
}
