package middleware

import (
	"net/http"

	"github.com/devmarvs/yaade/apperr"
)

// responseRecorder observes the status and size of the response passing
// through it. Middlewares that wrap each other stack recorders.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{ResponseWriter: w}
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

// Flush keeps streaming handlers working behind the recorder.
func (r *responseRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// finalStatus is the status the client sees once the App's error handler
// has rendered err. A status already sent wins.
func finalStatus(r *responseRecorder, err error) int {
	switch {
	case r.status != 0:
		return r.status
	case err == nil:
		return http.StatusOK
	}
	if appErr := apperr.As(err); appErr != nil {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
