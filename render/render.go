// Package render writes HTTP responses.
package render

import (
	"encoding/json"
	"net/http"

	"github.com/elnormous/contenttype"
)

// Format is a negotiated response format.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

var (
	jsonMediaType = contenttype.NewMediaType("application/json")
	textMediaType = contenttype.NewMediaType("text/plain")
	offered       = []contenttype.MediaType{jsonMediaType, textMediaType}
)

// Negotiate picks JSON or text from the Accept header. JSON wins when the
// client accepts both or sends no preference.
func Negotiate(r *http.Request) Format {
	accepted, _, err := contenttype.GetAcceptableMediaType(r, offered)
	if err != nil {
		return FormatText
	}
	if accepted.Type == textMediaType.Type && accepted.Subtype == textMediaType.Subtype {
		return FormatText
	}
	return FormatJSON
}

// JSON writes a JSON response. The payload is encoded before any header is
// sent, so an encoding failure leaves the response untouched.
func JSON(w http.ResponseWriter, status int, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(append(data, '\n'))
	return err
}

// Text writes a text response.
func Text(w http.ResponseWriter, status int, message string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, err := w.Write([]byte(message))
	return err
}

// Status writes a bodiless response.
func Status(w http.ResponseWriter, status int) error {
	w.WriteHeader(status)
	return nil
}
