package session

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the cookie carrying the session identifier.
const DefaultCookieName = "yaade_session"

// CookieOptions configures the session cookie.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	MaxAge   time.Duration
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// DefaultCookieOptions returns an HttpOnly, SameSite=Lax cookie on "/".
func DefaultCookieOptions(maxAge time.Duration) CookieOptions {
	return CookieOptions{
		Name:     DefaultCookieName,
		Path:     "/",
		MaxAge:   maxAge,
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (o CookieOptions) normalized() CookieOptions {
	if o.Name == "" {
		o.Name = DefaultCookieName
	}
	if o.Path == "" {
		o.Path = "/"
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// CookieValue returns the session id sent by the client, or "".
func CookieValue(r *http.Request, options CookieOptions) string {
	cookie, err := r.Cookie(options.normalized().Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, id string, options CookieOptions) {
	options = options.normalized()
	cookie := &http.Cookie{
		Name:     options.Name,
		Value:    id,
		Path:     options.Path,
		Domain:   options.Domain,
		Secure:   options.Secure,
		HttpOnly: options.HTTPOnly,
		SameSite: options.SameSite,
	}
	if options.MaxAge > 0 {
		cookie.MaxAge = int(options.MaxAge.Seconds())
		cookie.Expires = time.Now().Add(options.MaxAge)
	}
	http.SetCookie(w, cookie)
}

// ClearCookie expires the session cookie, replacing any session cookie
// already queued on the response.
func ClearCookie(w http.ResponseWriter, options CookieOptions) {
	options = options.normalized()
	header := w.Header()
	kept := header["Set-Cookie"][:0]
	for _, line := range header["Set-Cookie"] {
		if !strings.HasPrefix(line, options.Name+"=") {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		header.Del("Set-Cookie")
	} else {
		header["Set-Cookie"] = kept
	}
	http.SetCookie(w, &http.Cookie{
		Name:     options.Name,
		Value:    "",
		Path:     options.Path,
		Domain:   options.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   options.Secure,
		HttpOnly: options.HTTPOnly,
		SameSite: options.SameSite,
	})
}
