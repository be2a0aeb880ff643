package middleware

import (
	"net/http"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/security"
)

// SecurityHeadersOptions configures hardening headers for responses.
// Empty fields are not sent.
type SecurityHeadersOptions struct {
	FrameOptions            string
	ReferrerPolicy          string
	ContentSecurityPolicy   string
	StrictTransportSecurity string
	DisableNosniff          bool
}

// DefaultSecurityHeaders suits the bundled single-page client, which loads
// scripts and styles from its own origin only.
func DefaultSecurityHeaders() SecurityHeadersOptions {
	return SecurityHeadersOptions{
		FrameOptions:          "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: security.ClientPolicy().String(),
	}
}

// SecurityHeaders sets the configured headers before the handler runs, so
// error responses carry them as well.
func SecurityHeaders(options SecurityHeadersOptions) yaade.Middleware {
	headers := http.Header{}
	if !options.DisableNosniff {
		headers.Set("X-Content-Type-Options", "nosniff")
	}
	set := func(name, value string) {
		if value != "" {
			headers.Set(name, value)
		}
	}
	set("X-Frame-Options", options.FrameOptions)
	set("Referrer-Policy", options.ReferrerPolicy)
	set("Content-Security-Policy", options.ContentSecurityPolicy)
	set("Strict-Transport-Security", options.StrictTransportSecurity)

	return func(next yaade.Handler) yaade.Handler {
		return func(ctx *yaade.Context) error {
			dst := ctx.ResponseWriter.Header()
			for name, values := range headers {
				dst[name] = append([]string(nil), values...)
			}
			return next(ctx)
		}
	}
}
