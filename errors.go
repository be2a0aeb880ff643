package yaade

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/render"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// DefaultErrorHandler renders {"error":{code,message,details}}, or plain
// text when the client prefers it. Internal errors keep their cause in the
// log only. Nothing is written for a client that already went away.
func DefaultErrorHandler(ctx *Context, err error) {
	if errors.Is(err, ErrClientClosed) {
		return
	}
	status := http.StatusInternalServerError
	body := errorBody{Code: apperr.CodeInternal, Message: "internal server error"}
	if appErr := apperr.As(err); appErr != nil && appErr.Code != apperr.CodeInternal {
		status = appErr.Status
		body = errorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}

	level := slog.LevelDebug
	msg := "request rejected"
	if status >= http.StatusInternalServerError {
		level, msg = slog.LevelError, "request failed"
	}
	ctx.Logger().log(level, msg, []slog.Attr{
		slog.String("code", body.Code),
		slog.String("error", err.Error()),
	})

	if render.Negotiate(ctx.Request) == render.FormatJSON {
		_ = ctx.JSON(status, map[string]errorBody{"error": body})
		return
	}
	text := body.Message
	if body.Details != "" {
		text += ": " + body.Details
	}
	_ = ctx.Text(status, text)
}
