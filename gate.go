package yaade

import (
	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/auth"
	"github.com/devmarvs/yaade/session"
)

// Authorized rejects requests whose session carries no principal before
// next runs. Otherwise the principal is stored on the Context.
func Authorized(next Handler) Handler {
	return func(ctx *Context) error {
		sess := ctx.Session()
		id, ok := sess.UserID()
		if !ok {
			return apperr.Unauthorized("authentication required", nil)
		}
		ctx.SetPrincipal(auth.Principal{ID: id, Username: sess.Get(session.UserNameKey)})
		return next(ctx)
	}
}
