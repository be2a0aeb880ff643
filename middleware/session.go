package middleware

import (
	"errors"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/session"
)

// SessionOptions configures session attachment.
type SessionOptions struct {
	Store     session.Store
	Cookie    session.CookieOptions
	SkipPaths []string
}

// Session attaches a session to every request. A valid cookie loads the
// stored session; a missing, unknown or expired one gets a fresh anonymous
// session. The response always carries the cookie.
func Session(store session.Store, cookie session.CookieOptions) yaade.Middleware {
	return SessionWithOptions(SessionOptions{Store: store, Cookie: cookie})
}

// SessionWithOptions attaches sessions except on skipped paths.
func SessionWithOptions(options SessionOptions) yaade.Middleware {
	skip := newSkipList(options.SkipPaths)
	return func(next yaade.Handler) yaade.Handler {
		return func(ctx *yaade.Context) error {
			if skip.match(ctx.Request.URL.Path) {
				return next(ctx)
			}
			if options.Store == nil {
				return apperr.Internal("session store not configured", nil)
			}

			sess, err := loadOrCreate(ctx, options.Store, options.Cookie)
			if err != nil {
				return err
			}

			session.SetCookie(ctx.ResponseWriter, sess.ID, options.Cookie)
			ctx.SetSession(sess)
			return next(ctx)
		}
	}
}

func loadOrCreate(ctx *yaade.Context, store session.Store, cookie session.CookieOptions) (*session.Session, error) {
	if id := session.CookieValue(ctx.Request, cookie); id != "" {
		sess, err := store.Load(ctx.Context(), id)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, session.ErrNotFound) {
			return nil, apperr.Internal("session load failed", err)
		}
		ctx.Logger().Debug("session cookie not recognized, starting a new session")
	}

	sess, err := store.Create(ctx.Context())
	if err != nil {
		return nil, apperr.Internal("session create failed", err)
	}
	ctx.Logger().Debug("session created")
	return sess, nil
}
