package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/devmarvs/yaade"
	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/auth"
	"github.com/devmarvs/yaade/health"
	"github.com/devmarvs/yaade/session"
	"github.com/devmarvs/yaade/store"
)

type handlers struct {
	store    *store.Store
	sessions session.Store
	provider auth.Provider
	health   *health.Registry
	cookie   session.CookieOptions
}

// operations wires the delegates: health and login are public, everything
// else sits behind the authorization gate.
func (h *handlers) operations() Operations {
	return Operations{
		Health:             yaade.Adapt(h.checkHealth),
		DoLogin:            yaade.Adapt(h.doLogin),
		GetCurrentUser:     yaade.Authorized(yaade.Adapt(h.getCurrentUser)),
		ChangeUserPassword: yaade.Authorized(yaade.Adapt(h.changeUserPassword)),
		GetAllCollections:  yaade.Authorized(yaade.Adapt(h.getAllCollections)),
		PostCollection:     yaade.Authorized(yaade.Adapt(h.postCollection)),
		PutCollection:      yaade.Authorized(yaade.Adapt(h.putCollection)),
		DeleteCollection:   yaade.Authorized(yaade.Adapt(h.deleteCollection)),
		PostRequest:        yaade.Authorized(yaade.Adapt(h.postRequest)),
		PutRequest:         yaade.Authorized(yaade.Adapt(h.putRequest)),
		DeleteRequest:      yaade.Authorized(yaade.Adapt(h.deleteRequest)),
	}
}

func (h *handlers) checkHealth(ctx *yaade.Context) (*yaade.Result, error) {
	report := h.health.Check(ctx.Context())
	status := http.StatusOK
	if !report.Up() {
		status = http.StatusServiceUnavailable
	}
	return &yaade.Result{Status: status, Body: report}, nil
}

func (h *handlers) doLogin(ctx *yaade.Context) (*yaade.Result, error) {
	var creds auth.Credentials
	if err := ctx.BindJSON(&creds); err != nil {
		return nil, err
	}

	principal, err := h.provider.Authenticate(ctx.Context(), creds)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return nil, apperr.Unauthorized("invalid username or password", err)
	}
	if err != nil {
		return nil, apperr.Internal("authentication failed", err)
	}

	sess := ctx.Session()
	if sess == nil {
		return nil, apperr.Internal("no session attached", nil)
	}
	_, err = session.Update(ctx.Context(), h.sessions, sess.ID, func(s *session.Session) error {
		s.SetUser(principal.ID, principal.Username)
		return nil
	})
	if errors.Is(err, session.ErrNotFound) {
		return nil, apperr.Unauthorized("session expired", err)
	}
	if err != nil {
		return nil, apperr.Internal("session update failed", err)
	}
	ctx.Logger().Info("user logged in", slogUser(principal))

	user, err := h.store.UserByID(ctx.Context(), principal.ID)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return yaade.OK(user), nil
}

func (h *handlers) logout(ctx *yaade.Context) error {
	if sess := ctx.Session(); sess != nil {
		if err := h.sessions.Invalidate(ctx.Context(), sess.ID); err != nil {
			return apperr.Internal("session invalidate failed", err)
		}
	}
	session.ClearCookie(ctx.ResponseWriter, h.cookie)
	return ctx.NoContent(http.StatusNoContent)
}

func (h *handlers) getCurrentUser(ctx *yaade.Context) (*yaade.Result, error) {
	user, err := h.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	return yaade.OK(user), nil
}

type passwordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *handlers) changeUserPassword(ctx *yaade.Context) (*yaade.Result, error) {
	var body passwordChange
	if err := ctx.BindJSON(&body); err != nil {
		return nil, err
	}
	user, err := h.currentUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, body.CurrentPassword); err != nil {
		return nil, apperr.BadRequest("current password is wrong", nil)
	}
	hash, err := auth.HashPassword(body.NewPassword)
	if errors.Is(err, auth.ErrEmptyPassword) {
		return nil, apperr.BadRequest("new password required", err)
	}
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	if err := h.store.UpdatePassword(ctx.Context(), user.ID, hash); err != nil {
		return nil, storeError(err, "user")
	}
	return yaade.NoContent(), nil
}

func (h *handlers) getAllCollections(ctx *yaade.Context) (*yaade.Result, error) {
	owner := h.owner(ctx)
	collections, err := h.store.ListCollections(ctx.Context(), owner)
	if err != nil {
		return nil, storeError(err, "collection")
	}
	return yaade.OK(collections), nil
}

type entityBody struct {
	ID           string          `json:"id"`
	CollectionID string          `json:"collectionId"`
	Version      int64           `json:"version"`
	Data         json.RawMessage `json:"data"`
}

func (h *handlers) postCollection(ctx *yaade.Context) (*yaade.Result, error) {
	var body entityBody
	if err := ctx.BindJSON(&body); err != nil {
		return nil, err
	}
	collection, err := h.store.CreateCollection(ctx.Context(), h.owner(ctx), body.Data)
	if err != nil {
		return nil, storeError(err, "collection")
	}
	return yaade.Created(collection), nil
}

func (h *handlers) putCollection(ctx *yaade.Context) (*yaade.Result, error) {
	var body entityBody
	if err := ctx.BindJSON(&body); err != nil {
		return nil, err
	}
	collection, err := h.store.UpdateCollection(ctx.Context(), h.owner(ctx), body.ID, body.Version, body.Data)
	if err != nil {
		return nil, storeError(err, "collection")
	}
	return yaade.OK(collection), nil
}

func (h *handlers) deleteCollection(ctx *yaade.Context) (*yaade.Result, error) {
	if err := h.store.DeleteCollection(ctx.Context(), h.owner(ctx), ctx.Param("id")); err != nil {
		return nil, storeError(err, "collection")
	}
	return yaade.NoContent(), nil
}

func (h *handlers) postRequest(ctx *yaade.Context) (*yaade.Result, error) {
	var body entityBody
	if err := ctx.BindJSON(&body); err != nil {
		return nil, err
	}
	request, err := h.store.CreateRequest(ctx.Context(), h.owner(ctx), body.CollectionID, body.Data)
	if err != nil {
		return nil, storeError(err, "collection")
	}
	return yaade.Created(request), nil
}

func (h *handlers) putRequest(ctx *yaade.Context) (*yaade.Result, error) {
	var body entityBody
	if err := ctx.BindJSON(&body); err != nil {
		return nil, err
	}
	request, err := h.store.UpdateRequest(ctx.Context(), h.owner(ctx), body.ID, body.Version, body.Data)
	if err != nil {
		return nil, storeError(err, "request")
	}
	return yaade.OK(request), nil
}

func (h *handlers) deleteRequest(ctx *yaade.Context) (*yaade.Result, error) {
	if err := h.store.DeleteRequest(ctx.Context(), h.owner(ctx), ctx.Param("id")); err != nil {
		return nil, storeError(err, "request")
	}
	return yaade.NoContent(), nil
}

// owner is the principal id; the gate guarantees a principal.
func (h *handlers) owner(ctx *yaade.Context) string {
	principal, _ := ctx.Principal()
	return principal.ID
}

func (h *handlers) currentUser(ctx *yaade.Context) (store.User, error) {
	user, err := h.store.UserByID(ctx.Context(), h.owner(ctx))
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, apperr.Unauthorized("user no longer exists", err)
	}
	if err != nil {
		return store.User{}, storeError(err, "user")
	}
	return user, nil
}

func storeError(err error, entity string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(entity+" not found", err)
	case errors.Is(err, store.ErrConflict):
		return apperr.Conflict(entity+" was modified concurrently", err)
	default:
		return apperr.Internal(entity+" storage failed", err)
	}
}
