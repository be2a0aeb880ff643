package server

import "github.com/devmarvs/yaade"

// Operation identifiers declared by the API contract.
const (
	OpHealth             = "health"
	OpDoLogin            = "doLogin"
	OpGetCurrentUser     = "getCurrentUser"
	OpChangeUserPassword = "changeUserPassword"
	OpGetAllCollections  = "getAllCollections"
	OpPostCollection     = "postCollection"
	OpPutCollection      = "putCollection"
	OpDeleteCollection   = "deleteCollection"
	OpPostRequest        = "postRequest"
	OpPutRequest         = "putRequest"
	OpDeleteRequest      = "deleteRequest"
)

// Operations binds one handler per contract operation.
type Operations struct {
	Health             yaade.Handler
	DoLogin            yaade.Handler
	GetCurrentUser     yaade.Handler
	ChangeUserPassword yaade.Handler
	GetAllCollections  yaade.Handler
	PostCollection     yaade.Handler
	PutCollection      yaade.Handler
	DeleteCollection   yaade.Handler
	PostRequest        yaade.Handler
	PutRequest         yaade.Handler
	DeleteRequest      yaade.Handler
}

// Table returns the bindings keyed by operation id. Nil handlers are left
// out, so their operations answer 501.
func (o Operations) Table() map[string]yaade.Handler {
	all := map[string]yaade.Handler{
		OpHealth:             o.Health,
		OpDoLogin:            o.DoLogin,
		OpGetCurrentUser:     o.GetCurrentUser,
		OpChangeUserPassword: o.ChangeUserPassword,
		OpGetAllCollections:  o.GetAllCollections,
		OpPostCollection:     o.PostCollection,
		OpPutCollection:      o.PutCollection,
		OpDeleteCollection:   o.DeleteCollection,
		OpPostRequest:        o.PostRequest,
		OpPutRequest:         o.PutRequest,
		OpDeleteRequest:      o.DeleteRequest,
	}
	table := make(map[string]yaade.Handler, len(all))
	for id, handler := range all {
		if handler != nil {
			table[id] = handler
		}
	}
	return table
}
