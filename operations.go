package yaade

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/devmarvs/yaade/apperr"
	"github.com/devmarvs/yaade/openapi"
)

var (
	// ErrContractRequired indicates BindOperations got no contract.
	ErrContractRequired = errors.New("operation contract is required")
	// ErrUnknownOperation indicates a binding for an id the contract does not declare.
	ErrUnknownOperation = errors.New("unknown operation")
)

type operationConfig struct {
	middleware []Middleware
	validate   bool
}

// OperationOption customizes BindOperations.
type OperationOption func(*operationConfig)

// WithOperationMiddleware wraps every operation route.
func WithOperationMiddleware(middleware ...Middleware) OperationOption {
	return func(cfg *operationConfig) {
		cfg.middleware = append(cfg.middleware, middleware...)
	}
}

// WithValidation toggles request validation against the contract.
func WithValidation(enabled bool) OperationOption {
	return func(cfg *operationConfig) {
		cfg.validate = enabled
	}
}

// BindOperations registers a route for every operation in contract.
//
// Each request is validated against its operation before the bound handler
// runs; a mismatch is answered with a validation error. Operations without
// a binding answer 501. Binding fails, registering nothing, when table names
// an operation the contract does not declare.
func (a *App) BindOperations(contract *openapi.Contract, table map[string]Handler, options ...OperationOption) error {
	if contract == nil {
		return ErrContractRequired
	}
	cfg := operationConfig{validate: true}
	for _, opt := range options {
		opt(&cfg)
	}

	var unknown []string
	for id, handler := range table {
		if _, ok := contract.Lookup(id); !ok {
			unknown = append(unknown, id)
			continue
		}
		if handler == nil {
			return fmt.Errorf("operation %s: nil handler", id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s", ErrUnknownOperation, strings.Join(unknown, ", "))
	}

	for _, desc := range contract.Operations() {
		handler, ok := table[desc.ID]
		if !ok {
			handler = notImplemented(desc.ID)
		} else if cfg.validate {
			handler = validated(contract, desc, handler)
		}
		operation := desc
		if _, err := a.register(desc.Method, desc.Pattern, wrap(handler, cfg.middleware), &operation); err != nil {
			return fmt.Errorf("operation %s: %w", desc.ID, err)
		}
	}
	return nil
}

func validated(contract *openapi.Contract, desc openapi.Descriptor, next Handler) Handler {
	return func(ctx *Context) error {
		body, err := ctx.RawBody()
		if err != nil {
			return err
		}
		if err := contract.ValidateRequest(ctx.Context(), ctx.Request, body, desc, ctx.Params); err != nil {
			return err
		}
		return next(ctx)
	}
}

func notImplemented(id string) Handler {
	return func(*Context) error {
		return apperr.NotImplemented("operation " + id + " is not implemented")
	}
}
