// pkg/fn/fn.go
package fn

import (
	"context"
	"errors"
	"go/token"
	"strings"
)

const (
	// DefaultBasePath is the URL prefix every server function is served under.
	DefaultBasePath = "/api/serverFn"

	// ImportPath is the import path generated handlers use to reach this package.
	ImportPath = "github.com/joeydtaylor/steeze-serverfn/pkg/fn"
	// RuntimeAlias is the name generated handlers import this package under.
	RuntimeAlias = "serverfn"

	// entryName is the exported entry point of every generated handler.
	entryName = "Handler"
)

var (
	ErrInvalidName = errors.New("fn: invalid function name")
	ErrNilFunc     = errors.New("fn: nil function")
	ErrNoSource    = errors.New("fn: function source unavailable")
	ErrEmptyBody   = errors.New("fn: empty request body")

	// ErrClosure reports a function that depends on state declared outside its
	// own body: captured variables, package-level state, method receivers.
	ErrClosure = errors.New("fn: function is not self-contained")
)

// Func is a server function. The call carries the request it was invoked
// with; the result is JSON-encoded into the response.
type Func func(ctx context.Context, call *Call) (any, error)

// Function is a registry entry.
type Function struct {
	Name   string
	Fn     Func
	Source Source

	explicit bool
}

// ExecContext tells the registry which side of the wire the process runs on.
type ExecContext int

const (
	ServerContext ExecContext = iota + 1
	ClientContext
)

func (e ExecContext) String() string {
	switch e {
	case ServerContext:
		return "server"
	case ClientContext:
		return "client"
	default:
		return "unknown"
	}
}

// Endpoint returns the URL path a function is reachable at.
func Endpoint(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + name
}

// ValidName reports whether name can be used as a path segment, a file stem
// and a Go identifier in generated code.
func ValidName(name string) bool {
	return token.IsIdentifier(name) && name != entryName && name != "_"
}
