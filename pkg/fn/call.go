// pkg/fn/call.go
package fn

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/joeydtaylor/steeze-serverfn/pkg/codec"
)

// Call is the request a server function is invoked with.
type Call struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// NewCall captures r. The request body is read in full.
func NewCall(r *http.Request) (*Call, error) {
	c := &Call{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
	}
	if r.Body != nil && r.Body != http.NoBody {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("fn: read body: %w", err)
		}
		c.Body = b
	}
	return c, nil
}

// Decode unmarshals the JSON request body into v.
func (c *Call) Decode(v any) error {
	if c == nil || len(c.Body) == 0 {
		return ErrEmptyBody
	}
	return codec.JSON.Unmarshal(c.Body, v)
}
