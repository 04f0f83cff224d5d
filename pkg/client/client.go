// pkg/client/client.go
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/joeydtaylor/steeze-serverfn/pkg/codec"
)

// DefaultBaseURL matches the path the dev bridge and generated handlers are served under.
const DefaultBaseURL = "/api/serverFn"

// HTTPDoer is satisfied by *http.Client and allows easy mocking in tests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client invokes server functions by name over HTTP.
//
// A Client applies no timeout, retry or cancellation of its own; bound calls
// with the context passed in.
type Client struct {
	baseURL      string
	http         HTTPDoer
	codec        codec.Codec
	interceptors []Interceptor
}

type Option func(*Client)

// WithBaseURL sets the URL every function name is appended to. It must be
// absolute (scheme and host) for requests to leave the process.
func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }

func WithHTTPClient(d HTTPDoer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// WithCodec replaces the JSON codec used for request data and results.
func WithCodec(cd codec.Codec) Option {
	return func(c *Client) {
		if cd != nil {
			c.codec = cd
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    http.DefaultClient,
		codec:   codec.JSON,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint is the URL a function name resolves to.
func (c *Client) Endpoint(name string) string {
	return strings.TrimRight(c.baseURL, "/") + "/" + name
}

// Dispatch performs one call. Interceptors run first, in the order they were
// added; the body is then derived from opts: Data as JSON, else Form as is.
// GET and HEAD never carry a body. A non-2xx status yields *NetworkError.
// The response is decoded into out unless out is nil, the method is HEAD or
// the status is 204.
func (c *Client) Dispatch(ctx context.Context, name, method string, opts *Options, out any) error {
	o := c.intercept(opts.clone())

	req, err := c.newRequest(ctx, name, method, o)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &NetworkError{Method: method, Name: name, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if method == http.MethodHead || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: %s %s: read response: %w", method, name, err)
	}
	if out == nil {
		var discard any
		out = &discard
	}
	if err := c.codec.Unmarshal(body, out); err != nil {
		return fmt.Errorf("client: %s %s: %w", method, name, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, name, method string, o Options) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	if method != http.MethodGet && method != http.MethodHead {
		switch {
		case o.Data != nil:
			b, err := c.codec.Marshal(o.Data)
			if err != nil {
				return nil, fmt.Errorf("client: %s %s: encode data: %w", method, name, err)
			}
			body = bytes.NewReader(b)
			contentType = c.codec.ContentType()
		case o.Form != nil && o.Form.Body != nil:
			body = bytes.NewReader(o.Form.Body)
			contentType = o.Form.ContentType
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint(name), body)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, name, err)
	}
	for k, v := range o.Header {
		req.Header.Set(k, v)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) Get(ctx context.Context, name string, out any, opts *Options) error {
	return c.Dispatch(ctx, name, http.MethodGet, opts, out)
}

func (c *Client) Post(ctx context.Context, name string, out any, opts *Options) error {
	return c.Dispatch(ctx, name, http.MethodPost, opts, out)
}

func (c *Client) Patch(ctx context.Context, name string, out any, opts *Options) error {
	return c.Dispatch(ctx, name, http.MethodPatch, opts, out)
}

func (c *Client) Delete(ctx context.Context, name string, out any, opts *Options) error {
	return c.Dispatch(ctx, name, http.MethodDelete, opts, out)
}

func (c *Client) Put(ctx context.Context, name string, out any, opts *Options) error {
	return c.Dispatch(ctx, name, http.MethodPut, opts, out)
}

// Read is Get.
func (c *Client) Read(ctx context.Context, name string, out any, opts *Options) error {
	return c.Dispatch(ctx, name, http.MethodGet, opts, out)
}

// Update is Patch.
func (c *Client) Update(ctx context.Context, name string, out any, opts *Options) error {
	return c.Dispatch(ctx, name, http.MethodPatch, opts, out)
}

func (c *Client) Options(ctx context.Context, name string, out any, opts *Options) error {
	return c.Dispatch(ctx, name, http.MethodOptions, opts, out)
}

func (c *Client) Head(ctx context.Context, name string, opts *Options) error {
	return c.Dispatch(ctx, name, http.MethodHead, opts, nil)
}

// Invoke dispatches and returns the decoded result as T.
func Invoke[T any](ctx context.Context, c *Client, name, method string, opts *Options) (T, error) {
	var out T
	err := c.Dispatch(ctx, name, method, opts, &out)
	return out, err
}
