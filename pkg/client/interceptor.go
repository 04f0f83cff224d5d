package client

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Interceptor transforms the options of every outgoing call. Interceptors
// cannot stop a call; each one receives the previous one's output.
type Interceptor func(Options) Options

// Use appends interceptors. They run in the order added, so on a conflicting
// header the later one wins.
func (c *Client) Use(i ...Interceptor) {
	for _, fn := range i {
		if fn != nil {
			c.interceptors = append(c.interceptors, fn)
		}
	}
}

// AddRequestInterceptor is Use for a single interceptor.
func (c *Client) AddRequestInterceptor(i Interceptor) { c.Use(i) }

func (c *Client) intercept(o Options) Options {
	for _, fn := range c.interceptors {
		o = fn(o)
		if o.Header == nil {
			o.Header = map[string]string{}
		}
		canonicalize(o.Header)
	}
	return o
}

// SetHeader sets k to v on every call. Keys are matched case-insensitively.
func SetHeader(k, v string) Interceptor {
	k = http.CanonicalHeaderKey(k)
	return func(o Options) Options {
		o.Header[k] = v
		return o
	}
}

const requestIDHeader = "X-Request-Id"

// RequestID stamps X-Request-Id with a fresh UUID unless the call already has one.
func RequestID() Interceptor {
	return func(o Options) Options {
		if _, ok := o.Header[requestIDHeader]; !ok {
			o.Header[requestIDHeader] = uuid.NewString()
		}
		return o
	}
}

// BearerAssertion signs a short-lived HS256 token per call and sends it as
// Authorization: Bearer. If signing fails the options pass through unchanged.
func BearerAssertion(key []byte, issuer string, ttl time.Duration) Interceptor {
	return func(o Options) Options {
		now := time.Now()
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		})
		signed, err := tok.SignedString(key)
		if err != nil {
			return o
		}
		o.Header["Authorization"] = "Bearer " + signed
		return o
	}
}
