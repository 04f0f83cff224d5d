package client

import "fmt"

// NetworkError is returned for any non-2xx response. The response body,
// including a server-side {"error": ...} payload, is not kept.
type NetworkError struct {
	Method     string
	Name       string
	StatusCode int
	Status     string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("client: %s %s: %s", e.Method, e.Name, e.Status)
}
