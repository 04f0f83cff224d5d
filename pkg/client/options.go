package client

import (
	"bytes"
	"fmt"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
)

// Options shape a single call.
//
// Data and Form are alternatives. When both are set Data is sent and Form is
// ignored.
type Options struct {
	Header map[string]string
	Data   map[string]any
	Form   *FormData
}

// FormData is an opaque request body sent unmodified. It holds the bytes, so
// one FormData can be sent any number of times.
type FormData struct {
	ContentType string
	Body        []byte
}

// clone copies the maps so interceptors never write through to the caller's
// values. Header keys come out canonical. A nil receiver yields empty options.
func (o *Options) clone() Options {
	if o == nil {
		return Options{Header: map[string]string{}}
	}
	out := Options{
		Header: maps.Clone(o.Header),
		Data:   maps.Clone(o.Data),
		Form:   o.Form,
	}
	if out.Header == nil {
		out.Header = map[string]string{}
	}
	canonicalize(out.Header)
	return out
}

// canonicalize rewrites every key of h to its canonical form. When a
// non-canonical key and its canonical form both exist, the non-canonical
// value wins: h was canonical before the last writer ran, so that key is the
// newer one.
func canonicalize(h map[string]string) {
	for k, v := range h {
		if ck := http.CanonicalHeaderKey(k); ck != k {
			delete(h, k)
			h[ck] = v
		}
	}
}

// URLEncoded builds a form body from values.
func URLEncoded(values url.Values) *FormData {
	return &FormData{
		ContentType: "application/x-www-form-urlencoded",
		Body:        []byte(values.Encode()),
	}
}

// Multipart builds a multipart/form-data body from plain fields.
func Multipart(fields map[string]string) (*FormData, error) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("client: multipart field %q: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("client: multipart: %w", err)
	}
	return &FormData{ContentType: mw.FormDataContentType(), Body: buf.Bytes()}, nil
}
