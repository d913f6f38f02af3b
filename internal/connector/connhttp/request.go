package connhttp

import (
	"crypto/tls"
	"net/url"
)

// ContentType values the adapter layer produces.
const (
	ContentTypeJSON = "application/json"
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeXML  = "application/xml"
	ContentTypeText = "text/plain"
)

// RequestContent is the wire body in one of the formats connectors accept.
// Exactly one member is set; the adapter layer is the only place the format
// choice is made.
type RequestContent struct {
	JSON     any
	Form     url.Values
	XML      []byte
	RawBytes []byte
}

// Request is a fully built outbound connector call.
type Request struct {
	Method  string
	URL     string
	Headers [][2]string
	Content *RequestContent
	// ClientCert attaches a mutual-TLS identity for this request only
	// (needed by 3DS directory servers and similar connectors).
	ClientCert *tls.Certificate
}

// Response is the raw connector reply handed back to the adapter.
type Response struct {
	StatusCode int
	Body       []byte
	Headers    map[string][]string
}

// IsSuccess reports whether the HTTP status is in the 2xx range.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsServerError reports whether the HTTP status is in the 5xx range.
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}
