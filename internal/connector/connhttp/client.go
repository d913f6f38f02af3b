package connhttp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// TransportErrorKind distinguishes transport failures for retry policy.
type TransportErrorKind string

const (
	TransportTimeout           TransportErrorKind = "timeout"
	TransportConnectionFailure TransportErrorKind = "connection_failure"
)

// TransportError is a network-level failure: no connector reply was decoded.
type TransportError struct {
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is the HTTP transport collaborator. Safe for concurrent use; one
// instance is shared by all adapters.
type Client struct {
	base    *http.Client
	timeout time.Duration
}

// NewClient creates a transport client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		base: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: timeout,
	}
}

// Do issues the built request and reads the full response body. Network
// failures come back as *TransportError; an HTTP error status is not an
// error here — classification belongs to the adapter and the engine.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	body, contentType, err := encodeContent(req.Content)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build http request: %w", err)
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for _, h := range req.Headers {
		httpReq.Header.Set(h[0], h[1])
	}

	client := c.base
	if req.ClientCert != nil {
		client = c.withClientCert(req.ClientCert)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Kind: TransportConnectionFailure, Err: err}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       raw,
		Headers:    resp.Header,
	}, nil
}

// withClientCert returns a one-shot client carrying the mutual-TLS identity.
func (c *Client) withClientCert(cert *tls.Certificate) *http.Client {
	return &http.Client{
		Timeout: c.timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{*cert},
				MinVersion:   tls.VersionTLS12,
			},
		},
	}
}

func encodeContent(content *RequestContent) (io.Reader, string, error) {
	if content == nil {
		return nil, "", nil
	}
	switch {
	case content.JSON != nil:
		b, err := json.Marshal(content.JSON)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), ContentTypeJSON, nil
	case content.Form != nil:
		return strings.NewReader(content.Form.Encode()), ContentTypeForm, nil
	case content.XML != nil:
		return bytes.NewReader(content.XML), ContentTypeXML, nil
	case content.RawBytes != nil:
		return bytes.NewReader(content.RawBytes), ContentTypeText, nil
	}
	return nil, "", nil
}

func classifyTransportError(err error) *TransportError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: TransportTimeout, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Kind: TransportTimeout, Err: err}
	}
	return &TransportError{Kind: TransportConnectionFailure, Err: err}
}
