package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const maxResponseBytes = 1 << 20

// Function is one webhook handler
type Function interface {
	Invoke(ctx context.Context, envelope Envelope) (Response, error)
}

// FunctionFunc adapts a plain function to Function
type FunctionFunc func(ctx context.Context, envelope Envelope) (Response, error)

func (f FunctionFunc) Invoke(ctx context.Context, envelope Envelope) (Response, error) {
	return f(ctx, envelope)
}

// NewHTTPClient creates a client for function calls. Redirects are not followed.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          50,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// HTTPFunction posts signed envelopes to a remote serverless endpoint.
// The endpoint's HTTP status and JSON body become the Response.
type HTTPFunction struct {
	name   string
	url    string
	secret string
	client *http.Client
}

// NewHTTPFunction validates target; a function that fails here is reported
// as not loaded for the lifetime of the process
func NewHTTPFunction(name, target, secret string, client *http.Client) (*HTTPFunction, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid url for function %s: %w", name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("function %s: url must be absolute http(s), got %q", name, target)
	}

	return &HTTPFunction{name: name, url: u.String(), secret: secret, client: client}, nil
}

func (f *HTTPFunction) Invoke(ctx context.Context, envelope Envelope) (Response, error) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build request: %w", err)
	}

	timestamp := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderRequestID, envelope.RequestContext.RequestID)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	if f.secret != "" {
		req.Header.Set(HeaderSignature, Sign(f.secret, timestamp, payload))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("function %s unreachable: %w", f.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read function %s response: %w", f.name, err)
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && !json.Valid(body) {
		return Response{}, fmt.Errorf("function %s returned a non-JSON body", f.name)
	}

	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}
