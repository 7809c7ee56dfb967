// Package relay forwards payment-provider webhooks to the serverless
// functions that own them and relays their answer back.
package relay

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/oklog/ulid/v2"
)

// RequestContext identifies one relayed call
type RequestContext struct {
	RequestID string `json:"requestId"`
	Provider  string `json:"provider"`
}

// Envelope is the event shape serverless handlers expect
type Envelope struct {
	Body                  json.RawMessage   `json:"body"`
	Headers               map[string]string `json:"headers"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	RequestContext        RequestContext    `json:"requestContext"`
}

// Response is what a function answered
type Response struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

// NewEnvelope reshapes an inbound request. Header names are lower-cased and
// only the first value of a repeated header or query parameter is kept.
func NewEnvelope(provider string, body json.RawMessage, header http.Header, query url.Values) Envelope {
	headers := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			headers[strings.ToLower(name)] = values[0]
		}
	}

	params := make(map[string]string, len(query))
	for name, values := range query {
		if len(values) > 0 {
			params[name] = values[0]
		}
	}

	return Envelope{
		Body:                  body,
		Headers:               headers,
		QueryStringParameters: params,
		RequestContext: RequestContext{
			RequestID: ulid.Make().String(),
			Provider:  provider,
		},
	}
}
