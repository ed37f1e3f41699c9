package wsrouter

import "encoding/json"

// Frame types exchanged over the proxy channel.
const (
	frameTypePing             = "ping"
	frameTypePong             = "pong"
	frameTypeProxyHTTPRequest = "proxy_http_request"
	frameTypeProxyHTTPResp    = "proxy_http_response"
	frameTypeProxyHTTPError   = "proxy_http_error"
)

// envelope is the shape every frame shares before type-specific fields are
// picked off; Type is always present, RequestID is present on every
// request/response frame.
type envelope struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
}

// ProxyRequest is the outbound request/response frame the Router sends to
// the browser extension to have it perform an HTTP call on its own
// authenticated session.
type ProxyRequest struct {
	Type               string            `json:"type"`
	RequestID          string            `json:"request_id"`
	URL                string            `json:"url"`
	Method             string            `json:"method"`
	Headers            map[string]string `json:"headers,omitempty"`
	Body               *string           `json:"body"`
	ResponseType       string            `json:"response_type"`
	IncludeCredentials bool              `json:"include_credentials"`
	TimeoutMS          int64             `json:"timeout_ms"`
}

// ProxyResponse is the inbound success frame.
type ProxyResponse struct {
	RequestID  string            `json:"request_id"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// ProxyError is the inbound failure frame.
type ProxyError struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// inboundFrame is what the read loop decodes a raw frame into before
// dispatching it to a rendezvous slot; exactly one of Response/Err is set.
type inboundFrame struct {
	RequestID string
	Response  *ProxyResponse
	Err       *ProxyError
}

func parseInbound(data []byte) (*inboundFrame, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}

	switch env.Type {
	case frameTypeProxyHTTPResp:
		var resp ProxyResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, false
		}
		return &inboundFrame{RequestID: resp.RequestID, Response: &resp}, true
	case frameTypeProxyHTTPError:
		var perr ProxyError
		if err := json.Unmarshal(data, &perr); err != nil {
			return nil, false
		}
		return &inboundFrame{RequestID: perr.RequestID, Err: &perr}, true
	default:
		return nil, false
	}
}
