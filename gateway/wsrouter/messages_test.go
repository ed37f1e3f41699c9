package wsrouter

import "testing"

func TestParseInboundResponse(t *testing.T) {
	data := []byte(`{"type":"proxy_http_response","request_id":"r1","status_code":200,"headers":{"x":"y"},"body":"hi"}`)
	frame, ok := parseInbound(data)
	if !ok {
		t.Fatalf("expected ok")
	}
	if frame.RequestID != "r1" || frame.Response == nil || frame.Response.StatusCode != 200 {
		t.Errorf("got %+v", frame)
	}
}

func TestParseInboundError(t *testing.T) {
	data := []byte(`{"type":"proxy_http_error","request_id":"r2","error":"boom"}`)
	frame, ok := parseInbound(data)
	if !ok {
		t.Fatalf("expected ok")
	}
	if frame.RequestID != "r2" || frame.Err == nil || frame.Err.Error != "boom" {
		t.Errorf("got %+v", frame)
	}
}

func TestParseInboundUnknownType(t *testing.T) {
	data := []byte(`{"type":"ping","timestamp":1}`)
	if _, ok := parseInbound(data); ok {
		t.Errorf("expected control frames to be ignored, not parsed as a request/response frame")
	}
}

func TestParseInboundMalformed(t *testing.T) {
	if _, ok := parseInbound([]byte("not json")); ok {
		t.Errorf("expected malformed frame to fail parsing")
	}
}
