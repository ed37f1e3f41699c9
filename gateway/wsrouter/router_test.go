package wsrouter

import (
	"context"
	"errors"
	"testing"

	"github.com/linkedingateway/gateway/gateway/gwerrors"
)

func TestDispatchNoConnectionReturnsGwerror(t *testing.T) {
	r := New(NewAuthenticator("shh"), nil)

	_, err := r.Dispatch(context.Background(), "no-such-user", ProxyRequest{RequestID: "r1", URL: "https://example.com"})
	if err == nil {
		t.Fatalf("expected an error")
	}
	var gwErr *gwerrors.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected *gwerrors.Error, got %T", err)
	}
	if gwErr.Code != "NoProxyConnection" {
		t.Errorf("Code = %q, want NoProxyConnection", gwErr.Code)
	}
}

func TestConnectedReportsFalseForUnknownUser(t *testing.T) {
	r := New(NewAuthenticator("shh"), nil)
	if r.Connected("nobody") {
		t.Errorf("expected Connected to report false for an unregistered user")
	}
}

func TestSessionRegisterDeregisterDeliver(t *testing.T) {
	s := newSession("user-1", "key-1", nil)

	ch := s.register("req-1")
	if !s.deliver(inboundFrame{RequestID: "req-1", Response: &ProxyResponse{StatusCode: 200}}) {
		t.Fatalf("expected delivery to succeed for a registered slot")
	}
	select {
	case frame := <-ch:
		if frame.Response.StatusCode != 200 {
			t.Errorf("got %+v", frame)
		}
	default:
		t.Fatalf("expected a frame to be waiting on the channel")
	}

	if s.deliver(inboundFrame{RequestID: "req-1"}) {
		t.Errorf("expected a second delivery for the same (now-consumed) request_id to be dropped")
	}
}

func TestSessionDeliverUnknownRequestID(t *testing.T) {
	s := newSession("user-1", "key-1", nil)
	if s.deliver(inboundFrame{RequestID: "never-registered"}) {
		t.Errorf("expected delivery for an unregistered request_id to report false")
	}
}
