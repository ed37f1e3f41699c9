package wsrouter

import (
	"sync"

	pws "github.com/linkedingateway/gateway/pantry/websocket"
)

// session is one user's live proxy connection. Only one exists per user id
// at a time; opening a second supersedes it (see Router.register).
type session struct {
	userID string
	keyID  string
	conn   *pws.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan inboundFrame
}

func newSession(userID, keyID string, conn *pws.Conn) *session {
	return &session{
		userID:  userID,
		keyID:   keyID,
		conn:    conn,
		pending: make(map[string]chan inboundFrame),
	}
}

// register creates a rendezvous slot for requestID. The caller must
// eventually call deregister, whether or not a frame arrived.
func (s *session) register(requestID string) chan inboundFrame {
	ch := make(chan inboundFrame, 1)
	s.pendingMu.Lock()
	s.pending[requestID] = ch
	s.pendingMu.Unlock()
	return ch
}

func (s *session) deregister(requestID string) {
	s.pendingMu.Lock()
	delete(s.pending, requestID)
	s.pendingMu.Unlock()
}

// deliver hands an inbound frame to its waiting slot, if any. Frames for an
// unknown or already-evicted request_id are dropped by the caller (logged
// there, since delivery has no logger of its own).
func (s *session) deliver(f inboundFrame) bool {
	s.pendingMu.Lock()
	ch, ok := s.pending[f.RequestID]
	if ok {
		delete(s.pending, f.RequestID)
	}
	s.pendingMu.Unlock()
	if !ok {
		return false
	}
	ch <- f
	return true
}
