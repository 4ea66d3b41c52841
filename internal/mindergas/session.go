package mindergas

import (
	"net/http"
	"sync"
	"time"
)

// Session owns the HTTP client used by one API client. A client passed to
// NewSession belongs to the caller and is never closed here.
type Session struct {
	mu      sync.Mutex
	client  *http.Client
	owned   bool
	timeout time.Duration
}

// NewSession wraps hc, or creates a client on first Acquire when hc is nil
func NewSession(hc *http.Client, timeout time.Duration) *Session {
	return &Session{client: hc, timeout: timeout}
}

// Acquire returns the session's HTTP client, creating it if needed
func (s *Session) Acquire() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		s.client = &http.Client{
			Timeout:   s.timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		}
		s.owned = true
	}
	return s.client
}

// Release closes idle connections of a client this session created.
// The next Acquire creates a fresh one.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.owned || s.client == nil {
		return
	}
	s.client.CloseIdleConnections()
	s.client = nil
	s.owned = false
}

// Owned reports whether the current client was created by the session
func (s *Session) Owned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned
}
