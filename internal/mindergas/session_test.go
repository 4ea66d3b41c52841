package mindergas

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionCreatesClientLazily(t *testing.T) {
	s := NewSession(nil, 5*time.Second)
	assert.False(t, s.Owned())

	hc := s.Acquire()
	assert.NotNil(t, hc)
	assert.True(t, s.Owned())
	assert.Equal(t, 5*time.Second, hc.Timeout)
	assert.Same(t, hc, s.Acquire())

	s.Release()
	assert.False(t, s.Owned())

	next := s.Acquire()
	assert.NotSame(t, hc, next)
}

func TestSessionNeverReleasesCallerClient(t *testing.T) {
	hc := &http.Client{}
	s := NewSession(hc, time.Second)

	assert.Same(t, hc, s.Acquire())
	assert.False(t, s.Owned())

	s.Release()
	assert.Same(t, hc, s.Acquire())
}
