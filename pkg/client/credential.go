package client

import (
	"sync"
	"sync/atomic"
)

// Credential holds the bearer token used for registry and inference calls.
// The token is read at request time, so Set only affects later requests.
type Credential struct {
	mu    sync.RWMutex
	token string
}

func NewCredential(token string) *Credential {
	return &Credential{token: token}
}

func (c *Credential) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Credential) Token() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authorization returns the header value, or "" when no token is set.
func (c *Credential) Authorization() string {
	if token := c.Token(); token != "" {
		return "Bearer " + token
	}
	return ""
}

// CancelFlag is a cooperative cancellation signal written by the interactive
// side and polled by the download loop.
type CancelFlag struct {
	v atomic.Bool
}

func (f *CancelFlag) Cancel() {
	f.v.Store(true)
}

func (f *CancelFlag) Cancelled() bool {
	return f != nil && f.v.Load()
}
