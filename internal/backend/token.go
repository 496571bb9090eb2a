package backend

import "sync"

// TokenSource holds the backend bearer token for the life of the process.
// It is set on login, read by the client on every request, and cleared when
// the backend answers 401. The token never touches durable storage.
type TokenSource struct {
	mu    sync.Mutex
	token string
}

func NewTokenSource() *TokenSource {
	return &TokenSource{}
}

// Set installs a fresh token.
func (t *TokenSource) Set(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

// Get returns the current token, or empty once cleared.
func (t *TokenSource) Get() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token
}

// Clear drops the token. Called on 401 and on logout.
func (t *TokenSource) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
}
