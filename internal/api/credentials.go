package api

import (
	"fmt"
	"net/http"
	"sync"
)

// SessionCookie is the cookie the backend sets on login.
const SessionCookie = "session"

// CredentialProvider attaches credentials to outgoing requests and learns
// new ones from responses. A client uses exactly one provider.
type CredentialProvider interface {
	// Apply adds credentials to req.
	Apply(req *http.Request) error
	// Capture inspects resp for credentials issued or revoked by the server.
	Capture(resp *http.Response) error
	// Present reports whether any credentials are available.
	Present() bool
	// Clear forgets the credentials.
	Clear() error
}

// CookieStore persists named credential values.
type CookieStore interface {
	GetCredential(name string) (string, error)
	SetCredential(name, value string) error
	DeleteCredential(name string) error
}

// CookieCredentials replays the backend's session cookie, persisted in a CookieStore.
type CookieCredentials struct {
	st CookieStore

	mu     sync.Mutex
	value  string
	loaded bool
}

// NewCookieCredentials returns a provider backed by st.
func NewCookieCredentials(st CookieStore) *CookieCredentials {
	return &CookieCredentials{st: st}
}

func (c *CookieCredentials) load() error {
	if c.loaded {
		return nil
	}
	v, err := c.st.GetCredential(SessionCookie)
	if err != nil {
		return fmt.Errorf("load session cookie: %w", err)
	}
	c.value = v
	c.loaded = true
	return nil
}

func (c *CookieCredentials) Apply(req *http.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return err
	}
	if c.value != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.value})
	}
	return nil
}

func (c *CookieCredentials) Capture(resp *http.Response) error {
	for _, ck := range resp.Cookies() {
		if ck.Name != SessionCookie {
			continue
		}
		if ck.Value == "" || ck.MaxAge < 0 {
			return c.Clear()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.st.SetCredential(SessionCookie, ck.Value); err != nil {
			return fmt.Errorf("save session cookie: %w", err)
		}
		c.value = ck.Value
		c.loaded = true
		return nil
	}
	return nil
}

func (c *CookieCredentials) Present() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return false
	}
	return c.value != ""
}

func (c *CookieCredentials) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.st.DeleteCredential(SessionCookie); err != nil {
		return fmt.Errorf("delete session cookie: %w", err)
	}
	c.value = ""
	c.loaded = true
	return nil
}

// BearerCredentials sends a fixed token in the Authorization header.
type BearerCredentials struct {
	Token string
}

func (b *BearerCredentials) Apply(req *http.Request) error {
	if b.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.Token)
	}
	return nil
}

func (b *BearerCredentials) Capture(*http.Response) error { return nil }

func (b *BearerCredentials) Present() bool { return b.Token != "" }

// Clear drops the token for the rest of the process. The configured token
// is not touched.
func (b *BearerCredentials) Clear() error {
	b.Token = ""
	return nil
}
