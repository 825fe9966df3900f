package download

import "net/http"

// Authenticator applies credentials to an outgoing bundle request. Bundle
// hosts behind basic auth or a token gateway can be reached by setting one
// on Options.
type Authenticator interface {
	Apply(req *http.Request) error
}

// BasicAuth sends HTTP Basic Authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Apply implements Authenticator.
func (b BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// BearerAuth sends a Bearer token in the Authorization header.
type BearerAuth struct {
	Token string
}

// Apply implements Authenticator.
func (b BearerAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// HeaderAuth sends arbitrary request headers, for hosts with bespoke
// authentication schemes.
type HeaderAuth struct {
	Headers map[string]string
}

// Apply implements Authenticator.
func (h HeaderAuth) Apply(req *http.Request) error {
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}
