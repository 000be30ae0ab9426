// Package middleware wraps the outbound HTTP transport. It is the client
// half of the auth story: the token issued by cliente/crear is attached to
// every request, and a 401 response ends the local session.
package middleware

import "net/http"

// TokenSource supplies the current bearer token. An empty string means
// there is no active session and the request goes out unauthenticated.
type TokenSource func() string

// AuthTransport injects the Authorization header and watches for 401
// responses from the backend.
type AuthTransport struct {
	// Base is the underlying transport; http.DefaultTransport when nil.
	Base http.RoundTripper

	// Token supplies the bearer token per request.
	Token TokenSource

	// OnUnauthorized runs whenever the backend answers 401. The session
	// container registers its logout cascade here.
	OnUnauthorized func()
}

// RoundTrip implements http.RoundTripper
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	if t.Token != nil {
		if token := t.Token(); token != "" {
			// Clone before mutating; RoundTrippers must not modify the request
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && t.OnUnauthorized != nil {
		t.OnUnauthorized()
	}

	return resp, nil
}
