package gameserver

import (
	"strings"
)

// DefaultLandingPage is where the server leaves a message submit that went
// through. Unauthenticated submits get redirected elsewhere (the login page).
const DefaultLandingPage = "/messages/write"

// SessionLostPolicy decides whether a submit response means the session
// cookie was silently invalidated. The server never answers with an explicit
// status for this, so the only signal is where the request ended up.
type SessionLostPolicy func(res Response) bool

// ExpectLandingPage classifies a response as session loss when its final
// url path (after redirects, ignoring the query) is not `path`.
func ExpectLandingPage(path string) SessionLostPolicy {
	expected := normalizePath(path)
	return func(res Response) bool {
		if res.FinalURL == nil {
			return true
		}
		return normalizePath(res.FinalURL.Path) != expected
	}
}

func normalizePath(p string) string {
	p = strings.TrimSuffix(p, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
