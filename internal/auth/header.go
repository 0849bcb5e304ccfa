package auth

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// UserHeader carries the caller's id in header mode.
const UserHeader = "X-User-ID"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9._@\-:]{1,64}$`)

// HeaderVerifier trusts the X-User-ID header. Use it only behind a gateway
// that authenticates callers and sets the header itself.
type HeaderVerifier struct{}

// Verify returns the header value when it is a well-formed id.
func (HeaderVerifier) Verify(r *http.Request) (string, error) {
	uid := strings.TrimSpace(r.Header.Get(UserHeader))
	if uid == "" {
		return "", ErrMissingCredentials
	}
	if !userIDPattern.MatchString(uid) {
		return "", fmt.Errorf("%w: malformed %s", ErrInvalidCredentials, UserHeader)
	}
	return uid, nil
}
