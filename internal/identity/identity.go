// Package identity resolves the owner key that scopes batch job history.
// There is no account system: a shared access code, a client-generated
// user id, or a fallback cookie all serve as the key.
package identity

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	accessCodeHeader = "X-Access-Code"
	userIDHeader     = "X-User-Id"
	cookieName       = "jus_user_id"

	minAccessCodeLen = 4
	minUserIDLen     = 6

	cookieMaxAge = 365 * 24 * 60 * 60
)

// Identity is the resolved owner of a request.
type Identity struct {
	// Key scopes all stored jobs. Access codes are uppercased so the
	// same code typed in different cases shares one history.
	Key string
	// FromAccessCode is true when the key came from a shared access
	// code rather than a per-browser id.
	FromAccessCode bool
}

// FromRequest resolves the owner key for a request, checking sources in
// fixed order: access code header, user id header, cookie. When none is
// present a fresh id is minted and handed back as a cookie.
func FromRequest(w http.ResponseWriter, r *http.Request) Identity {
	if code := strings.TrimSpace(r.Header.Get(accessCodeHeader)); len(code) >= minAccessCodeLen {
		return Identity{Key: strings.ToUpper(code), FromAccessCode: true}
	}

	if userID := strings.TrimSpace(r.Header.Get(userIDHeader)); len(userID) >= minUserIDLen {
		return Identity{Key: userID}
	}

	if cookie, err := r.Cookie(cookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return Identity{Key: cookie.Value}
	}

	fresh := "user_" + uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    fresh,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		Expires:  time.Now().Add(cookieMaxAge * time.Second),
		SameSite: http.SameSiteLaxMode,
	})
	return Identity{Key: fresh}
}
