package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	identityCookie = "mqid"
	identityMaxAge = 60 * 60 * 24 * 365
)

// identity returns the caller's browser id, issuing a new cookie when the
// request has none.
func identity(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(identityCookie); err == nil && validIdentity(c.Value) {
		return c.Value
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	http.SetCookie(w, &http.Cookie{
		Name:     identityCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   identityMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func validIdentity(v string) bool {
	if len(v) != 32 {
		return false
	}
	for _, r := range v {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
