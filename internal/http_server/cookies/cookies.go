// Package cookies centralizes the auth cookie contract. All three cookies
// are httpOnly, secure and SameSite=Strict; tokens never reach page script.
package cookies

import (
	"net/http"
	"time"
)

const (
	AccessToken  = "access_token"
	RefreshToken = "refresh_token"
	TempSession  = "temp_session"
)

func SetAccessToken(w http.ResponseWriter, token string, ttl time.Duration) {
	set(w, AccessToken, token, int(ttl.Seconds()))
}

func SetRefreshToken(w http.ResponseWriter, token string, ttl time.Duration) {
	set(w, RefreshToken, token, int(ttl.Seconds()))
}

// SetTempSession omits Max-Age so the browser drops the cookie when the
// session ends.
func SetTempSession(w http.ResponseWriter, token string) {
	set(w, TempSession, token, 0)
}

func Clear(w http.ResponseWriter, names ...string) {
	for _, name := range names {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func ClearAll(w http.ResponseWriter) {
	Clear(w, AccessToken, RefreshToken, TempSession)
}

// Value returns the named cookie's value, or "" when absent.
func Value(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}

	return c.Value
}

func set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
