// Package authn resolves request cookies into an authenticated identity
// before the handler runs. It performs the silent refresh dance: when the
// access token is gone the refresh or temporary-session cookie is redeemed
// and the replacement credentials are written back as cookies on the way out.
package authn

import (
	"context"
	"log/slog"
	"net/http"

	"account_service/internal/auth"
	"account_service/internal/config"
	"account_service/internal/http_server/cookies"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (auth.Result, error)
}

type ctxKey struct{}

// UserFromContext returns the identity placed by the middleware. The second
// return is false for unauthenticated requests.
func UserFromContext(ctx context.Context) (auth.Identity, bool) {
	user, ok := ctx.Value(ctxKey{}).(auth.Identity)
	return user, ok
}

// New authenticates every request and stores the identity in the request
// context. Unauthenticated requests pass through with cleared auth cookies;
// access policies decide what to do with them.
func New(log *slog.Logger, a Authenticator, tokens config.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn.New"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			creds := auth.Credentials{
				AccessToken:      cookies.Value(r, cookies.AccessToken),
				RefreshToken:     cookies.Value(r, cookies.RefreshToken),
				TempSessionToken: cookies.Value(r, cookies.TempSession),
			}

			result, err := a.Authenticate(r.Context(), creds)
			if err != nil {
				log.Error("failed to authenticate request", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))

				return
			}

			if !result.Authenticated {
				cookies.ClearAll(w)
				next.ServeHTTP(w, r)

				return
			}

			if result.NewAccessToken != "" {
				cookies.SetAccessToken(w, result.NewAccessToken, tokens.AccessTokenTTL)
			}
			if result.NewRefreshToken != "" {
				cookies.SetRefreshToken(w, result.NewRefreshToken, tokens.RefreshTokenTTL)
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, result.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

// RequireAuth rejects unauthenticated requests with 401. Mount after New.
func RequireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserFromContext(r.Context()); !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Unauthorized"))

				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}

// RedirectToLogin sends unauthenticated requests to the login page with
// 303 See Other. Meant for HTML-facing routes.
func RedirectToLogin(target string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserFromContext(r.Context()); !ok {
				http.Redirect(w, r, target, http.StatusSeeOther)

				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}
