package logout

import (
	"context"
	"log/slog"
	"net/http"

	"account_service/internal/http_server/cookies"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type SessionRevoker interface {
	Logout(ctx context.Context, refreshToken, tempSessionToken string) error
}

// New revokes whichever session the request presents and clears the auth
// cookies. Logout is idempotent; a request with no live session still
// succeeds.
func New(log *slog.Logger, revoker SessionRevoker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		err := revoker.Logout(
			r.Context(),
			cookies.Value(r, cookies.RefreshToken),
			cookies.Value(r, cookies.TempSession),
		)
		if err != nil {
			log.Error("failed to logout", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		cookies.ClearAll(w)

		log.Info("User logged out")

		render.JSON(w, r, resp.OK())
	}
}
