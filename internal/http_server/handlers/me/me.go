package me

import (
	"log/slog"
	"net/http"

	"account_service/internal/http_server/middleware/authn"
	resp "account_service/internal/lib/api/response"

	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	ID    string `json:"id"`
	Email string `json:"email"`
}

func New(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := authn.UserFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Unauthorized"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			ID:       user.ID,
			Email:    user.Email,
		})
	}
}
