package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"account_service/internal/auth"
	"account_service/internal/config"
	"account_service/internal/http_server/cookies"
	resp "account_service/internal/lib/api/response"
	sl "account_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Email      string `json:"email" validate:"required,email"`
	Pass       string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type UserLoginer interface {
	Login(ctx context.Context, email, password string, rememberMe bool, userAgent string) (auth.Tokens, error)
}

func New(log *slog.Logger, loginer UserLoginer, tokens config.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		issued, err := loginer.Login(r.Context(), req.Email, req.Pass, req.RememberMe, r.UserAgent())
		if err != nil {
			if errors.Is(err, auth.ErrAccountLocked) {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, resp.Error("Too many failed attempts, try again later"))

				return
			}
			if errors.Is(err, auth.ErrInvalidCredentials) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid credentials"))

				return
			}

			log.Error("failed to login user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User logged in successfully")

		cookies.SetAccessToken(w, issued.AccessToken, tokens.AccessTokenTTL)
		if issued.RefreshToken != "" {
			cookies.SetRefreshToken(w, issued.RefreshToken, tokens.RefreshTokenTTL)
		}
		if issued.TempSessionToken != "" {
			cookies.SetTempSession(w, issued.TempSessionToken)
		}

		render.JSON(w, r, resp.OK())
	}
}
