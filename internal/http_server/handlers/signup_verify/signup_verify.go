package signup_verify

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
	Token      string `json:"token" validate:"required"`
	Pass       string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

type SignupCompleter interface {
	CompleteSignup(ctx context.Context, token, password string, rememberMe bool, userAgent string) (auth.Tokens, error)
}

// New finishes the signup flow: the emailed token proves address ownership,
// the password must satisfy the account policy, and on success the user is
// logged in immediately.
func New(log *slog.Logger, completer SignupCompleter, tokens config.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.signup_verify.New"

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

		issued, err := completer.CompleteSignup(r.Context(), req.Token, req.Pass, req.RememberMe, r.UserAgent())
		if err != nil {
			if errors.Is(err, auth.ErrValidationFailed) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Invalid token or weak password"))

				return
			}
			if errors.Is(err, auth.ErrUserExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("Email is already registered"))

				return
			}

			log.Error("failed to complete signup", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User signed up successfully")

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
