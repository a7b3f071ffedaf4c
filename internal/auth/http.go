// Copyright (c) 2026 Corkboard Labs. All rights reserved.
// Author: dev@corkboard.app

// HTTP delivery layer for the authentication lifecycle.
//
// # Architecture
//
// The handler acts as a thin mediation layer between the web and domain
// services:
//   - Protocol: Standard RESTful JSON interface.
//   - Security: Handles JWT orchestration and refresh token cookie injection.
//   - Verification: Enforces strict input validation before passing to [Service].
//
// This layer is strictly responsible for transport concerns (status codes,
// headers, JSON). The refresh token travels exclusively in an HttpOnly
// cookie scoped to the auth route subtree; it never appears in a JSON body.

package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/corkboardhq/corkboard/internal/platform/apperr"
	"github.com/corkboardhq/corkboard/internal/platform/constants"
	"github.com/corkboardhq/corkboard/internal/platform/middleware"
	requestutil "github.com/corkboardhq/corkboard/internal/platform/request"
	"github.com/corkboardhq/corkboard/internal/platform/respond"
	"github.com/corkboardhq/corkboard/internal/platform/sec"
	"github.com/corkboardhq/corkboard/internal/platform/validate"
)

// # Definitions & Constructors

// Handler implements authentication-related HTTP endpoints.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication-specific routes.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	// Public endpoints
	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)
	router.Post("/oauth/exchange", handler.redeemExchangeCode)

	// Protected endpoints
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Post("/verify-email", handler.verifyEmail)
		r.Post("/resend-code", handler.resendCode)
		r.Post("/change-password", handler.changePassword)
	})

	return router
}

// AdminRoutes returns the moderation endpoints. They are mounted under the
// admin subtree and require at least the moderator role.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequireAuth)
	router.Use(middleware.RequireRole(sec.RoleModerator))

	router.Post("/users/{id}/ban", handler.ban)
	router.Post("/users/{id}/unban", handler.unban)

	return router
}

// # Request Payloads

type registerRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	DisplayName   string `json:"display_name"`
	TermsAccepted bool   `json:"terms_accepted"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyEmailRequest struct {
	Code string `json:"code"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type exchangeRequest struct {
	Code string `json:"code"`
}

type banRequest struct {
	Reason string     `json:"reason"`
	Until  *time.Time `json:"until,omitempty"`
}

/*
Register handles the creation of a new local account.

POST /api/v1/auth/register

Description: Validates input, enforces terms acceptance, and persists a new
account. A verification code is mailed as a side effect.

Request:
  - Body: registerRequest (Email, Password, DisplayName, TermsAccepted)

Response:
  - 201: Account: Created account profile
  - 400: ErrInvalidJSON: Bad input, validation failure, or terms not accepted
  - 409: ErrConflict: An account with these details already exists
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, input.Email).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8).
		Required(FieldDisplayName, input.DisplayName).
		MaxLen(FieldDisplayName, input.DisplayName, 64)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.authService.Register(request.Context(), RegisterInput{
		Email:         input.Email,
		Password:      input.Password,
		DisplayName:   input.DisplayName,
		TermsAccepted: input.TermsAccepted,
	})

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, account)
}

/*
Login authenticates an account and establishes a session.

POST /api/v1/auth/login

Description: Verifies credentials, generates a JWT access token, and injects
a secure refresh token cookie into the response.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: Session: Access token and account profile
  - 401: ErrUnauthorized: Invalid credentials or external-provider account
  - 403: ACCOUNT_BANNED: Active ban with reason and expiry
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	account, err := handler.authService.Authenticate(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.IssueSession(request.Context(), account, sessionMeta(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, session)

	respond.OK(writer, map[string]any{
		FieldAccessToken: session.AccessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   AccessTokenTTL / time.Second,
		FieldUser:        session.Account,
	})
}

/*
Refresh rotates the session behind the refresh token cookie.

POST /api/v1/auth/refresh

Description: Validates the refresh token cookie, atomically supersedes the
session, and issues a fresh access token plus an updated cookie. A replayed
(already rotated) token fails and the stale cookie is cleared.

Response:
  - 200: RefreshResponse: New access token credentials
  - 401: ErrUnauthorized: Missing, invalid, replayed, or expired refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(constants.RefreshTokenCookieName)
	if err != nil || cookie.Value == "" {
		respond.Error(writer, request, apperr.Unauthorized("Missing refresh token in cookies"))
		return
	}

	// The access token is optional here (it may have expired); when present
	// and valid, its subject pins the expected session owner.
	assertedOwner := ""
	if claims := middleware.GetUser(request.Context()); claims != nil {
		assertedOwner = claims.UserID
	}

	session, err := handler.authService.Rotate(request.Context(), cookie.Value, assertedOwner, sessionMeta(request))
	if err != nil {
		clearRefreshCookie(writer)
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, session)

	respond.OK(writer, map[string]any{
		FieldAccessToken: session.AccessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   AccessTokenTTL / time.Second,
	})
}

/*
Logout terminates the current session.

POST /api/v1/auth/logout

Description: Revokes the session behind the refresh token cookie and
blacklists its access tokens. Falls back to access-token-only blacklisting
when the cookie is gone. Unknown or already-revoked tokens are a no-op
success; a storage failure is reported, never masked as success. The cookie
is cleared either way.

Response:
  - 204: No Content: Session terminated
  - 500: ErrInternal: Revocation could not be persisted
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	cookie, cookieErr := request.Cookie(constants.RefreshTokenCookieName)

	var err error
	if cookieErr == nil && cookie != nil && cookie.Value != "" {
		err = handler.authService.Logout(request.Context(), cookie.Value)
	} else if token := requestutil.BearerToken(request); token != "" {
		// A forged or expired access token is not worth reporting here; the
		// caller holds no live credentials either way.
		if logoutErr := handler.authService.LogoutFromAccessTokenOnly(request.Context(), token); logoutErr != nil && !errors.Is(logoutErr, ErrInvalidToken) {
			err = logoutErr
		}
	}

	clearRefreshCookie(writer)

	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
VerifyEmail confirms email ownership with a 6-digit code.

POST /api/v1/auth/verify-email

Description: Validates the submitted code against the caller's live code.
Attempts are counted server-side; five misses burn the code.

Request:
  - Body: verifyEmailRequest (Code)

Response:
  - 200: Success: Email verified
  - 401: CODE_MISMATCH: Wrong code, with remaining attempts
  - 404: NO_ACTIVE_CODE: No live code for this account
  - 429: TOO_MANY_ATTEMPTS: Attempt budget exhausted
*/
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input verifyEmailRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldCode, input.Code).
		Digits(FieldCode, input.Code, VerificationCodeDigits)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	accountID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.VerifyCode(request.Context(), accountID, input.Code); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Email verified successfully",
	})
}

// ResendCode issues a fresh verification code for the caller.
//
// POST /api/v1/auth/resend-code
func (handler *Handler) resendCode(writer http.ResponseWriter, request *http.Request) {
	accountID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.IssueVerificationCode(request.Context(), accountID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "A new verification code has been sent",
	})
}

/*
ForgotPassword initiates the password recovery flow.

POST /api/v1/auth/forgot-password

Description: Issues and mails a reset token if the address belongs to a
local account. The response is identical either way.

Request:
  - Body: forgotPasswordRequest (Email)

Response:
  - 200: Success: Generic acknowledgement, regardless of account existence
*/
func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input forgotPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.RequestPasswordReset(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "If this email is registered, a reset link has been sent.",
	})
}

/*
ResetPassword completes the password recovery flow.

POST /api/v1/auth/reset-password

Description: Redeems the reset token, installs the new password, and revokes
every session of the account.

Request:
  - Body: resetPasswordRequest (Token, Password)

Response:
  - 200: Success: Password updated
  - 401: TOKEN_ALREADY_USED / TOKEN_EXPIRED: Token cannot be redeemed
*/
func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input resetPasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldToken, input.Token).
		Required(FieldPassword, input.Password).
		MinLen(FieldPassword, input.Password, 8)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.CompletePasswordReset(request.Context(), input.Token, input.Password); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password has been reset; please sign in again",
	})
}

/*
ChangePassword swaps the caller's password.

POST /api/v1/auth/change-password

Description: Re-verifies the current password, installs the new one, and
revokes every OTHER session of the account. The caller's refresh token
survives, but their outstanding access tokens are blacklisted along with
everyone else's: the next request rides a fresh token from /refresh.

Request:
  - Body: changePasswordRequest (CurrentPassword, NewPassword)

Response:
  - 200: Success: Password changed
  - 401: ErrUnauthorized: Current password incorrect
*/
func (handler *Handler) changePassword(writer http.ResponseWriter, request *http.Request) {
	var input changePasswordRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldCurrentPassword, input.CurrentPassword).
		Required(FieldNewPassword, input.NewPassword).
		MinLen(FieldNewPassword, input.NewPassword, 8)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	accountID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Identify the caller's own session so it survives the revocation.
	keepSessionID := ""
	if cookie, cookieErr := request.Cookie(constants.RefreshTokenCookieName); cookieErr == nil && cookie.Value != "" {
		if session, findErr := handler.authService.sessions.FindByTokenHash(request.Context(), sec.HashToken(cookie.Value)); findErr == nil {
			keepSessionID = session.ID
		}
	}

	if err := handler.authService.ChangePassword(request.Context(), accountID, input.CurrentPassword, input.NewPassword, keepSessionID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{
		FieldMessage: "Password changed successfully",
	})
}

/*
RedeemExchangeCode swaps a one-time OAuth exchange code for its access token.

POST /api/v1/auth/oauth/exchange

Description: One-time redemption; a second call with the same code fails.

Request:
  - Body: exchangeRequest (Code)

Response:
  - 200: Success: Access token credentials
  - 401: ErrUnauthorized: Unknown, expired, or already-redeemed code
*/
func (handler *Handler) redeemExchangeCode(writer http.ResponseWriter, request *http.Request) {
	var input exchangeRequest

	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Code == "" {
		respond.Error(writer, request, validate.RequiredError(FieldCode, "is required"))
		return
	}

	accessToken, err := handler.authService.RedeemExchangeCode(request.Context(), input.Code)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{
		FieldAccessToken: accessToken,
		FieldTokenType:   "Bearer",
		FieldExpiresIn:   AccessTokenTTL / time.Second,
	})
}

/*
Ban suspends an account.

POST /api/v1/admin/users/{id}/ban

Description: Moderator-only. Applies a permanent or temporal ban, revokes
the user's sessions, and blacklists their outstanding access tokens.

Request:
  - Body: banRequest (Reason, Until)

Response:
  - 204: No Content: Ban applied
  - 404: ErrNotFound: No such account
*/
func (handler *Handler) ban(writer http.ResponseWriter, request *http.Request) {
	accountID := requestutil.ID(request, "id")

	var input banRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	v := &validate.Validator{}
	v.Required(FieldReason, input.Reason).MaxLen(FieldReason, input.Reason, 500)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Ban(request.Context(), accountID, input.Until, input.Reason); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// Unban lifts a suspension ahead of schedule.
//
// POST /api/v1/admin/users/{id}/unban
func (handler *Handler) unban(writer http.ResponseWriter, request *http.Request) {
	accountID := requestutil.ID(request, "id")

	if err := handler.authService.Unban(request.Context(), accountID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Cookie & Metadata Helpers

func setRefreshCookie(writer http.ResponseWriter, session *AuthSession) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    session.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  session.RefreshTokenExpiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// sessionMeta extracts the per-device metadata recorded on new sessions.
func sessionMeta(request *http.Request) SessionMeta {
	return SessionMeta{
		UserAgent: request.UserAgent(),
		IPAddress: getClientIP(request),
	}
}

// getClientIP tries to extract the real IP address of a user over proxy environments.
func getClientIP(request *http.Request) string {

	ip := request.Header.Get(constants.HeaderXRealIP)
	if ip == "" {
		ip = request.Header.Get(constants.HeaderXForwardedFor)
	}

	if ip == "" {
		ip = request.RemoteAddr
	}
	return ip
}
