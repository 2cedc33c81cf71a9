package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/middleware/auth"
	"github.com/tech-arch1tect/newsdesk/middleware/csrf"
	"github.com/tech-arch1tect/newsdesk/response"
	"github.com/tech-arch1tect/newsdesk/services/jwt"
	"github.com/tech-arch1tect/newsdesk/services/logging"
	"github.com/tech-arch1tect/newsdesk/services/revocation"
	"github.com/tech-arch1tect/newsdesk/services/user"
	"github.com/tech-arch1tect/newsdesk/services/verification"
	"go.uber.org/zap"
)

type AuthHandler struct {
	users         *user.Service
	tokens        *jwt.Service
	verifications *verification.Service
	revocations   *revocation.Service
	cookieName    string
	cookieSecure  bool
	logger        *logging.Service
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type sendCodeRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type verifyCodeRequest struct {
	Email   string `json:"email"`
	Code    string `json:"code"`
	Purpose string `json:"purpose"`
}

type passwordResetRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type registerResponse struct {
	User             *user.User `json:"user"`
	VerificationSent bool       `json:"verificationSent"`
}

type sessionResponse struct {
	User   *user.User     `json:"user"`
	Tokens *jwt.TokenPair `json:"tokens"`
}

func (h *AuthHandler) setAuthCookie(c echo.Context, token string, maxAge int) {
	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register creates the account and sends a registration code. A failed send does not
// undo the registration.
func (h *AuthHandler) Register(c echo.Context) error {
	var input user.RegisterInput
	if err := bind(c, &input); err != nil {
		return err
	}

	u, err := h.users.Register(c.Request().Context(), input)
	if err != nil {
		return err
	}

	_, sendErr := h.verifications.SendCode(c.Request().Context(), verification.SendInput{
		Email:     u.Email,
		Purpose:   verification.PurposeRegister,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if sendErr != nil {
		h.logger.Warn("failed to send registration code", zap.Uint("user_id", u.ID), zap.Error(sendErr))
	}

	return response.Success(c, http.StatusCreated, registerResponse{User: u, VerificationSent: sendErr == nil})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return apperror.BadRequest("Email and password are required")
	}

	u, err := h.users.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	pair, err := h.tokens.GenerateTokenPair(user.Payload(u))
	if err != nil {
		return err
	}

	h.setAuthCookie(c, pair.AccessToken, h.tokens.AccessExpirySeconds())
	return response.Success(c, http.StatusOK, sessionResponse{User: u, Tokens: pair})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return apperror.BadRequest("Refresh token is required")
	}

	ctx := c.Request().Context()
	claims, err := h.tokens.VerifyRefreshToken(req.RefreshToken)
	if err != nil {
		return apperror.Unauthorized("Invalid refresh token").Wrap(err)
	}
	revoked, err := h.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return apperror.Internal("failed to check token revocation", err)
	}
	if revoked {
		return apperror.Unauthorized("Refresh token has been revoked")
	}

	pair, err := h.tokens.Refresh(ctx, req.RefreshToken, h.users.Subject)
	if err != nil {
		return err
	}

	// Refresh tokens are single use.
	if err := h.revokeRefresh(ctx, claims); err != nil {
		return err
	}

	h.setAuthCookie(c, pair.AccessToken, h.tokens.AccessExpirySeconds())
	return response.Success(c, http.StatusOK, pair)
}

// Logout always clears the cookie. A recognised caller's access token is revoked and
// presence updated; a refresh token in the body is revoked as well.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	h.setAuthCookie(c, "", -1)

	if identity := auth.GetIdentity(c); identity != nil {
		h.users.Logout(ctx, identity.UserID)
		if identity.AuthMethod == auth.MethodJWT {
			if err := h.revocations.Revoke(ctx, identity.TokenID, identity.UserID, identity.ExpiresAt); err != nil {
				return apperror.Internal("failed to revoke access token", err)
			}
		}
	}

	if req.RefreshToken != "" {
		if claims, err := h.tokens.VerifyRefreshToken(req.RefreshToken); err == nil {
			if err := h.revokeRefresh(ctx, claims); err != nil {
				return err
			}
		}
	}

	return response.Success(c, http.StatusOK, messageResponse{Message: "Logged out"})
}

func (h *AuthHandler) revokeRefresh(ctx context.Context, claims *jwt.RefreshClaims) error {
	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := h.revocations.Revoke(ctx, claims.ID, claims.UserID, expiresAt); err != nil {
		return apperror.Internal("failed to revoke refresh token", err)
	}
	return nil
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

func (h *AuthHandler) CSRFToken(c echo.Context) error {
	return response.Success(c, http.StatusOK, csrfResponse{CSRFToken: csrf.GetToken(c)})
}

func (h *AuthHandler) Me(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	u, err := h.users.Get(c.Request().Context(), identity.UserID)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, u)
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	var input user.ProfileInput
	if err := bind(c, &input); err != nil {
		return err
	}

	u, err := h.users.UpdateProfile(c.Request().Context(), identity.UserID, input)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, u)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	identity, err := auth.MustIdentity(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperror.BadRequest("Current and new password are required")
	}

	if err := h.users.ChangePassword(c.Request().Context(), identity.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, messageResponse{Message: "Password changed"})
}

func (h *AuthHandler) SendCode(c echo.Context) error {
	var req sendCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Email == "" {
		return apperror.BadRequest("Email is required")
	}

	result, err := h.verifications.SendCode(c.Request().Context(), verification.SendInput{
		Email:     req.Email,
		Purpose:   req.Purpose,
		IP:        c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, result)
}

// VerifyCode checks a code; a successful registration code also marks the address
// verified.
func (h *AuthHandler) VerifyCode(c echo.Context) error {
	var req verifyCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Code == "" {
		return apperror.BadRequest("Email and code are required")
	}

	ctx := c.Request().Context()
	result, err := h.verifications.VerifyCode(ctx, req.Email, req.Code, req.Purpose)
	if err != nil {
		return err
	}

	if req.Purpose == verification.PurposeRegister {
		if err := h.users.MarkEmailVerified(ctx, req.Email); err != nil {
			return err
		}
	}
	return response.Success(c, http.StatusOK, result)
}

// ResetPassword validates the new password before the code is checked.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req passwordResetRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Code == "" || req.NewPassword == "" {
		return apperror.BadRequest("Email, code and new password are required")
	}
	if err := h.users.CheckPassword(req.NewPassword); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if _, err := h.verifications.VerifyCode(ctx, req.Email, req.Code, verification.PurposePasswordReset); err != nil {
		return err
	}
	if err := h.users.ResetPassword(ctx, req.Email, req.NewPassword); err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, messageResponse{Message: "Password has been reset"})
}

func (h *AuthHandler) VerifyEmailToken(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return apperror.BadRequest("Verification token is required")
	}

	u, err := h.users.VerifyEmailToken(c.Request().Context(), token)
	if err != nil {
		return err
	}
	return response.Success(c, http.StatusOK, u)
}
