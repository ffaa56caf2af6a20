package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/nubauth/authfront/provider"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// decodeBody reads a JSON request body. A body that cannot be decoded
// is an internal-class failure, not a validation one: the caller gets
// a generic 500 and the detail stays in the log.
func decodeBody(c echo.Context, out any) error {
	return json.NewDecoder(c.Request().Body).Decode(out)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *AuthAPI) login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(c, &req); err != nil {
		return respondFailure(c, "login", err)
	}
	slog.Info("login requested", "email", req.Email)
	if req.Email == "" || req.Password == "" {
		return respondValidation(c, "email and password required")
	}

	sess, err := a.provider.SignInWithPassword(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondFailure(c, "login", err)
	}

	// the dedicated login step is the only forwarding endpoint that
	// materializes session cookies
	if err := a.cookies.WriteSession(a.jar(c), sess); err != nil {
		return respondFailure(c, "login", err)
	}
	return respondOK(c, sess)
}

func (a *AuthAPI) signup(c echo.Context) error {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(c, &req); err != nil {
		return respondFailure(c, "signup", err)
	}
	req.Email = normalizeEmail(req.Email)
	slog.Info("signup requested", "name", req.Name, "email", req.Email)
	if req.Email == "" || req.Password == "" {
		return respondValidation(c, "email and password required")
	}
	if !emailPattern.MatchString(req.Email) {
		slog.Warn("signup rejected, invalid email format", "email", req.Email)
		return respondValidation(c, "invalid email format")
	}

	result, err := a.provider.SignUp(c.Request().Context(), req.Email, req.Password, req.Name)
	if err != nil {
		return respondFailure(c, "signup", err)
	}

	// some provider configurations hand out a live session on
	// signup; revoke it so that registration alone never logs the
	// user in before the email is confirmed
	if result.Session != nil {
		if err := a.provider.SignOut(c.Request().Context(), result.Session.AccessToken); err != nil {
			return respondFailure(c, "signup sign-out", err)
		}
	}
	return respondOK(c, nil)
}

func (a *AuthAPI) forgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(c, &req); err != nil {
		return respondFailure(c, "forgot-password", err)
	}
	req.Email = normalizeEmail(req.Email)
	slog.Info("password recovery requested", "email", req.Email)
	if req.Email == "" {
		return respondValidation(c, "email required")
	}

	if err := a.provider.Recover(c.Request().Context(), req.Email); err != nil {
		return respondFailure(c, "forgot-password", err)
	}
	return respondOK(c, nil)
}

func (a *AuthAPI) resend(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(c, &req); err != nil {
		return respondFailure(c, "resend", err)
	}
	slog.Info("resend requested", "email", req.Email)
	if req.Email == "" {
		return respondValidation(c, "email required")
	}

	if err := a.provider.Resend(c.Request().Context(), req.Email, provider.OTPTypeSignup); err != nil {
		return respondFailure(c, "resend", err)
	}
	return respondOK(c, nil)
}

func (a *AuthAPI) verify(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		Token string `json:"token"`
		Type  string `json:"type"`
	}
	if err := decodeBody(c, &req); err != nil {
		return respondFailure(c, "verify", err)
	}
	slog.Info("otp verification requested", "email", req.Email, "token", maskToken(req.Token), "type", req.Type)
	if req.Email == "" || req.Token == "" || req.Type == "" {
		return respondValidation(c, "email, token and type required")
	}

	sess, err := a.provider.VerifyOTP(c.Request().Context(), req.Email, req.Token, req.Type)
	if err != nil {
		return a.respondVerifyFailure(c, err)
	}

	// verification proves code possession, it must not grant a
	// session; only the dedicated login step does
	if sess != nil && sess.AccessToken != "" {
		if err := a.provider.SignOut(c.Request().Context(), sess.AccessToken); err != nil {
			slog.Warn("failed to revoke post-verification session", "error", err)
		}
	}

	var data any
	if sess != nil && sess.User != nil {
		data = sess.User
	}
	return respondOK(c, data)
}

// respondVerifyFailure keeps the 403/other split: a 403 means the
// provider refused the request (blocked, rate limited), anything else
// is a wrong or expired code. Raw provider text is not shown here.
func (a *AuthAPI) respondVerifyFailure(c echo.Context, err error) error {
	perr := asProviderError(err)
	if perr == nil {
		return respondFailure(c, "verify", err)
	}
	status := perr.Status
	if status == 0 {
		status = http.StatusBadRequest
	}
	message := "invalid or expired code"
	if status == http.StatusForbidden {
		message = "request refused"
	}
	slog.Error("verify rejected by provider", "status", status, "code", perr.Code, "message", perr.Message)
	return c.JSON(status, errResponse{Error: message, Status: status})
}

func (a *AuthAPI) resetPassword(c echo.Context) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeBody(c, &req); err != nil {
		return respondFailure(c, "reset-password", err)
	}
	if req.Password == "" {
		return respondValidation(c, "password required")
	}

	jar := a.jar(c)
	sess := a.oracle.Current(c.Request().Context(), jar)
	if sess == nil {
		return c.JSON(http.StatusUnauthorized, errResponse{Error: "not authenticated"})
	}

	if err := a.provider.UpdatePassword(c.Request().Context(), sess.AccessToken, req.Password); err != nil {
		return respondFailure(c, "reset-password", err)
	}

	// the recovery session served its purpose; force a fresh login
	// with the new password
	if err := a.provider.SignOut(c.Request().Context(), sess.AccessToken); err != nil {
		slog.Warn("failed to revoke recovery session", "error", err)
	}
	a.cookies.ClearSession(jar)
	return respondOK(c, nil)
}

func (a *AuthAPI) logout(c echo.Context) error {
	jar := a.jar(c)
	if sess := a.cookies.ReadSession(jar); sess != nil {
		// provider-side revocation is best effort; the cookies are
		// cleared either way
		if err := a.provider.SignOut(c.Request().Context(), sess.AccessToken); err != nil {
			slog.Warn("provider sign-out failed", "error", err)
		}
	}
	a.cookies.ClearSession(jar)
	return respondOK(c, nil)
}

func (a *AuthAPI) me(c echo.Context) error {
	principal, err := a.oracle.Principal(c.Request().Context(), a.jar(c))
	if err != nil {
		// absent user and provider failure look the same from here:
		// unauthenticated
		slog.Debug("principal lookup failed", "error", err)
		return c.JSON(http.StatusUnauthorized, errResponse{Error: "not authenticated"})
	}
	return respondOK(c, principal)
}
