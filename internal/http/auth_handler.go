package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamwatch/internal/domain"
	"streamwatch/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticación.
type AuthHandler struct {
	logger   *zap.Logger
	authServ *service.AuthService
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, authServ *service.AuthService) *AuthHandler {
	return &AuthHandler{
		logger:   logger,
		authServ: authServ,
	}
}

// Index maneja GET /.
func (h *AuthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"msg": "This page is home page."})
}

// GetLoginPage maneja GET /login.
func (h *AuthHandler) GetLoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login_register.html", gin.H{})
}

// GetRegisterPage maneja GET /register.
func (h *AuthHandler) GetRegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login_register.html", gin.H{"OpenSignup": true})
}

// Register maneja POST /register: valida y deja el registro pendiente del
// código enviado por correo.
func (h *AuthHandler) Register(c *gin.Context) {
	emailAddr := c.PostForm("email")
	username := c.PostForm("username")
	password := c.PostForm("password")

	err := h.authServ.Register(c.Request.Context(), SessionID(c), emailAddr, username, password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUsernameTaken):
			h.renderRegisterError(c, "This username is already registered.")
		case errors.Is(err, service.ErrEmailTaken):
			h.renderRegisterError(c, "This email is already registered.")
		case errors.Is(err, service.ErrInvalidEmail):
			h.renderRegisterError(c, "Please enter a valid email address.")
		case errors.Is(err, service.ErrInvalidPassword), errors.Is(err, service.ErrInvalidCredentials):
			h.renderRegisterError(c, "Your password must be 8-20 characters long.")
		case errors.Is(err, service.ErrEmailSendFailure):
			h.renderRegisterError(c, "Could not send the verification email. Please try again.")
		default:
			h.logger.Error("register failed", zap.Error(err))
			renderStatusPage(c, http.StatusInternalServerError, "could not register")
		}
		return
	}

	c.Redirect(http.StatusSeeOther, "/verify")
}

// Login maneja POST /login.
func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	token, err := h.authServ.Login(c.Request.Context(), username, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.HTML(http.StatusOK, "login_register.html", gin.H{"Error": "Incorrect username or password"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		renderStatusPage(c, http.StatusInternalServerError, "could not login")
		return
	}

	setAccessCookie(c, token)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// GetVerifyPage maneja GET /verify.
func (h *AuthHandler) GetVerifyPage(c *gin.Context) {
	kind := h.authServ.PendingKind(SessionID(c))
	if kind == domain.VerificationNone {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	c.HTML(http.StatusOK, "verify.html", gin.H{"Kind": string(kind)})
}

// Verify maneja POST /verify: un único campo con el código de 4 dígitos.
func (h *AuthHandler) Verify(c *gin.Context) {
	code := c.PostForm("code")

	kind, token, err := h.authServ.VerifyCode(c.Request.Context(), SessionID(c), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoPending):
			c.Redirect(http.StatusSeeOther, "/login")
		case errors.Is(err, service.ErrCodeMismatch):
			// Un código incorrecto descarta el estado pendiente.
			c.HTML(http.StatusOK, "login_register.html", gin.H{"Error": "Incorrect verification code. Please start over."})
		case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrEmailTaken):
			h.renderRegisterError(c, "This username or email is already registered.")
		default:
			h.logger.Error("verify failed", zap.Error(err))
			renderStatusPage(c, http.StatusInternalServerError, "could not verify")
		}
		return
	}

	if kind == domain.VerificationReset {
		c.Redirect(http.StatusSeeOther, "/reset-password-confirmed")
		return
	}

	setAccessCookie(c, token)
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// GetResetPage maneja GET /reset-password.
func (h *AuthHandler) GetResetPage(c *gin.Context) {
	c.HTML(http.StatusOK, "reset_password.html", gin.H{})
}

// RequestReset maneja POST /reset-password.
func (h *AuthHandler) RequestReset(c *gin.Context) {
	emailAddr := c.PostForm("email")

	err := h.authServ.RequestReset(c.Request.Context(), SessionID(c), emailAddr)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailNotFound):
			c.HTML(http.StatusOK, "reset_password.html", gin.H{"Error": "This email is not registered."})
		case errors.Is(err, service.ErrEmailSendFailure):
			c.HTML(http.StatusOK, "reset_password.html", gin.H{"Error": "Could not send the verification email. Please try again."})
		default:
			h.logger.Error("reset request failed", zap.Error(err))
			renderStatusPage(c, http.StatusInternalServerError, "could not request reset")
		}
		return
	}

	c.Redirect(http.StatusSeeOther, "/verify")
}

// GetResetConfirmPage maneja GET /reset-password-confirmed.
func (h *AuthHandler) GetResetConfirmPage(c *gin.Context) {
	if h.authServ.PendingKind(SessionID(c)) != domain.VerificationReset {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	c.HTML(http.StatusOK, "reset_password_confirmed.html", gin.H{})
}

// ConfirmReset maneja POST /reset-password-confirmed.
func (h *AuthHandler) ConfirmReset(c *gin.Context) {
	password := c.PostForm("password")
	confirm := c.PostForm("confirm_password")

	err := h.authServ.ConfirmReset(c.Request.Context(), SessionID(c), password, confirm)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoPending):
			c.Redirect(http.StatusSeeOther, "/login")
		case errors.Is(err, service.ErrPasswordMismatch):
			c.HTML(http.StatusOK, "reset_password_confirmed.html", gin.H{"Error": "Passwords do not match."})
		case errors.Is(err, service.ErrInvalidPassword):
			c.HTML(http.StatusOK, "reset_password_confirmed.html", gin.H{"Error": "Your password must be 8-20 characters long."})
		default:
			h.logger.Error("reset confirm failed", zap.Error(err))
			renderStatusPage(c, http.StatusInternalServerError, "could not reset password")
		}
		return
	}

	c.Redirect(http.StatusSeeOther, "/login")
}

// Logout maneja POST /logout: borra la credencial del cliente.
func (h *AuthHandler) Logout(c *gin.Context) {
	clearAccessCookie(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *AuthHandler) renderRegisterError(c *gin.Context, msg string) {
	c.HTML(http.StatusOK, "login_register.html", gin.H{"Error": msg, "OpenSignup": true})
}
