package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"streamwatch/internal/service"
)

const (
	sessionCookieName = "session_id"
	accessCookieName  = "access_token"
	// Igual que la vigencia del token: 8 horas.
	accessCookieMaxAge = 28800

	sessionIDKey = "session_id"
	usernameKey  = "auth_username"
)

// sessionMiddleware asegura una cookie httponly de sesión de navegador que
// correlaciona el estado pendiente de verificación.
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(sessionCookieName)
		if err != nil || strings.TrimSpace(sessionID) == "" {
			sessionID = uuid.NewString()
			c.SetCookie(sessionCookieName, sessionID, 0, "/", "", false, true)
		}
		c.Set(sessionIDKey, sessionID)
		c.Next()
	}
}

// SessionID obtiene el identificador de sesión de navegador del contexto.
func SessionID(c *gin.Context) string {
	val, ok := c.Get(sessionIDKey)
	if !ok {
		return ""
	}
	sessionID, _ := val.(string)
	return sessionID
}

// RequireAuth valida el bearer token de la cookie access_token y guarda el
// username en el contexto. Con redirectOnFail las fallas redirigen a /login;
// sin él se responde con la página 401.
func RequireAuth(tokens *service.TokenService, redirectOnFail bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := usernameFromCookie(c, tokens)
		if !ok {
			if redirectOnFail {
				c.Redirect(http.StatusSeeOther, "/login")
			} else {
				renderStatusPage(c, http.StatusUnauthorized, "not authenticated")
			}
			c.Abort()
			return
		}
		c.Set(usernameKey, username)
		c.Next()
	}
}

// AuthUsername obtiene el username autenticado del contexto.
func AuthUsername(c *gin.Context) (string, bool) {
	val, ok := c.Get(usernameKey)
	if !ok {
		return "", false
	}
	username, ok := val.(string)
	return username, ok && username != ""
}

func usernameFromCookie(c *gin.Context, tokens *service.TokenService) (string, bool) {
	if tokens == nil {
		return "", false
	}
	raw, err := c.Cookie(accessCookieName)
	if err != nil {
		return "", false
	}
	// La cookie guarda "Bearer <token>".
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[len("Bearer "):])
	}
	username, err := tokens.Verify(token)
	if err != nil {
		return "", false
	}
	return username, true
}

// setAccessCookie escribe la cookie directamente con net/http para conservar
// el valor "Bearer <token>" literal (gin escaparía el espacio).
func setAccessCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     accessCookieName,
		Value:    "Bearer " + token,
		MaxAge:   accessCookieMaxAge,
		Path:     "/",
		HttpOnly: true,
	})
}

func clearAccessCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     accessCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
	})
}
