package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"streamwatch/internal/service"
)

// NewRouter configura el router de Gin con middlewares, vistas y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	watchH *WatchlistHandler,
	tokens *service.TokenService,
	templatesGlob string,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y sesión de navegador.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), sessionMiddleware())

	if templatesGlob != "" {
		r.LoadHTMLGlob(templatesGlob)
	}

	r.NoRoute(func(c *gin.Context) {
		renderStatusPage(c, 404, "page not found")
	})
	r.NoMethod(func(c *gin.Context) {
		renderStatusPage(c, 405, "method not allowed")
	})
	r.HandleMethodNotAllowed = true

	r.GET("/", authH.Index)
	r.GET("/login", authH.GetLoginPage)
	r.GET("/register", authH.GetRegisterPage)
	r.POST("/register", authH.Register)
	r.POST("/login", authH.Login)
	r.GET("/verify", authH.GetVerifyPage)
	r.POST("/verify", authH.Verify)
	r.GET("/reset-password", authH.GetResetPage)
	r.POST("/reset-password", authH.RequestReset)
	r.GET("/reset-password-confirmed", authH.GetResetConfirmPage)
	r.POST("/reset-password-confirmed", authH.ConfirmReset)
	r.POST("/logout", authH.Logout)

	// El dashboard redirige a /login sin token; las mutaciones del watchlist
	// responden 401 como en el resto de areas protegidas.
	r.GET("/dashboard", RequireAuth(tokens, true), watchH.Dashboard)
	r.POST("/add_streamer", RequireAuth(tokens, false), watchH.AddStreamer)
	r.POST("/delete_streamer/:name", RequireAuth(tokens, false), watchH.DeleteStreamer)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
