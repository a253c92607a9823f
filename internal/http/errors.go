package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// renderStatusPage mapea 401/404/405/500 a páginas dedicadas; cualquier otro
// estado cae a un cuerpo JSON {detail, status_code}.
func renderStatusPage(c *gin.Context, status int, detail string) {
	switch status {
	case http.StatusUnauthorized:
		c.HTML(status, "401_error.html", gin.H{})
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		c.HTML(status, "404_error.html", gin.H{})
	case http.StatusInternalServerError:
		c.HTML(status, "500_error.html", gin.H{})
	default:
		c.JSON(status, gin.H{"detail": detail, "status_code": status})
	}
}
