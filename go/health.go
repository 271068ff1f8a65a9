package careserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func healthHandler(readiness func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if readiness != nil {
			if err := readiness(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
