package routes

import "github.com/gin-gonic/gin"

// SetupHealthHandlers registers the liveness/info endpoints.
func SetupHealthHandlers(router *gin.RouterGroup, port string) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "evacuation-core",
			"port":    port,
		})
	})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
