package api

import (
	routes "github.com/evacsim/evacuation-core/internal/api/handlers"
	"github.com/evacsim/evacuation-core/internal/registry"

	"github.com/gin-gonic/gin"
)

// SetupRouter initializes all application routes
func SetupRouter(r *gin.Engine, reg *registry.Registry) {
	// API group
	api := r.Group("/api")

	routes.SetupHealthHandlers(r.Group(""), reg.Config.Port)
	routes.SetupBuildingHandlers(api, reg)
	routes.SetupRunHandlers(api, reg)
}
