package routes

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evacsim/evacuation-core/internal/bim/builder"
	"github.com/evacsim/evacuation-core/internal/bimjson"
	"github.com/evacsim/evacuation-core/internal/registry"
)

// SetupBuildingHandlers registers the BIM ingestion endpoints.
func SetupBuildingHandlers(router *gin.RouterGroup, reg *registry.Registry) {
	router.POST("/buildings", submitBuilding(reg))
	router.GET("/buildings/:id", getBuilding(reg))
}

// submitBuilding decodes a raw BIM JSON document, validates it by running it
// through the builder once, and registers it for later runs.
func submitBuilding(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		doc, err := bimjson.Decode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		built, err := builder.Build(doc)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		rec := &registry.BuildingRecord{
			ID:         uuid.New(),
			Name:       doc.Name,
			Doc:        doc,
			Population: built.Population(),
			ZoneCount:  len(built.Zones),
		}
		reg.Buildings.Set(rec.ID, rec)

		c.JSON(http.StatusCreated, gin.H{
			"building_id": rec.ID,
			"name":        rec.Name,
			"population":  rec.Population,
			"zone_count":  rec.ZoneCount,
		})
	}
}

// getBuilding returns the summary recorded at submission time.
func getBuilding(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid building id"})
			return
		}

		rec, ok := reg.Buildings.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "building not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"building_id": rec.ID,
			"name":        rec.Name,
			"population":  rec.Population,
			"zone_count":  rec.ZoneCount,
		})
	}
}
