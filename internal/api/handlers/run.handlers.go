package routes

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evacsim/evacuation-core/internal/bim/builder"
	"github.com/evacsim/evacuation-core/internal/bimerr"
	"github.com/evacsim/evacuation-core/internal/evac"
	"github.com/evacsim/evacuation-core/internal/graph"
	"github.com/evacsim/evacuation-core/internal/registry"
	"github.com/evacsim/evacuation-core/internal/result"
	"github.com/evacsim/evacuation-core/internal/run"
)

// SetupRunHandlers registers the evacuation run endpoints.
func SetupRunHandlers(router *gin.RouterGroup, reg *registry.Registry) {
	router.POST("/buildings/:id/run", startRun(reg))
	router.GET("/runs/:run_id", getRun(reg))
}

// startRun rebuilds a fresh Building from the submitted document, launches
// the solver in a goroutine, and returns the run id immediately. The run's
// progress is then polled via GET /runs/:run_id.
func startRun(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		buildingID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid building id"})
			return
		}

		rec, ok := reg.Buildings.Get(buildingID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "building not found"})
			return
		}

		b, err := builder.Build(rec.Doc)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if reg.Config.DefaultMaxSpeed > 0 {
			b.MaxSpeed = reg.Config.DefaultMaxSpeed
		}
		if reg.Config.DefaultStepMinutes > 0 {
			b.StepMinutes = reg.Config.DefaultStepMinutes
		}

		g, err := graph.Build(b)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}

		solver := evac.NewSolver()
		solver.StepBudget = reg.Config.StepBudget

		runRecord := run.NewRecord(uuid.New(), b)
		reg.Runs.Set(runRecord.RunID, runRecord)

		solver.OnStep = func(ds result.DistributionState, _ result.ItemTimeStepData) {
			runRecord.SetLatest(ds)
			reg.Runs.Set(runRecord.RunID, runRecord) // refresh the dirty flag for the persist worker
		}

		go runSolver(reg, rec, runRecord, solver, g)

		c.JSON(http.StatusAccepted, gin.H{
			"run_id":      runRecord.RunID,
			"building_id": buildingID,
			"status":      run.StatusRunning,
		})
	}
}

func runSolver(reg *registry.Registry, rec *registry.BuildingRecord, runRecord *run.Record, solver *evac.Solver, g *graph.Graph) {
	ctx := context.Background()
	res, err := solver.Run(ctx, runRecord.Building, g)

	if err != nil && !errors.Is(err, bimerr.ErrTimeout) {
		log.Printf("run %s failed: %v", runRecord.RunID, err)
		runRecord.Finish(nil, err)
		reg.Runs.Set(runRecord.RunID, runRecord)
		return
	}

	if res != nil {
		res.RunID = runRecord.RunID // one id for the poll endpoint, the cache and the result table
	}
	runRecord.Finish(res, nil)
	reg.Runs.Set(runRecord.RunID, runRecord)

	if reg.Store != nil && res != nil {
		if saveErr := reg.Store.SaveResult(ctx, rec.Name, res); saveErr != nil {
			log.Printf("run %s: failed to persist result: %v", runRecord.RunID, saveErr)
		}
	}
}

// getRun reports a run's current status: its latest step snapshot while
// running, or the full result once finished.
func getRun(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID, err := uuid.Parse(c.Param("run_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		rec, ok := reg.Runs.Get(runID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}

		body := gin.H{"run_id": runID, "status": rec.Status}
		if rec.Status == run.StatusFailed {
			body["error"] = rec.Err.Error()
			c.JSON(http.StatusOK, body)
			return
		}
		if rec.Status == run.StatusCompleted {
			body["result"] = rec.Result
			c.JSON(http.StatusOK, body)
			return
		}
		if latest, ok := rec.Latest(); ok {
			body["latest"] = latest
		}
		c.JSON(http.StatusOK, body)
	}
}
