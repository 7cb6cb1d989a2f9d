// Package result holds the two parallel time series the evacuation solver
// emits and the final bundled record.
package result

import (
	"github.com/google/uuid"

	"github.com/evacsim/evacuation-core/internal/bim"
)

// DistributionState is one step's snapshot: every zone's population followed
// by every transit's flow for that step, both in id-sorted order.
type DistributionState struct {
	TimeMinutes     float64   `json:"time_minutes"`
	ZonePopulations []float64 `json:"zone_populations"`
	TransitFlows    []float64 `json:"transit_flows"`
}

// ZoneDensity is a single zone's population at a point in time.
type ZoneDensity struct {
	ZoneUUID uuid.UUID `json:"zone_uuid"`
	Density  float64   `json:"density"`
}

// ItemTimeStepData is one step's per-zone density snapshot, keyed by uuid
// rather than id, for consumers that serialize without the building's index.
type ItemTimeStepData struct {
	TimeSeconds float64       `json:"time_seconds"`
	Zones       []ZoneDensity `json:"zones"`
}

// EvacuationModelingResult bundles both series plus run-level totals.
type EvacuationModelingResult struct {
	RunID        uuid.UUID `json:"run_id"`
	InitialPop   float64   `json:"initial_pop"`
	EvacuatedPop float64   `json:"evacuated_pop"`
	Seconds      float64   `json:"seconds"`

	DistributionStates []DistributionState `json:"distribution_states"`
	ByStep             []ItemTimeStepData  `json:"by_step"`
}

// Snapshot builds one step's pair of records from the building's current
// state and the flow each transit carried during this step (aligned to
// b.Transits' id order).
func Snapshot(b *bim.Building, transitFlows []float64) (DistributionState, ItemTimeStepData) {
	pops := make([]float64, len(b.Zones))
	densities := make([]ZoneDensity, len(b.Zones))
	for i, z := range b.Zones {
		pops[i] = z.Population
		densities[i] = ZoneDensity{ZoneUUID: z.UUID, Density: z.Population}
	}

	flows := make([]float64, len(transitFlows))
	copy(flows, transitFlows)

	ds := DistributionState{
		TimeMinutes:     b.ClockMinutes,
		ZonePopulations: pops,
		TransitFlows:    flows,
	}
	it := ItemTimeStepData{
		TimeSeconds: b.ClockMinutes * 60,
		Zones:       densities,
	}
	return ds, it
}

// Finalize stamps the run-level totals once the solver loop has stopped.
func Finalize(res *EvacuationModelingResult, b *bim.Building) {
	outside := b.Outside()
	if outside != nil {
		res.EvacuatedPop = outside.Population
	}
	res.Seconds = b.ClockMinutes * 60
}
