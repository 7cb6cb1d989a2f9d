// Package evac implements the evacuation solver: discrete-time potential
// relaxation followed by per-step flow redistribution across the transport
// graph, until the building empties.
package evac

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/evacsim/evacuation-core/internal/bim"
	"github.com/evacsim/evacuation-core/internal/bimerr"
	"github.com/evacsim/evacuation-core/internal/graph"
	"github.com/evacsim/evacuation-core/internal/result"
)

// MaxDensity is the crush-density ceiling (persons/m^2) a zone can hold,
// the same order of magnitude as Fruin's level-of-service figures.
const MaxDensity = 4.0

// minWidthFloor keeps the potential-field edge cost finite across transits
// that, by construction, can have a zero or negative width (e.g. one still
// awaiting calculateTransitsWidth in a test fixture).
const minWidthFloor = 0.1

// Solver runs the main evacuation loop over a Building and its Graph.
type Solver struct {
	// Parallel enables errgroup-based concurrent relaxation and flow
	// computation. Results are staged into per-step buffers and applied in
	// id order regardless, so enabling this never changes the output.
	Parallel bool

	// StepBudget bounds the wall-clock time of a single step. Zero means no
	// budget. Exceeding it aborts the run with bimerr.ErrTimeout and the
	// partial series collected so far.
	StepBudget time.Duration

	// Remainder is the population threshold the visited-zone sum must fall
	// to or below for the run to be considered complete. Zero by default.
	Remainder float64

	// MaxSteps is a safety backstop against a malformed building that never
	// satisfies the termination condition. Zero means unbounded.
	MaxSteps int

	// OnStep, when set, is called after every step's snapshot is recorded.
	// The HTTP layer uses this to keep a run's cached progress snapshot
	// current while the solver is still running.
	OnStep func(ds result.DistributionState, it result.ItemTimeStepData)
}

// NewSolver returns a Solver with the defaults described in its field docs.
func NewSolver() *Solver {
	return &Solver{}
}

// Run executes the main loop against b and g, mutating b in place, and
// returns the assembled result record.
func (s *Solver) Run(ctx context.Context, b *bim.Building, g *graph.Graph) (*result.EvacuationModelingResult, error) {
	prepareStepMinutes(b)
	b.ClockMinutes = 0

	res := &result.EvacuationModelingResult{
		RunID:      uuid.New(),
		InitialPop: b.Population(),
	}

	for step := 0; s.MaxSteps <= 0 || step < s.MaxSteps; step++ {
		stepCtx := ctx
		var cancel context.CancelFunc
		if s.StepBudget > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, s.StepBudget)
		}

		flows, err := s.runStep(stepCtx, b, g)

		if cancel != nil {
			cancel()
		}

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				result.Finalize(res, b)
				return res, bimerr.ErrTimeout
			}
			return nil, err
		}

		ds, it := result.Snapshot(b, flows)
		res.DistributionStates = append(res.DistributionStates, ds)
		res.ByStep = append(res.ByStep, it)

		if s.OnStep != nil {
			s.OnStep(ds, it)
		}

		if terminated(b, s.Remainder) {
			break
		}

		b.ClockMinutes += b.StepMinutes
	}

	result.Finalize(res, b)
	return res, nil
}

func (s *Solver) runStep(ctx context.Context, b *bim.Building, g *graph.Graph) ([]float64, error) {
	if err := s.relaxPotentials(ctx, b, g); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	flows, err := s.applyFlows(ctx, b)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return flows, nil
}

// prepareStepMinutes sets b.StepMinutes from the building's total area and
// zone count when the caller left it unset.
func prepareStepMinutes(b *bim.Building) {
	if b.StepMinutes != 0 {
		return
	}

	count := 0
	for i := range b.Zones {
		if b.Zones[i].Kind == bim.ZoneRoom || b.Zones[i].Kind == bim.ZoneStaircase {
			count++
		}
	}
	if count == 0 || b.MaxSpeed <= 0 {
		b.StepMinutes = 1
		return
	}
	b.StepMinutes = math.Sqrt(b.Area()/float64(count)) / b.MaxSpeed * 0.1
}

// relaxPotentials recomputes Zone.Potential for every zone via Jacobi-style
// relaxation from the Outside zone outward: each sweep reads only the
// previous sweep's values and writes into a buffer, so the sweep body is
// identical whether run sequentially or fanned out across goroutines.
func (s *Solver) relaxPotentials(ctx context.Context, b *bim.Building, g *graph.Graph) error {
	for i := range b.Zones {
		if b.Zones[i].Kind == bim.ZoneOutside {
			b.Zones[i].Potential = 0
		} else {
			b.Zones[i].Potential = bim.SentinelZoneArea
		}
	}

	buffer := make([]float64, len(b.Zones))
	for iter := 0; iter < len(b.Zones); iter++ {
		changed, err := s.relaxSweep(ctx, b, g, buffer)
		if err != nil {
			return err
		}
		if !changed {
			break
		}
	}
	return nil
}

func (s *Solver) relaxSweep(ctx context.Context, b *bim.Building, g *graph.Graph, buffer []float64) (bool, error) {
	compute := func(i int) {
		z := &b.Zones[i]
		if z.Kind == bim.ZoneOutside {
			buffer[i] = 0
			return
		}

		best := z.Potential
		for _, e := range g.Adjacency(z.UUID) {
			t, ok := b.TransitByUUID(e.Transit)
			if !ok || t.Blocked || z.Blocked {
				continue
			}
			other, ok := b.ZoneByUUID(e.Other)
			if !ok || other.Blocked {
				continue
			}
			candidate := other.Potential + edgeCost(z, t, b.MaxSpeed)
			if candidate < best {
				best = candidate
			}
		}
		buffer[i] = best
	}

	if s.Parallel {
		eg, egCtx := errgroup.WithContext(ctx)
		for i := range b.Zones {
			i := i
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				compute(i)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return false, err
		}
	} else {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		for i := range b.Zones {
			compute(i)
		}
	}

	changed := false
	for i := range b.Zones {
		if buffer[i] < b.Zones[i].Potential-1e-12 {
			changed = true
		}
		b.Zones[i].Potential = buffer[i]
	}
	return changed, nil
}

// edgeCost estimates the minutes to cross zone z and pass through transit t:
// a crossing-distance term (sqrt of area, at max speed) plus a doorway
// scarcity term (inverse width) that pushes flow toward wider doorways.
func edgeCost(z *bim.Zone, t *bim.Transit, maxSpeed float64) float64 {
	width := t.Width
	if width <= 0 {
		width = minWidthFloor
	}
	speed := maxSpeed
	if speed <= 0 {
		speed = 1
	}
	return math.Sqrt(maxF(z.Area, 0))/speed + 1.0/width
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func safeArea(area float64) float64 {
	return maxF(area, 1e-9)
}

// speed is the density-throttled walking speed: a linear fundamental-diagram
// factor that is 1 at zero density and 0 at MaxDensity, monotone decreasing,
// bounded above by maxSpeed.
func speed(density, maxSpeed float64) float64 {
	factor := 1 - density/MaxDensity
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	return maxSpeed * factor
}

// transitFlow is one transit's donor/receiver assignment and desired flow
// for the step currently being computed.
type transitFlow struct {
	transit  *bim.Transit
	donor    *bim.Zone
	receiver *bim.Zone
	desired  float64
}

// applyFlows determines donor/receiver per transit, computes each transit's
// desired flow independently (safe to parallelize — each only reads current
// state), then scales flows sharing a donor so their sum never exceeds that
// donor's population, and finally applies every mutation in transit-id
// order. It returns the per-transit flow actually applied, aligned to
// b.Transits.
func (s *Solver) applyFlows(ctx context.Context, b *bim.Building) ([]float64, error) {
	flows := make([]*transitFlow, len(b.Transits))

	compute := func(i int) {
		t := &b.Transits[i]
		if t.Blocked || len(t.Outputs) != 2 {
			return
		}
		zoneA, okA := b.ZoneByUUID(t.Outputs[0])
		zoneB, okB := b.ZoneByUUID(t.Outputs[1])
		if !okA || !okB || zoneA.Blocked || zoneB.Blocked {
			return
		}

		var donor, receiver *bim.Zone
		switch {
		case zoneA.Potential > zoneB.Potential:
			donor, receiver = zoneA, zoneB
		case zoneB.Potential > zoneA.Potential:
			donor, receiver = zoneB, zoneA
		default:
			return // equal potential: no driving force, no flow
		}

		if donor.Population <= 0 {
			return
		}

		density := donor.Population / safeArea(donor.Area)
		flowRate := speed(density, b.MaxSpeed) * t.Width
		transitCapacity := maxF(flowRate*b.StepMinutes, 0)

		receiverDensity := receiver.Population / safeArea(receiver.Area)
		receiverCapacity := maxF((MaxDensity-receiverDensity)*safeArea(receiver.Area), 0)

		desired := minF(transitCapacity, receiverCapacity)
		if desired <= 0 {
			return
		}
		flows[i] = &transitFlow{transit: t, donor: donor, receiver: receiver, desired: desired}
	}

	if s.Parallel {
		eg, egCtx := errgroup.WithContext(ctx)
		for i := range b.Transits {
			i := i
			eg.Go(func() error {
				if err := egCtx.Err(); err != nil {
					return err
				}
				compute(i)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	} else {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range b.Transits {
			compute(i)
		}
	}

	donorSums := make(map[uuid.UUID]float64, len(b.Zones))
	for _, f := range flows {
		if f != nil {
			donorSums[f.donor.UUID] += f.desired
		}
	}
	donorScale := make(map[uuid.UUID]float64, len(donorSums))
	for id, sum := range donorSums {
		donor, _ := b.ZoneByUUID(id)
		if sum > donor.Population && sum > 0 {
			donorScale[id] = donor.Population / sum
		} else {
			donorScale[id] = 1
		}
	}

	applied := make([]float64, len(b.Transits))
	for i, f := range flows {
		if f == nil {
			continue
		}
		actual := f.desired * donorScale[f.donor.UUID]
		if actual <= 0 {
			continue
		}
		f.donor.Population -= actual
		f.receiver.Population += actual
		f.transit.NoProceeding += actual
		f.transit.Visited = true
		f.donor.Visited = true
		f.receiver.Visited = true
		applied[i] = actual
	}

	return applied, nil
}

// terminated reports whether the population still in play — the sum over
// every visited non-Outside zone — has fallen to or below remainder.
// Restricting the sum to visited zones lets disconnected, never-reached
// zones (which can never empty) be ignored, per the source's termination
// rule.
func terminated(b *bim.Building, remainder float64) bool {
	sum := 0.0
	for i := range b.Zones {
		z := &b.Zones[i]
		if z.Kind == bim.ZoneOutside || !z.Visited {
			continue
		}
		sum += z.Population
	}
	return sum <= remainder
}
