package evac_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evacsim/evacuation-core/internal/bim"
	"github.com/evacsim/evacuation-core/internal/bim/builder"
	"github.com/evacsim/evacuation-core/internal/bimjson"
	"github.com/evacsim/evacuation-core/internal/evac"
	"github.com/evacsim/evacuation-core/internal/graph"
)

func squarePts(x0, y0, side float64) bimjson.PolygonDTO {
	return bimjson.PolygonDTO{Points: []bimjson.Point{
		{X: x0, Y: y0}, {X: x0 + side, Y: y0}, {X: x0 + side, Y: y0 + side}, {X: x0, Y: y0 + side}, {X: x0, Y: y0},
	}}
}

func doorPts(cx, halfWidth float64) bimjson.PolygonDTO {
	return bimjson.PolygonDTO{Points: []bimjson.Point{
		{X: cx - halfWidth, Y: -0.1}, {X: cx + halfWidth, Y: -0.1}, {X: cx + halfWidth, Y: 0.1}, {X: cx - halfWidth, Y: 0.1}, {X: cx - halfWidth, Y: -0.1},
	}}
}

// singleRoomBuilding reproduces seed case 1: a 10x10 m square room, one 1 m
// DoorWayOut, 20 people, step = 0.01 min, max-speed = 100 m/min.
func singleRoomBuilding(t *testing.T, people uint64) *bim.Building {
	t.Helper()

	roomID := uuid.New().String()
	doorID := uuid.New().String()

	doc := &bimjson.Building{
		Name: "single-room",
		Levels: []bimjson.Level{{
			Name: "floor 1",
			BuildElements: []bimjson.Element{
				{
					ID: 1, UUID: roomID, Name: "room", Sign: bimjson.SignRoom,
					NumberOfPeople: people,
					Outputs:        []string{doorID},
					Polygon:        squarePts(0, 0, 10),
				},
				{
					ID: 2, UUID: doorID, Name: "exit", Sign: bimjson.SignDoorWayOut,
					Outputs: []string{roomID},
					Polygon: doorPts(5, 0.5),
				},
			},
		}},
	}

	b, err := builder.Build(doc)
	require.NoError(t, err)
	b.StepMinutes = 0.01
	b.MaxSpeed = 100.0
	return b
}

func totalPopulation(b *bim.Building) float64 {
	total := 0.0
	for _, z := range b.Zones {
		total += z.Population
	}
	return total
}

func TestRun_SingleRoomEvacuatesFully(t *testing.T) {
	b := singleRoomBuilding(t, 20)
	g, err := graph.Build(b)
	require.NoError(t, err)

	initial := totalPopulation(b)

	res, err := evac.NewSolver().Run(context.Background(), b, g)
	require.NoError(t, err)

	assert.InDelta(t, 20.0, res.InitialPop, 1e-9)
	assert.InDelta(t, 20.0, res.EvacuatedPop, 1e-6)
	assert.LessOrEqual(t, res.Seconds, 60.0)
	assert.InDelta(t, initial, totalPopulation(b), 1e-6, "population must be conserved")

	prev := -1.0
	for _, ds := range res.DistributionStates {
		outsidePop := ds.ZonePopulations[len(ds.ZonePopulations)-1]
		assert.GreaterOrEqual(t, outsidePop, prev-1e-9, "Outside population must be non-decreasing")
		prev = outsidePop
	}
}

func TestRun_ZeroPopulationStopsAfterOneStep(t *testing.T) {
	b := singleRoomBuilding(t, 0)
	g, err := graph.Build(b)
	require.NoError(t, err)

	res, err := evac.NewSolver().Run(context.Background(), b, g)
	require.NoError(t, err)

	require.Len(t, res.DistributionStates, 1)
	assert.InDelta(t, 0, res.Seconds, 1e-9)
	assert.InDelta(t, 0, res.EvacuatedPop, 1e-9)
}

func TestRun_AlreadyEvacuatedPerformsOneStep(t *testing.T) {
	b := singleRoomBuilding(t, 20)
	g, err := graph.Build(b)
	require.NoError(t, err)

	solver := evac.NewSolver()
	_, err = solver.Run(context.Background(), b, g)
	require.NoError(t, err)

	res2, err := solver.Run(context.Background(), b, g)
	require.NoError(t, err)

	require.Len(t, res2.DistributionStates, 1)
	assert.InDelta(t, 20.0, res2.EvacuatedPop, 1e-6)
}

// twoRoomBuilding reproduces seed case 2: two 5x5 m rooms connected by a
// 0.8 m DoorWay; the downstream room holds the only 1 m DoorWayOut.
func twoRoomBuilding(t *testing.T) *bim.Building {
	t.Helper()

	roomAID := uuid.New().String()
	roomBID := uuid.New().String()
	innerDoorID := uuid.New().String()
	exitDoorID := uuid.New().String()

	roomA := bimjson.Element{
		ID: 1, UUID: roomAID, Name: "upstream", Sign: bimjson.SignRoom,
		NumberOfPeople: 10,
		Outputs:        []string{innerDoorID},
		Polygon: bimjson.PolygonDTO{Points: []bimjson.Point{
			{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 2.1}, {X: 5, Y: 2.9}, {X: 5, Y: 5}, {X: 0, Y: 5}, {X: 0, Y: 0},
		}},
	}
	roomB := bimjson.Element{
		ID: 2, UUID: roomBID, Name: "downstream", Sign: bimjson.SignRoom,
		NumberOfPeople: 0,
		Outputs:        []string{innerDoorID, exitDoorID},
		Polygon: bimjson.PolygonDTO{Points: []bimjson.Point{
			{X: 5, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 5}, {X: 5, Y: 5}, {X: 5, Y: 2.9}, {X: 5, Y: 2.1}, {X: 5, Y: 0},
		}},
	}
	innerDoor := bimjson.Element{
		ID: 3, UUID: innerDoorID, Name: "inner door", Sign: bimjson.SignDoorWay,
		Outputs: []string{roomAID, roomBID},
		Polygon: bimjson.PolygonDTO{Points: []bimjson.Point{
			{X: 4.9, Y: 2.1}, {X: 5.1, Y: 2.1}, {X: 5.1, Y: 2.9}, {X: 4.9, Y: 2.9}, {X: 4.9, Y: 2.1},
		}},
	}
	exitDoor := bimjson.Element{
		ID: 4, UUID: exitDoorID, Name: "exit door", Sign: bimjson.SignDoorWayOut,
		Outputs: []string{roomBID},
		Polygon: doorPts(8, 0.5),
	}

	doc := &bimjson.Building{
		Name: "two-rooms",
		Levels: []bimjson.Level{{
			Name:          "floor 1",
			BuildElements: []bimjson.Element{roomA, roomB, innerDoor, exitDoor},
		}},
	}

	b, err := builder.Build(doc)
	require.NoError(t, err)
	b.StepMinutes = 0.01
	b.MaxSpeed = 100.0
	return b
}

func TestRun_TwoRoomsOrderedTransfer(t *testing.T) {
	b := twoRoomBuilding(t)
	g, err := graph.Build(b)
	require.NoError(t, err)

	initial := totalPopulation(b)

	res, err := evac.NewSolver().Run(context.Background(), b, g)
	require.NoError(t, err)

	assert.InDelta(t, initial, totalPopulation(b), 1e-6)
	assert.InDelta(t, 10.0, res.EvacuatedPop, 1e-6)

	var innerDoorway *bim.Transit
	for i := range b.Transits {
		if b.Transits[i].Kind == bim.TransitDoorWay {
			innerDoorway = &b.Transits[i]
		}
	}
	require.NotNil(t, innerDoorway)
	assert.GreaterOrEqual(t, innerDoorway.NoProceeding, 10.0-1e-6)
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	bSeq := twoRoomBuilding(t)
	gSeq, err := graph.Build(bSeq)
	require.NoError(t, err)
	resSeq, err := evac.NewSolver().Run(context.Background(), bSeq, gSeq)
	require.NoError(t, err)

	bPar := twoRoomBuilding(t)
	gPar, err := graph.Build(bPar)
	require.NoError(t, err)
	solverPar := evac.NewSolver()
	solverPar.Parallel = true
	resPar, err := solverPar.Run(context.Background(), bPar, gPar)
	require.NoError(t, err)

	require.Equal(t, len(resSeq.DistributionStates), len(resPar.DistributionStates))
	for i := range resSeq.DistributionStates {
		assert.Equal(t, resSeq.DistributionStates[i].ZonePopulations, resPar.DistributionStates[i].ZonePopulations)
		assert.Equal(t, resSeq.DistributionStates[i].TransitFlows, resPar.DistributionStates[i].TransitFlows)
	}
}
