package graph_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evacsim/evacuation-core/internal/bim"
	"github.com/evacsim/evacuation-core/internal/bim/builder"
	"github.com/evacsim/evacuation-core/internal/bimjson"
	"github.com/evacsim/evacuation-core/internal/graph"
)

func square(x0, y0, side float64) bimjson.PolygonDTO {
	return bimjson.PolygonDTO{Points: []bimjson.Point{
		{X: x0, Y: y0},
		{X: x0 + side, Y: y0},
		{X: x0 + side, Y: y0 + side},
		{X: x0, Y: y0 + side},
		{X: x0, Y: y0},
	}}
}

func buildTwoRoomBuilding(t *testing.T) *bim.Building {
	t.Helper()

	roomID := uuid.New().String()
	doorID := uuid.New().String()

	doc := &bimjson.Building{
		Name: "graph-fixture",
		Levels: []bimjson.Level{{
			Name: "floor 1",
			BuildElements: []bimjson.Element{
				{
					ID: 1, UUID: roomID, Name: "room", Sign: bimjson.SignRoom,
					NumberOfPeople: 5,
					Outputs:        []string{doorID},
					Polygon:        square(0, 0, 10),
				},
				{
					ID: 2, UUID: doorID, Name: "exit", Sign: bimjson.SignDoorWayOut,
					Outputs: []string{roomID},
					Polygon: bimjson.PolygonDTO{Points: []bimjson.Point{
						{X: 4.5, Y: -0.1}, {X: 5.5, Y: -0.1}, {X: 5.5, Y: 0.1}, {X: 4.5, Y: 0.1}, {X: 4.5, Y: -0.1},
					}},
				},
			},
		}},
	}

	b, err := builder.Build(doc)
	require.NoError(t, err)
	return b
}

func TestBuild_AdjacencyIsSymmetric(t *testing.T) {
	b := buildTwoRoomBuilding(t)
	b.StepMinutes = 0.01

	g, err := graph.Build(b)
	require.NoError(t, err)

	room := b.Zones[0]
	outside := b.Outside()

	roomEdges := g.Adjacency(room.UUID)
	require.Len(t, roomEdges, 1)
	assert.Equal(t, outside.UUID, roomEdges[0].Other)
	assert.Greater(t, roomEdges[0].Capacity, 0.0)

	outsideEdges := g.Adjacency(outside.UUID)
	require.Len(t, outsideEdges, 1)
	assert.Equal(t, room.UUID, outsideEdges[0].Other)
	assert.Equal(t, roomEdges[0].Transit, outsideEdges[0].Transit)
}

func TestZoneContaining(t *testing.T) {
	b := buildTwoRoomBuilding(t)

	g, err := graph.Build(b)
	require.NoError(t, err)

	z, ok := g.ZoneContaining(orb.Point{5, 5})
	require.True(t, ok)
	assert.Equal(t, bim.ZoneRoom, z.Kind)

	_, ok = g.ZoneContaining(orb.Point{500, 500})
	assert.False(t, ok)
}
