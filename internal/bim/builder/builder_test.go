package builder

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evacsim/evacuation-core/internal/bim"
	"github.com/evacsim/evacuation-core/internal/bimerr"
	"github.com/evacsim/evacuation-core/internal/bimjson"
)

func pts(coords ...[2]float64) bimjson.PolygonDTO {
	p := bimjson.PolygonDTO{Points: make([]bimjson.Point, len(coords))}
	for i, c := range coords {
		p.Points[i] = bimjson.Point{X: c[0], Y: c[1]}
	}
	return p
}

func newID() string { return uuid.New().String() }

func TestBuild_SingleRoomWithExit(t *testing.T) {
	roomID := newID()
	doorID := newID()

	doc := &bimjson.Building{
		Name: "single-room",
		Levels: []bimjson.Level{{
			Name: "floor 1",
			BuildElements: []bimjson.Element{
				{
					ID: 1, UUID: roomID, Name: "room", Sign: bimjson.SignRoom,
					NumberOfPeople: 20,
					Outputs:        []string{doorID},
					Polygon:        pts([2]float64{0, 0}, [2]float64{10, 0}, [2]float64{10, 10}, [2]float64{0, 10}, [2]float64{0, 0}),
				},
				{
					ID: 2, UUID: doorID, Name: "exit", Sign: bimjson.SignDoorWayOut,
					Outputs: []string{roomID},
					Polygon: pts([2]float64{4.5, -0.1}, [2]float64{5.5, -0.1}, [2]float64{5.5, 0.1}, [2]float64{4.5, 0.1}, [2]float64{4.5, -0.1}),
				},
			},
		}},
	}

	b, err := Build(doc)
	require.NoError(t, err)

	require.Len(t, b.Zones, 2)
	outside := b.Outside()
	require.NotNil(t, outside)
	assert.Equal(t, bim.ZoneOutside, outside.Kind)
	assert.True(t, outside.Safe)
	assert.Equal(t, uint64(2), outside.ID) // one greater than the single real zone's id
	assert.Equal(t, b.Zones[len(b.Zones)-1].UUID, outside.UUID, "Outside must be last in the flat zones list")

	door, ok := b.TransitByUUID(uuid.MustParse(doorID))
	require.True(t, ok)
	assert.InDelta(t, 1.0, door.Width, 1e-9)
	assert.Len(t, door.Outputs, 2, "DoorWayOut transit must gain Outside as its second endpoint")
	assert.Contains(t, door.Outputs, outside.UUID)

	assert.InDelta(t, 20.0, b.Population(), 1e-9)
	assert.InDelta(t, 100.0, b.Area(), 1e-9)
}

func TestBuild_TwoRoomsDoorWayWidth(t *testing.T) {
	roomAID := newID()
	roomBID := newID()
	innerDoorID := newID()
	exitDoorID := newID()

	roomA := bimjson.Element{
		ID: 1, UUID: roomAID, Name: "upstream", Sign: bimjson.SignRoom,
		NumberOfPeople: 10,
		Outputs:        []string{innerDoorID},
		Polygon: pts(
			[2]float64{0, 0}, [2]float64{5, 0}, [2]float64{5, 2.1}, [2]float64{5, 2.9}, [2]float64{5, 5}, [2]float64{0, 5}, [2]float64{0, 0},
		),
	}
	roomB := bimjson.Element{
		ID: 2, UUID: roomBID, Name: "downstream", Sign: bimjson.SignRoom,
		NumberOfPeople: 0,
		Outputs:        []string{innerDoorID, exitDoorID},
		Polygon: pts(
			[2]float64{5, 0}, [2]float64{10, 0}, [2]float64{10, 5}, [2]float64{5, 5}, [2]float64{5, 2.9}, [2]float64{5, 2.1}, [2]float64{5, 0},
		),
	}
	innerDoor := bimjson.Element{
		ID: 3, UUID: innerDoorID, Name: "inner door", Sign: bimjson.SignDoorWay,
		Outputs: []string{roomAID, roomBID},
		Polygon: pts([2]float64{4.9, 2.1}, [2]float64{5.1, 2.1}, [2]float64{5.1, 2.9}, [2]float64{4.9, 2.9}, [2]float64{4.9, 2.1}),
	}
	exitDoor := bimjson.Element{
		ID: 4, UUID: exitDoorID, Name: "exit door", Sign: bimjson.SignDoorWayOut,
		Outputs: []string{roomBID},
		Polygon: pts([2]float64{7.5, -0.1}, [2]float64{8.5, -0.1}, [2]float64{8.5, 0.1}, [2]float64{7.5, 0.1}, [2]float64{7.5, -0.1}),
	}

	doc := &bimjson.Building{
		Name: "two-rooms",
		Levels: []bimjson.Level{{
			Name:          "floor 1",
			BuildElements: []bimjson.Element{roomA, roomB, innerDoor, exitDoor},
		}},
	}

	b, err := Build(doc)
	require.NoError(t, err)

	inner, ok := b.TransitByUUID(uuid.MustParse(innerDoorID))
	require.True(t, ok)
	assert.InDelta(t, 0.8, inner.Width, 1e-6)

	exit, ok := b.TransitByUUID(uuid.MustParse(exitDoorID))
	require.True(t, ok)
	assert.InDelta(t, 1.0, exit.Width, 1e-9)
}

func TestBuild_InterFloorStaircaseWidth(t *testing.T) {
	stairAID := newID()
	stairBID := newID()
	transitID := newID()
	exitID := newID()

	// Two 20 m^2 (4x5) staircases joined by an inter-floor transit with no
	// meaningful polygon geometry.
	stairA := bimjson.Element{
		ID: 1, UUID: stairAID, Name: "stair A", Sign: bimjson.SignStaircase,
		Outputs: []string{transitID},
		Polygon: pts([2]float64{0, 0}, [2]float64{4, 0}, [2]float64{4, 5}, [2]float64{0, 5}, [2]float64{0, 0}),
	}
	stairB := bimjson.Element{
		ID: 2, UUID: stairBID, Name: "stair B", Sign: bimjson.SignStaircase,
		Outputs: []string{transitID, exitID},
		Polygon: pts([2]float64{0, 0}, [2]float64{4, 0}, [2]float64{4, 5}, [2]float64{0, 5}, [2]float64{0, 0}),
	}
	transit := bimjson.Element{
		ID: 3, UUID: transitID, Name: "stairwell link", Sign: bimjson.SignDoorWay,
		Outputs: []string{stairAID, stairBID},
		Polygon: pts([2]float64{0, 0}, [2]float64{0, 0}, [2]float64{0, 0}),
	}
	exit := bimjson.Element{
		ID: 4, UUID: exitID, Name: "ground exit", Sign: bimjson.SignDoorWayOut,
		Outputs: []string{stairBID},
		Polygon: pts([2]float64{1.5, -0.1}, [2]float64{2.5, -0.1}, [2]float64{2.5, 0.1}, [2]float64{1.5, 0.1}, [2]float64{1.5, -0.1}),
	}

	doc := &bimjson.Building{
		Name: "stairwell",
		Levels: []bimjson.Level{{
			Name:          "floor 1",
			BuildElements: []bimjson.Element{stairA, stairB, transit, exit},
		}},
	}

	b, err := Build(doc)
	require.NoError(t, err)

	link, ok := b.TransitByUUID(uuid.MustParse(transitID))
	require.True(t, ok)
	assert.InDelta(t, 4.4721, link.Width, 1e-3)
}

func TestBuild_NoExitFails(t *testing.T) {
	roomID := newID()
	doc := &bimjson.Building{
		Name: "no-exit",
		Levels: []bimjson.Level{{
			Name: "floor 1",
			BuildElements: []bimjson.Element{{
				ID: 1, UUID: roomID, Name: "room", Sign: bimjson.SignRoom,
				Polygon: pts([2]float64{0, 0}, [2]float64{1, 0}, [2]float64{1, 1}, [2]float64{0, 1}, [2]float64{0, 0}),
			}},
		}},
	}

	_, err := Build(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bimerr.ErrNoExit))
}

func TestBuild_BadVertexSplitIsGeometryError(t *testing.T) {
	roomID := newID()
	doorID := newID()

	doc := &bimjson.Building{
		Name: "bad-split",
		Levels: []bimjson.Level{{
			Name: "floor 1",
			BuildElements: []bimjson.Element{
				{
					ID: 1, UUID: roomID, Name: "room", Sign: bimjson.SignRoom,
					Outputs: []string{doorID},
					Polygon: pts([2]float64{0, 0}, [2]float64{10, 0}, [2]float64{10, 10}, [2]float64{0, 10}, [2]float64{0, 0}),
				},
				{
					// All four points are inside the room polygon: a 3/1 (in
					// fact 4/0) split instead of the required 2/2.
					ID: 2, UUID: doorID, Name: "exit", Sign: bimjson.SignDoorWayOut,
					Outputs: []string{roomID},
					Polygon: pts([2]float64{4, 4}, [2]float64{5, 4}, [2]float64{5, 5}, [2]float64{4, 5}, [2]float64{4, 4}),
				},
			},
		}},
	}

	_, err := Build(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bimerr.ErrGeometry))
}

func TestBuild_DuplicateUUIDFails(t *testing.T) {
	id := newID()
	doc := &bimjson.Building{
		Name: "dup",
		Levels: []bimjson.Level{{
			Name: "floor 1",
			BuildElements: []bimjson.Element{
				{ID: 1, UUID: id, Name: "a", Sign: bimjson.SignRoom, Polygon: pts([2]float64{0, 0}, [2]float64{1, 0}, [2]float64{1, 1}, [2]float64{0, 1}, [2]float64{0, 0})},
				{ID: 2, UUID: id, Name: "b", Sign: bimjson.SignRoom, Polygon: pts([2]float64{0, 0}, [2]float64{1, 0}, [2]float64{1, 1}, [2]float64{0, 1}, [2]float64{0, 0})},
			},
		}},
	}

	_, err := Build(doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bimerr.ErrDuplicateID))
}
