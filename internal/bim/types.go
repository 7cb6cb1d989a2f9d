// Package bim holds the normalized Building Information Model: the typed
// entities (Zone, Transit, Level, Building) the BIM builder produces and the
// evacuation solver mutates. Entities are constructed once by
// internal/bim/builder and then only ever mutated in place — nothing here
// allocates a new Zone or Transit after construction.
package bim

import (
	"github.com/google/uuid"

	"github.com/evacsim/evacuation-core/internal/geometry"
)

// ZoneKind is the closed classification a Zone can carry.
type ZoneKind int

const (
	ZoneUndefined ZoneKind = iota
	ZoneRoom
	ZoneStaircase
	ZoneOutside
)

func (k ZoneKind) String() string {
	switch k {
	case ZoneRoom:
		return "Room"
	case ZoneStaircase:
		return "Staircase"
	case ZoneOutside:
		return "Outside"
	default:
		return "Undefined"
	}
}

// TransitKind is the closed classification a Transit can carry.
type TransitKind int

const (
	TransitUndefined TransitKind = iota
	TransitDoorWay
	TransitDoorWayIn
	TransitDoorWayOut
)

func (k TransitKind) String() string {
	switch k {
	case TransitDoorWay:
		return "DoorWay"
	case TransitDoorWayIn:
		return "DoorWayIn"
	case TransitDoorWayOut:
		return "DoorWayOut"
	default:
		return "Undefined"
	}
}

// Zone is a region people occupy: a Room, a Staircase, or the synthesized
// Outside sink.
type Zone struct {
	UUID uuid.UUID
	ID   uint64
	Name string
	Kind ZoneKind

	Polygon geometry.Polygon
	Height  float64
	LevelZ  float64
	Area    float64

	Population float64
	Potential  float64
	Hazard     uint8 // percent, 0..100

	Visited bool
	Blocked bool
	Safe    bool

	// Outputs holds the UUIDs of adjacent Transits, mirroring the source
	// BIM's own adjacency-by-id representation (see DESIGN.md).
	Outputs []uuid.UUID
}

// Transit is a doorway connecting one or two zones.
type Transit struct {
	UUID uuid.UUID
	ID   uint64
	Name string
	Kind TransitKind

	Polygon geometry.Polygon
	Height  float64
	LevelZ  float64
	Width   float64

	// NoProceeding is the cumulative count of people who have crossed this
	// transit across the whole simulation.
	NoProceeding float64

	Visited bool
	Blocked bool

	// Outputs holds the UUIDs of the one or two adjacent Zones.
	Outputs []uuid.UUID
}

// Level is a single floor: a named, z-positioned group of zones and
// transits. Level-owned slices are snapshot copies taken at construction
// time (see Building doc comment) — the solver never reads or writes
// through them.
type Level struct {
	Name     string
	Z        float64
	Zones    []Zone
	Transits []Transit
}

// SentinelZoneArea is the area assigned to the synthetic Outside zone: an
// effectively infinite sink so the solver never throttles flow into it.
const SentinelZoneArea = float64(3.4028235e38) // float32 max, matching the source's sentinel

// Building is the normalized BIM model. It exclusively owns all zones,
// transits and levels; the transport graph built over it only holds UUID/id
// references, never a second copy of the mutable state. Zones and
// Transits are authoritative in the flat Zones/Transits slices: Level's
// copies are a construction-time snapshot, preserved for inspection but not
// kept in sync by the solver (this matches the original evacuation-core
// behavior, which never re-reads level-scoped slices after construction).
type Building struct {
	Name   string
	Levels []Level

	// Zones is sorted by ID ascending; the synthesized Outside zone is last.
	Zones []Zone
	// Transits is sorted by ID ascending.
	Transits []Transit

	StepMinutes  float64
	MaxSpeed     float64
	ClockMinutes float64

	zoneIndex    map[uuid.UUID]int
	transitIndex map[uuid.UUID]int
}

// Reindex (re)builds the UUID lookup maps. The builder calls this once after
// construction; nothing else needs to.
func (b *Building) Reindex() {
	b.zoneIndex = make(map[uuid.UUID]int, len(b.Zones))
	for i, z := range b.Zones {
		b.zoneIndex[z.UUID] = i
	}
	b.transitIndex = make(map[uuid.UUID]int, len(b.Transits))
	for i, t := range b.Transits {
		b.transitIndex[t.UUID] = i
	}
}

// ZoneByUUID returns a pointer into Building.Zones for in-place mutation.
func (b *Building) ZoneByUUID(id uuid.UUID) (*Zone, bool) {
	i, ok := b.zoneIndex[id]
	if !ok {
		return nil, false
	}
	return &b.Zones[i], true
}

// TransitByUUID returns a pointer into Building.Transits for in-place
// mutation.
func (b *Building) TransitByUUID(id uuid.UUID) (*Transit, bool) {
	i, ok := b.transitIndex[id]
	if !ok {
		return nil, false
	}
	return &b.Transits[i], true
}

// Area sums the area of every Room and Staircase zone (Outside excluded).
func (b *Building) Area() float64 {
	total := 0.0
	for _, z := range b.Zones {
		if z.Kind == ZoneRoom || z.Kind == ZoneStaircase {
			total += z.Area
		}
	}
	return total
}

// Population sums the population of every non-Outside zone.
func (b *Building) Population() float64 {
	total := 0.0
	for _, z := range b.Zones {
		if z.Kind != ZoneOutside {
			total += z.Population
		}
	}
	return total
}

// Outside returns a pointer to the building's single synthesized Outside
// zone. The builder guarantees it exists and is last in Zones.
func (b *Building) Outside() *Zone {
	for i := range b.Zones {
		if b.Zones[i].Kind == ZoneOutside {
			return &b.Zones[i]
		}
	}
	return nil
}
