// Package builder implements the BIM builder: it turns a parsed BIM JSON
// document into a normalized bim.Building, classifying elements, computing
// doorway widths via the geometry kernel, and synthesizing the single
// Outside zone.
package builder

import (
	"fmt"
	"log"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/google/uuid"

	"github.com/evacsim/evacuation-core/internal/bim"
	"github.com/evacsim/evacuation-core/internal/bimerr"
	"github.com/evacsim/evacuation-core/internal/bimjson"
	"github.com/evacsim/evacuation-core/internal/geometry"
)

// DefaultMaxSpeed is the walking speed (m/min) newly built buildings start
// with; the solver only recomputes the modeling step, never this value.
const DefaultMaxSpeed = 100.0

// Build validates and normalizes a raw BIM document into a bim.Building.
// All invariant violations are returned as one of the sentinel errors in
// internal/bimerr.
func Build(doc *bimjson.Building) (*bim.Building, error) {
	b := &bim.Building{
		Name:     doc.Name,
		MaxSpeed: DefaultMaxSpeed,
	}

	seenUUIDs := make(map[uuid.UUID]bool)
	var maxRealZoneID uint64
	var sawRealZone bool

	for _, levelJSON := range doc.Levels {
		level := bim.Level{Name: levelJSON.Name, Z: levelJSON.ZLevel}

		for _, el := range levelJSON.BuildElements {
			id, err := uuid.Parse(el.UUID)
			if err != nil {
				return nil, fmt.Errorf("bim: element %q has invalid uuid %q: %w", el.Name, el.UUID, err)
			}
			if seenUUIDs[id] {
				return nil, fmt.Errorf("%w: %s", bimerr.ErrDuplicateID, id)
			}

			poly := toPolygon(el.Polygon)

			switch el.Sign {
			case bimjson.SignRoom, bimjson.SignStaircase:
				area, err := geometry.PolygonArea(poly)
				if err != nil {
					return nil, fmt.Errorf("bim: zone %q: %w", el.Name, err)
				}
				zone := bim.Zone{
					UUID:       id,
					ID:         el.ID,
					Name:       el.Name,
					Kind:       zoneKind(el.Sign),
					Polygon:    poly,
					Height:     el.SizeZ,
					LevelZ:     el.ZLevel,
					Area:       area,
					Population: float64(el.NumberOfPeople),
					Potential:  bim.SentinelZoneArea,
					Safe:       false,
					Outputs:    parseUUIDs(el.Outputs),
				}
				seenUUIDs[id] = true
				if !sawRealZone || el.ID > maxRealZoneID {
					maxRealZoneID = el.ID
					sawRealZone = true
				}
				level.Zones = append(level.Zones, zone)
				b.Zones = append(b.Zones, zone)

			case bimjson.SignDoorWay, bimjson.SignDoorWayIn, bimjson.SignDoorWayOut:
				outputs := parseUUIDs(el.Outputs)
				if len(outputs) < 1 || len(outputs) > 2 {
					return nil, fmt.Errorf("%w: transit %q has %d outputs", bimerr.ErrBadTopology, el.Name, len(outputs))
				}
				transit := bim.Transit{
					UUID:    id,
					ID:      el.ID,
					Name:    el.Name,
					Kind:    transitKind(el.Sign),
					Polygon: poly,
					Height:  el.SizeZ,
					LevelZ:  el.ZLevel,
					Width:   -1,
					Outputs: outputs,
				}
				seenUUIDs[id] = true
				level.Transits = append(level.Transits, transit)
				b.Transits = append(b.Transits, transit)

			default:
				// Undefined (and any stray Outside element in the raw JSON)
				// is discarded.
			}
		}

		if len(level.Zones) == 0 || len(level.Transits) == 0 {
			log.Printf("warning: level %q has %d zones and %d transits", level.Name, len(level.Zones), len(level.Transits))
		}

		b.Levels = append(b.Levels, level)
	}

	if err := checkDanglingTransits(b); err != nil {
		return nil, err
	}

	if err := synthesizeOutside(b, maxRealZoneID); err != nil {
		return nil, err
	}

	sort.SliceStable(b.Zones, func(i, j int) bool { return b.Zones[i].ID < b.Zones[j].ID })
	sort.SliceStable(b.Transits, func(i, j int) bool { return b.Transits[i].ID < b.Transits[j].ID })

	b.Reindex()

	if err := calculateTransitsWidth(b); err != nil {
		return nil, err
	}

	reportOverlaps(b)

	return b, nil
}

func toPolygon(dto bimjson.PolygonDTO) geometry.Polygon {
	points := make([]geometry.Point, len(dto.Points))
	for i, p := range dto.Points {
		points[i] = geometry.Point{p.X, p.Y}
	}
	return geometry.Polygon{Points: points}
}

func parseUUIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		if id, err := uuid.Parse(r); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func zoneKind(s bimjson.Sign) bim.ZoneKind {
	switch s {
	case bimjson.SignRoom:
		return bim.ZoneRoom
	case bimjson.SignStaircase:
		return bim.ZoneStaircase
	default:
		return bim.ZoneUndefined
	}
}

func transitKind(s bimjson.Sign) bim.TransitKind {
	switch s {
	case bimjson.SignDoorWay:
		return bim.TransitDoorWay
	case bimjson.SignDoorWayIn:
		return bim.TransitDoorWayIn
	case bimjson.SignDoorWayOut:
		return bim.TransitDoorWayOut
	default:
		return bim.TransitUndefined
	}
}

// checkDanglingTransits verifies every transit output resolves to a zone
// parsed from this same document. It runs before Outside is synthesized,
// since at this point a transit's outputs can only legitimately reference
// real zones.
func checkDanglingTransits(b *bim.Building) error {
	zoneUUIDs := make(map[uuid.UUID]bool, len(b.Zones))
	for _, z := range b.Zones {
		zoneUUIDs[z.UUID] = true
	}
	for _, t := range b.Transits {
		for _, out := range t.Outputs {
			if !zoneUUIDs[out] {
				return fmt.Errorf("%w: transit %s (%s) references %s", bimerr.ErrDanglingTransit, t.Name, t.UUID, out)
			}
		}
	}
	return nil
}

// synthesizeOutside builds the single virtual Outside zone: its id is one
// greater than the largest real zone id, its outputs are the union of every
// DoorWayOut transit's uuid, and each such transit is, in turn, given
// Outside as its second endpoint so adjacency holds in both directions.
func synthesizeOutside(b *bim.Building, maxRealZoneID uint64) error {
	outside := bim.Zone{
		UUID:      uuid.Nil,
		ID:        maxRealZoneID + 1,
		Name:      "Outside",
		Kind:      bim.ZoneOutside,
		Polygon:   geometry.Polygon{},
		Area:      bim.SentinelZoneArea,
		Potential: 0,
		Safe:      true,
	}

	for i := range b.Transits {
		t := &b.Transits[i]
		if t.Kind != bim.TransitDoorWayOut {
			continue
		}
		outside.Outputs = append(outside.Outputs, t.UUID)
		if !containsUUID(t.Outputs, outside.UUID) {
			t.Outputs = append(t.Outputs, outside.UUID)
		}
	}

	if len(outside.Outputs) == 0 {
		return bimerr.ErrNoExit
	}

	b.Zones = append(b.Zones, outside)
	return nil
}

func containsUUID(haystack []uuid.UUID, needle uuid.UUID) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}

// reportOverlaps flags, as a non-fatal diagnostic, zones on the same level
// whose bounding boxes overlap beyond floating-point tolerance, using an
// R-tree spatial index over each level's zones.
func reportOverlaps(b *bim.Building) {
	for _, level := range b.Levels {
		if len(level.Zones) < 2 {
			continue
		}

		tree := rtreego.NewTree(2, 2, 4)
		entries := make([]*zoneSpatial, 0, len(level.Zones))
		for i := range level.Zones {
			z := &level.Zones[i]
			if len(z.Polygon.Points) < 3 {
				continue
			}
			bb := geometry.BoundingBox(z.Polygon)
			rect, err := rtreego.NewRect(
				rtreego.Point{bb.Min[0], bb.Min[1]},
				[]float64{maxF(bb.Max[0]-bb.Min[0], 1e-9), maxF(bb.Max[1]-bb.Min[1], 1e-9)},
			)
			if err != nil {
				continue
			}
			entry := &zoneSpatial{zone: z, rect: rect}
			entries = append(entries, entry)
			tree.Insert(entry)
		}

		for _, entry := range entries {
			hits := tree.SearchIntersect(entry.rect)
			for _, hit := range hits {
				other := hit.(*zoneSpatial)
				if other.zone.UUID == entry.zone.UUID {
					continue
				}
				if other.zone.ID < entry.zone.ID {
					continue // report each overlapping pair once
				}
				log.Printf("warning: zones %q and %q on level %q have overlapping bounding boxes", entry.zone.Name, other.zone.Name, level.Name)
			}
		}
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// zoneSpatial adapts a bim.Zone's bounding box to rtreego.Spatial.
type zoneSpatial struct {
	zone *bim.Zone
	rect rtreego.Rect
}

func (z *zoneSpatial) Bounds() rtreego.Rect {
	return z.rect
}
