package builder

import (
	"fmt"
	"log"
	"math"

	"github.com/evacsim/evacuation-core/internal/bim"
	"github.com/evacsim/evacuation-core/internal/bimerr"
	"github.com/evacsim/evacuation-core/internal/geometry"
)

// minWidthWarning is the threshold below which a computed doorway width is
// logged as a non-fatal diagnostic.
const minWidthWarning = 0.5

// calculateTransitsWidth derives Transit.Width for every transit in the
// building. It mutates b.Transits in place and must run after Outside has
// been synthesized and appended and after b.Reindex has been called, since
// it resolves transit.Outputs through the zone index.
func calculateTransitsWidth(b *bim.Building) error {
	for i := range b.Transits {
		t := &b.Transits[i]

		if len(t.Outputs) < 1 || len(t.Outputs) > 2 {
			return fmt.Errorf("%w: transit %s has %d outputs", bimerr.ErrBadTopology, t.UUID, len(t.Outputs))
		}

		zones := make([]*bim.Zone, len(t.Outputs))
		for j, out := range t.Outputs {
			z, ok := b.ZoneByUUID(out)
			if !ok {
				return fmt.Errorf("%w: transit %s references missing zone %s", bimerr.ErrDanglingTransit, t.UUID, out)
			}
			zones[j] = z
		}

		width, err := transitWidth(t, zones)
		if err != nil {
			return err
		}

		if width < 0 {
			return fmt.Errorf("%w: transit %s resolved to negative width %v", bimerr.ErrGeometry, t.UUID, width)
		}
		if width < minWidthWarning {
			log.Printf("warning: transit %s (%s) has width %.3fm, below the %.1fm sanity threshold", t.UUID, t.Name, width, minWidthWarning)
		}

		t.Width = width
	}
	return nil
}

func transitWidth(t *bim.Transit, zones []*bim.Zone) (float64, error) {
	if len(zones) == 2 && zones[0].Kind == bim.ZoneStaircase && zones[1].Kind == bim.ZoneStaircase {
		return math.Sqrt((zones[0].Area + zones[1].Area) / 2.0), nil
	}

	edge1, edge2, err := classifyVertices(t.Polygon, zones[0].Polygon)
	if err != nil {
		return 0, fmt.Errorf("transit %s: %w", t.UUID, err)
	}

	switch t.Kind {
	case bim.TransitDoorWayIn, bim.TransitDoorWayOut:
		width1 := geometry.SegmentLength(edge1.P1, edge1.P2)
		width2 := geometry.SegmentLength(edge2.P1, edge2.P2)
		return (width1 + width2) / 2.0, nil

	case bim.TransitDoorWay:
		if len(zones) != 2 {
			return 0, fmt.Errorf("%w: DoorWay transit %s has only one endpoint", bimerr.ErrGeometry, t.UUID)
		}
		return doorWayWidth(zones[0].Polygon, zones[1].Polygon, edge1, edge2)

	default:
		return 0, fmt.Errorf("%w: transit %s has undefined classification", bimerr.ErrGeometry, t.UUID)
	}
}

// classifyVertices splits the transit polygon's points into the two points
// contained by zone1 (edge1, "group A") and the two points outside of it
// (edge2, "group B"). Exactly two points must fall in each group. The
// closing point of a closed ring repeats the first and is not counted again.
func classifyVertices(transitPoly, zone1Poly geometry.Polygon) (edge1, edge2 geometry.Segment, err error) {
	var groupA, groupB []geometry.Point

	vertices := transitPoly.Points
	if n := len(vertices); n > 1 && vertices[0] == vertices[n-1] {
		vertices = vertices[:n-1]
	}

	for _, p := range vertices {
		containment, cerr := geometry.PointInPolygon(p, zone1Poly)
		if cerr != nil {
			return edge1, edge2, fmt.Errorf("%w: %v", bimerr.ErrGeometry, cerr)
		}
		if containment == geometry.Inside || containment == geometry.OnBoundary {
			groupA = append(groupA, p)
		} else {
			groupB = append(groupB, p)
		}
	}

	if len(groupA) != 2 || len(groupB) != 2 {
		return edge1, edge2, fmt.Errorf("%w: expected 2/2 vertex split against zone 1, got %d/%d", bimerr.ErrGeometry, len(groupA), len(groupB))
	}

	edge1 = geometry.Segment{P1: groupA[0], P2: groupA[1]}
	edge2 = geometry.Segment{P1: groupB[0], P2: groupB[1]}
	return edge1, edge2, nil
}

// intersectedEdge finds the single polygon edge that line crosses. Exactly
// one is required; any other count is a geometry error.
func intersectedEdge(poly geometry.Polygon, line geometry.Segment) (geometry.Segment, error) {
	var found geometry.Segment
	count := 0

	pts := poly.Points
	for i := 1; i < len(pts); i++ {
		candidate := geometry.Segment{P1: pts[i-1], P2: pts[i]}
		if geometry.SegmentsIntersect(line, candidate) {
			found = candidate
			count++
		}
	}

	if count != 1 {
		return found, fmt.Errorf("%w: expected exactly one intersected edge, found %d", bimerr.ErrGeometry, count)
	}
	return found, nil
}

// doorWayWidth computes the width of a DoorWay transit between two rooms
// via a projection-width procedure: the shorter of the two diagonals
// crossing the doorway selects the wall edge it intersects in each zone
// (eA, eB); each edge is projected onto the other, and the width is the
// average of those two projected lengths.
//
// An earlier version of this routine built its candidate diagonals from two
// points of the *same* edge (edge1.p1-edge2.p1 and edge1.p1-edge2.p2), which
// never actually crosses both zones. This builds the two diagonals that
// actually do cross the doorway: (edge1.p1, edge2.p2) and (edge1.p2, edge2.p1).
func doorWayWidth(zone1, zone2 geometry.Polygon, edge1, edge2 geometry.Segment) (float64, error) {
	candidate1 := geometry.Segment{P1: edge1.P1, P2: edge2.P2}
	candidate2 := geometry.Segment{P1: edge1.P2, P2: edge2.P1}

	len1 := geometry.SegmentLength(candidate1.P1, candidate1.P2)
	len2 := geometry.SegmentLength(candidate2.P1, candidate2.P2)

	// Tie (and the len2 < len1 case) deterministically picks the
	// zone-2-facing candidate.
	dLine := candidate2
	if len1 < len2 {
		dLine = candidate1
	}

	eA, err := intersectedEdge(zone1, dLine)
	if err != nil {
		return 0, err
	}
	eB, err := intersectedEdge(zone2, dLine)
	if err != nil {
		return 0, err
	}

	p1 := geometry.NearestPointOnSegment(eA.P1, eB)
	p2 := geometry.NearestPointOnSegment(eA.P2, eB)
	d12 := geometry.SegmentLength(p1, p2)

	p3 := geometry.NearestPointOnSegment(eB.P1, eA)
	p4 := geometry.NearestPointOnSegment(eB.P2, eA)
	d34 := geometry.SegmentLength(p3, p4)

	return (d12 + d34) / 2.0, nil
}
