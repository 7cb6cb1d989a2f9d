// Package graph builds the transport graph: a zone-indexed adjacency over
// transits, derived once from a normalized bim.Building. The graph never
// owns mutable state — it only holds UUID references back into the
// Building, which the solver mutates directly.
package graph

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"

	"github.com/evacsim/evacuation-core/internal/bim"
	"github.com/evacsim/evacuation-core/internal/bimerr"
	"github.com/evacsim/evacuation-core/internal/geometry"
)

// specificFlowRate is a free-flow pedestrian throughput figure (persons per
// metre of doorway width per second), the same order of magnitude used in
// SFPE-style egress calculations. It only seeds Edge.Capacity as a static
// baseline; the solver computes the actual per-step carrying capacity from
// live donor density.
const specificFlowRate = 1.3

// Edge is one directed adjacency: the transit connecting the owning zone to
// Other, with a static baseline capacity.
type Edge struct {
	Transit  uuid.UUID
	Other    uuid.UUID
	Capacity float64
}

// Graph is the built transport graph over a Building.
type Graph struct {
	building   *bim.Building
	adjacency  map[uuid.UUID][]Edge
	index      *quadtree.Quadtree
	indexZones map[orb.Pointer]*bim.Zone
}

// zonePoint adapts a zone's bounding-box centroid to orb.Pointer so it can
// be indexed by the quadtree; the quadtree only ever answers "nearby", exact
// containment is always re-checked against the real polygon.
type zonePoint struct {
	zone *bim.Zone
	at   orb.Point
}

func (zp zonePoint) Point() orb.Point { return zp.at }

// Build derives the transport graph from b. Every zone's adjacency list is
// the set of (transit, other-zone) pairs reachable through its Outputs.
func Build(b *bim.Building) (*Graph, error) {
	g := &Graph{
		building:   b,
		adjacency:  make(map[uuid.UUID][]Edge, len(b.Zones)),
		indexZones: make(map[orb.Pointer]*bim.Zone),
	}

	for i := range b.Zones {
		z := &b.Zones[i]
		for _, tid := range z.Outputs {
			t, ok := b.TransitByUUID(tid)
			if !ok {
				return nil, fmt.Errorf("%w: zone %s references missing transit %s", bimerr.ErrDanglingTransit, z.UUID, tid)
			}
			other, ok := otherEndpoint(t, z.UUID)
			if !ok {
				continue // dead-end transit: its only endpoint is this zone
			}
			g.adjacency[z.UUID] = append(g.adjacency[z.UUID], Edge{
				Transit:  t.UUID,
				Other:    other,
				Capacity: edgeCapacity(t, b.StepMinutes),
			})
		}
	}

	if err := g.buildIndex(); err != nil {
		return nil, err
	}

	return g, nil
}

func otherEndpoint(t *bim.Transit, self uuid.UUID) (uuid.UUID, bool) {
	for _, o := range t.Outputs {
		if o != self {
			return o, true
		}
	}
	return uuid.Nil, false
}

func edgeCapacity(t *bim.Transit, stepMinutes float64) float64 {
	if t.Width <= 0 {
		return 0
	}
	return t.Width * specificFlowRate * 60.0 * stepMinutes
}

// buildIndex populates the quadtree over real (Room/Staircase) zone
// centroids.
func (g *Graph) buildIndex() error {
	var bound orb.Bound
	first := true
	var points []zonePoint

	for i := range g.building.Zones {
		z := &g.building.Zones[i]
		if z.Kind != bim.ZoneRoom && z.Kind != bim.ZoneStaircase {
			continue
		}
		if len(z.Polygon.Points) < 3 {
			continue
		}
		bb := geometry.BoundingBox(z.Polygon)
		centroid := orb.Point{(bb.Min[0] + bb.Max[0]) / 2, (bb.Min[1] + bb.Max[1]) / 2}
		zp := zonePoint{zone: z, at: centroid}
		points = append(points, zp)

		if first {
			bound = bb
			first = false
		} else {
			bound = bound.Union(bb)
		}
	}

	if !first {
		g.index = quadtree.New(bound)
		for _, zp := range points {
			if err := g.index.Add(zp); err != nil {
				return fmt.Errorf("graph: failed to index zone %s: %w", zp.zone.UUID, err)
			}
			g.indexZones[zp] = zp.zone
		}
	}

	return nil
}

// ZoneContaining returns the real zone whose polygon contains p, if any. It
// tries the quadtree's nearest centroid first and falls back to a full scan
// for correctness, since centroid proximity alone does not guarantee
// polygon containment for irregular or concave rooms.
func (g *Graph) ZoneContaining(p orb.Point) (*bim.Zone, bool) {
	if g.index != nil {
		if nearest := g.index.Find(p); nearest != nil {
			if zp, ok := nearest.(zonePoint); ok {
				if c, err := geometry.PointInPolygon(geometry.Point(p), zp.zone.Polygon); err == nil && c != geometry.Outside {
					return zp.zone, true
				}
			}
		}
	}

	for i := range g.building.Zones {
		z := &g.building.Zones[i]
		if z.Kind != bim.ZoneRoom && z.Kind != bim.ZoneStaircase {
			continue
		}
		c, err := geometry.PointInPolygon(geometry.Point(p), z.Polygon)
		if err == nil && c != geometry.Outside {
			return z, true
		}
	}

	return nil, false
}

// Adjacency returns the adjacency list for the zone identified by id.
func (g *Graph) Adjacency(id uuid.UUID) []Edge {
	return g.adjacency[id]
}
