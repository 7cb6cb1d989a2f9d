// Package geometry implements the pure geometric predicates and measures
// the BIM builder needs: segment length and intersection, point-in-polygon,
// nearest point on a segment and polygon area. All coordinates are plain
// Cartesian doubles in metres.
package geometry

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/evacsim/evacuation-core/internal/bimerr"
)

// Point is a 2-D Cartesian coordinate. It is kept compatible with orb.Point
// so the geometry kernel and the orb-based quadtree index in internal/graph
// can share values without conversion.
type Point = orb.Point

// Segment is a directed pair of points; P1 must differ from P2.
type Segment struct {
	P1, P2 Point
}

// Polygon is an ordered, closed ring of points (first point repeats last).
// It has no holes; the BIM domain only ever describes simple room/doorway
// outlines.
type Polygon struct {
	Points []Point
}

// Containment is the tri-valued result of PointInPolygon.
type Containment int

const (
	Outside Containment = iota
	Inside
	OnBoundary
)

func isFinite(p Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) &&
		!math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}

// SegmentLength returns the Euclidean distance between a and b.
func SegmentLength(a, b Point) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

func (s Segment) length() float64 {
	return SegmentLength(s.P1, s.P2)
}

// orientation returns the sign of the cross product (b-a) x (c-a):
// 0 collinear, >0 counter-clockwise, <0 clockwise.
func orientation(a, b, c Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment reports whether q, known to be collinear with p-r, lies within
// the bounding box of segment p-r (i.e. on the segment).
func onSegment(p, q, r Point) bool {
	return math.Min(p[0], r[0])-1e-12 <= q[0] && q[0] <= math.Max(p[0], r[0])+1e-12 &&
		math.Min(p[1], r[1])-1e-12 <= q[1] && q[1] <= math.Max(p[1], r[1])+1e-12
}

// SegmentsIntersect reports whether segments l1 and l2 intersect. Proper
// crossings, touching endpoints and degenerate collinear overlaps all count
// as an intersection.
func SegmentsIntersect(l1, l2 Segment) bool {
	p1, q1 := l1.P1, l1.P2
	p2, q2 := l2.P1, l2.P2

	o1 := orientation(p1, q1, p2)
	o2 := orientation(p1, q1, q2)
	o3 := orientation(p2, q2, p1)
	o4 := orientation(p2, q2, q1)

	const eps = 1e-9
	sign := func(v float64) int {
		switch {
		case v > eps:
			return 1
		case v < -eps:
			return -1
		default:
			return 0
		}
	}

	s1, s2, s3, s4 := sign(o1), sign(o2), sign(o3), sign(o4)

	if s1 != s2 && s3 != s4 {
		return true
	}

	// Collinear special cases: an endpoint lies on the other segment.
	if s1 == 0 && onSegment(p1, p2, q1) {
		return true
	}
	if s2 == 0 && onSegment(p1, q2, q1) {
		return true
	}
	if s3 == 0 && onSegment(p2, p1, q2) {
		return true
	}
	if s4 == 0 && onSegment(p2, q1, q2) {
		return true
	}

	return false
}

// NearestPointOnSegment returns the foot of the perpendicular from p onto
// the line through l, clamped to the segment's endpoints.
func NearestPointOnSegment(p Point, l Segment) Point {
	dx := l.P2[0] - l.P1[0]
	dy := l.P2[1] - l.P1[1]
	lengthSq := dx*dx + dy*dy
	if lengthSq == 0 {
		return l.P1
	}

	t := ((p[0]-l.P1[0])*dx + (p[1]-l.P1[1])*dy) / lengthSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return Point{l.P1[0] + t*dx, l.P1[1] + t*dy}
}

func ring(poly Polygon) orb.Ring {
	r := make(orb.Ring, len(poly.Points))
	copy(r, poly.Points)
	return r
}

// PolygonArea computes the polygon's area via the shoelace formula (orb's
// planar.Area, which is the same computation).
func PolygonArea(poly Polygon) (float64, error) {
	if len(poly.Points) < 3 {
		return 0, bimerr.ErrInvalidPolygon
	}
	for _, p := range poly.Points {
		if !isFinite(p) {
			return 0, bimerr.ErrInvalidPolygon
		}
	}
	return math.Abs(planar.Area(ring(poly))), nil
}

// PointInPolygon classifies p against poly as inside, on the boundary, or
// outside. Points that lie on an edge of the polygon are reported as
// OnBoundary; callers that want the builder's "boundary counts as inside"
// rule should treat OnBoundary and Inside the same way (see
// internal/bim/builder, which does exactly that).
func PointInPolygon(p Point, poly Polygon) (Containment, error) {
	if len(poly.Points) < 3 {
		return Outside, bimerr.ErrInvalidPolygon
	}
	if !isFinite(p) {
		return Outside, bimerr.ErrInvalidPolygon
	}

	pts := poly.Points
	n := len(pts)
	for i := 0; i < n; i++ {
		a := pts[i]
		b := pts[(i+1)%n]
		if pointOnSegment(p, Segment{a, b}) {
			return OnBoundary, nil
		}
	}

	if planar.RingContains(ring(poly), p) {
		return Inside, nil
	}
	return Outside, nil
}

func pointOnSegment(p Point, s Segment) bool {
	if orientation(s.P1, s.P2, p) != 0 {
		// allow a tiny numeric tolerance for near-collinear points
		cross := orientation(s.P1, s.P2, p)
		length := s.length()
		if length == 0 {
			return p == s.P1
		}
		if math.Abs(cross)/length > 1e-9 {
			return false
		}
	}
	return onSegment(s.P1, p, s.P2)
}

// BoundingBox returns the axis-aligned bounding box of poly, used by the
// builder's overlap diagnostic and the graph's quadtree index.
func BoundingBox(poly Polygon) orb.Bound {
	b := orb.Bound{Min: Point{math.Inf(1), math.Inf(1)}, Max: Point{math.Inf(-1), math.Inf(-1)}}
	for _, p := range poly.Points {
		b = b.Extend(p)
	}
	return b
}
