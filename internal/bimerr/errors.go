// Package bimerr defines the sentinel error taxonomy shared by the BIM
// builder and the evacuation solver.
package bimerr

import "errors"

var (
	// ErrNoExit is returned when a building has no DoorWayOut element.
	ErrNoExit = errors.New("bim: no exit (DoorWayOut) found in building")

	// ErrDuplicateID is returned when two elements share a UUID.
	ErrDuplicateID = errors.New("bim: duplicate element id")

	// ErrDanglingTransit is returned when a transit references a zone UUID
	// that does not resolve to any zone in the building.
	ErrDanglingTransit = errors.New("bim: transit references a missing zone")

	// ErrBadTopology is returned when a transit's outputs count is not 1 or 2.
	ErrBadTopology = errors.New("bim: transit has invalid number of outputs")

	// ErrGeometry is returned when doorway width cannot be derived from the
	// polygon data (wrong intersection count, degenerate polygon, negative
	// width).
	ErrGeometry = errors.New("bim: geometry error")

	// ErrTimeout is returned when the solver exceeds its per-step wall-clock
	// budget.
	ErrTimeout = errors.New("evac: step budget exceeded")

	// ErrInvalidPolygon is returned by the geometry kernel for polygons with
	// fewer than 3 points or non-finite coordinates.
	ErrInvalidPolygon = errors.New("geometry: invalid polygon")
)
