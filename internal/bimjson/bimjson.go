// Package bimjson decodes and validates the raw BIM JSON document before it
// reaches the builder. This package only assembles and validates the DTOs;
// it performs none of the geometric or topological work (that lives in
// internal/bim/builder).
package bimjson

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Sign is the closed set of element classifications the raw JSON can carry.
// Keeping it a dedicated type (instead of a bare string) means an unknown
// value fails to unmarshal instead of silently becoming a new kind of
// element.
type Sign string

const (
	SignRoom       Sign = "Room"
	SignStaircase  Sign = "Staircase"
	SignDoorWay    Sign = "DoorWay"
	SignDoorWayIn  Sign = "DoorWayIn"
	SignDoorWayOut Sign = "DoorWayOut"
	SignOutside    Sign = "Outside"
	SignUndefined  Sign = "Undefined"
)

func (s Sign) valid() bool {
	switch s {
	case SignRoom, SignStaircase, SignDoorWay, SignDoorWayIn, SignDoorWayOut, SignOutside, SignUndefined:
		return true
	default:
		return false
	}
}

// UnmarshalJSON rejects any sign value outside the closed set at decode
// time, rather than letting it surface later as a silently-dropped element.
func (s *Sign) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	candidate := Sign(raw)
	if !candidate.valid() {
		return fmt.Errorf("bimjson: unknown element sign %q", raw)
	}
	*s = candidate
	return nil
}

// Point is a single polygon vertex as it appears in the wire format. X/Y
// carry no "required" validation: a vertex sitting at the origin is
// ordinary geometry, not a missing field (finiteness is checked downstream
// by internal/geometry).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PolygonDTO is the raw { points: [...] } polygon object.
type PolygonDTO struct {
	Points []Point `json:"points" validate:"dive"`
}

// Element is a single build element: a room, staircase, doorway or
// undefined placeholder.
type Element struct {
	ID             uint64     `json:"id"`
	UUID           string     `json:"uuid" validate:"required"`
	Name           string     `json:"name"`
	Sign           Sign       `json:"sign" validate:"required"`
	SizeZ          float64    `json:"size_z"`
	ZLevel         float64    `json:"z_level"`
	NumberOfPeople uint64     `json:"number_of_people"`
	Outputs        []string   `json:"outputs" validate:"dive,required"`
	Polygon        PolygonDTO `json:"polygon" validate:"required"`
}

// Level is a single floor of the building.
type Level struct {
	Name          string    `json:"name"`
	ZLevel        float64   `json:"z_level"`
	BuildElements []Element `json:"build_elements" validate:"dive"`
}

// Building is the root of the raw BIM document.
type Building struct {
	Name   string  `json:"name" validate:"required"`
	Levels []Level `json:"levels" validate:"required,dive"`
}

var validate = validator.New()

// Decode parses and validates raw BIM JSON into a Building DTO. Errors from
// either the decoder or the validator are wrapped so the caller can treat
// them uniformly as a parse failure.
func Decode(data []byte) (*Building, error) {
	var b Building
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("bimjson: parse error: %w", err)
	}
	if err := validate.Struct(&b); err != nil {
		return nil, fmt.Errorf("bimjson: parse error: %w", err)
	}
	return &b, nil
}
