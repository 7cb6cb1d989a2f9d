package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/evacsim/evacuation-core/internal/result"
)

// DistributionStates is a custom type for JSONB serialization of a run's
// full DistributionState series.
type DistributionStates []result.DistributionState

// Value implements driver.Valuer for database serialization.
func (d DistributionStates) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan implements sql.Scanner for database deserialization.
func (d *DistributionStates) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot convert %T to DistributionStates", value)
	}
	return json.Unmarshal(bytes, d)
}

// ByStepStates is the JSONB-backed counterpart for a run's ItemTimeStepData
// series.
type ByStepStates []result.ItemTimeStepData

func (b ByStepStates) Value() (driver.Value, error) {
	return json.Marshal(b)
}

func (b *ByStepStates) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot convert %T to ByStepStates", value)
	}
	return json.Unmarshal(bytes, b)
}

// ResultPG is the GORM model a completed EvacuationModelingResult is
// persisted as.
type ResultPG struct {
	RunID        string  `gorm:"primaryKey;column:run_id"`
	BuildingName string  `gorm:"size:255;not null"`
	InitialPop   float64 `gorm:"not null"`
	EvacuatedPop float64 `gorm:"not null"`
	Seconds      float64 `gorm:"not null"`

	DistributionStates DistributionStates `gorm:"type:jsonb"`
	ByStep             ByStepStates       `gorm:"type:jsonb"`

	CreatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName overrides the default pluralized table name.
func (ResultPG) TableName() string {
	return "evacuation_results"
}

// toPG converts a solver result into its persisted row. buildingName is
// threaded through separately since EvacuationModelingResult has no back
// reference to the Building it came from.
func toPG(buildingName string, res *result.EvacuationModelingResult) *ResultPG {
	return &ResultPG{
		RunID:              res.RunID.String(),
		BuildingName:       buildingName,
		InitialPop:         res.InitialPop,
		EvacuatedPop:       res.EvacuatedPop,
		Seconds:            res.Seconds,
		DistributionStates: res.DistributionStates,
		ByStep:             res.ByStep,
	}
}
