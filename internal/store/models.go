package store

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Session is one derived dwell record: a device seen near a booth for the
// in_time..out_time window. Rows are append-only; nothing updates or deletes
// them after Insert.
type Session struct {
	ID              uuid.UUID                `gorm:"type:uuid;primaryKey" json:"id"`
	BoothID         int                      `gorm:"index:idx_booth_device,priority:1" json:"booth_id"`
	DeviceID        string                   `gorm:"index:idx_booth_device,priority:2" json:"device_id"`
	RSSIValues      datatypes.JSONSlice[int] `json:"rssi_values"`
	UserRetention   int                      `json:"user_retention"`
	InTime          string                   `json:"in_time"`
	OutTime         string                   `json:"out_time"`
	AverageDistance float64                  `json:"average_distance"`
	Timestamp       string                   `json:"timestamp"`
}
