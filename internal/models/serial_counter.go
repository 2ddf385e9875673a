package models

import "time"

// SerialCounter hands out card serial numbers per issue year. The row
// is incremented under a row lock inside the issuing transaction so
// serials stay gapless and unique without scanning existing cards.
type SerialCounter struct {
	Year      int       `gorm:"primarykey;autoIncrement:false" json:"year"`
	NextValue int64     `gorm:"not null;default:1" json:"next_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name.
func (SerialCounter) TableName() string {
	return "serial_counters"
}
