package repository

import (
	"strings"

	"gorm.io/gorm"
)

// dbDialectName returns the dialect name, defaulting to sqlite.
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// supportsSkipLocked reports whether the dialect understands
// FOR UPDATE SKIP LOCKED. sqlite has a single writer, so a plain
// locked read is equivalent there.
func supportsSkipLocked(db *gorm.DB) bool {
	switch dbDialectName(db) {
	case "postgres", "postgresql":
		return true
	default:
		return false
	}
}
