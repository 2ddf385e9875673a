package shared

import (
	"github.com/sportfabrik/bonuscard/internal/models"

	"github.com/gin-gonic/gin"
)

const staffContextKey = "staff"

// SetStaff stores the authenticated staff record on the context.
func SetStaff(c *gin.Context, staff *models.Staff) {
	c.Set(staffContextKey, staff)
}

// StaffFrom returns the authenticated staff record, nil when absent.
func StaffFrom(c *gin.Context) *models.Staff {
	v, ok := c.Get(staffContextKey)
	if !ok {
		return nil
	}
	staff, ok := v.(*models.Staff)
	if !ok {
		return nil
	}
	return staff
}

// StaffUsername returns the authenticated staff username or "".
func StaffUsername(c *gin.Context) string {
	if staff := StaffFrom(c); staff != nil {
		return staff.Username
	}
	return ""
}
