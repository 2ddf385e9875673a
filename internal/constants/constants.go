package constants

// Card state constants
const (
	CardStateActive    = "Active"
	CardStateExpired   = "Expired"
	CardStateUsedUp    = "UsedUp"
	CardStateCancelled = "Cancelled"
)

// Product type constants
const (
	ProductCyclingBonus     = "cycling_bonus"
	ProductCyclingUnlimited = "cycling_unlimited"
)

// Product display labels used on receipts
const (
	ProductLabelCyclingBonus     = "Radsport Bonus"
	ProductLabelCyclingUnlimited = "Radsport Unlimited"
)

// Card event type constants
const (
	EventTypeIssued   = "Issued"
	EventTypeDeduct   = "Deduct"
	EventTypeRollback = "Rollback"
	EventTypeCancel   = "Cancel"
)

// Rollback reason codes
const (
	RollbackReasonMistake        = "MISTAKE"
	RollbackReasonFraudSuspected = "FRAUD_SUSPECTED"
	RollbackReasonCardLost       = "CARD_LOST"
	RollbackReasonOther          = "OTHER"
)

// Idempotency-guarded actions
const (
	IdempotencyActionDeduct   = "deduct"
	IdempotencyActionRollback = "rollback"
)

// Email receipt status constants
const (
	ReceiptStatusQueued = "Queued"
	ReceiptStatusSent   = "Sent"
	ReceiptStatusFailed = "Failed"
)

// Staff role constants
const (
	StaffRoleReception = "reception"
	StaffRoleAdmin     = "admin"
)

// HTTP headers carrying staff identity and request dedup keys
const (
	HeaderStaffUsername  = "X-Staff-Username"
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderRequestID      = "X-Request-ID"
)

// Card serial prefix, serials look like BC-2026-000123
const SerialPrefix = "BC"

// Queue names
const (
	QueueDefault = "default"
)

// Background task names
const (
	TaskIdempotencyPurge = "maintenance:idempotency_purge"
)
