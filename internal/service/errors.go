package service

import "errors"

var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrCardNotFound      = errors.New("card not found")
	ErrCardExpired       = errors.New("card has expired")
	ErrCardStateInvalid  = errors.New("card is not active")
	ErrNoRemainingUses   = errors.New("no remaining uses on card")
	ErrInvalidProduct    = errors.New("unknown product")
	ErrInvalidReasonCode = errors.New("unknown rollback reason code")

	ErrReceiptNotFound     = errors.New("email receipt not found")
	ErrReceiptNotRetryable = errors.New("email receipt is not in failed state")

	ErrEmailServiceDisabled      = errors.New("email service disabled")
	ErrEmailServiceNotConfigured = errors.New("email service not configured")
	ErrInvalidEmail              = errors.New("invalid email address")
	ErrEmailRecipientRejected    = errors.New("email recipient rejected")

	ErrReceiptDataIncomplete = errors.New("receipt data incomplete")

	ErrReportRangeInvalid = errors.New("invalid report time range")
)
