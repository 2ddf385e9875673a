package repository

import "time"

// EmailReceiptListFilter filters the admin receipt listing.
type EmailReceiptListFilter struct {
	Page     int
	PageSize int
	Status   string
	CardID   string
}

// CardEventReportFilter bounds the CSV event report.
type CardEventReportFilter struct {
	From time.Time
	To   time.Time
}
