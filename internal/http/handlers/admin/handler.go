// Package admin exposes the back-office operations: corrections,
// cancellations, receipt outbox monitoring and CSV reports.
package admin

import "github.com/sportfabrik/bonuscard/internal/provider"

// Handler serves the admin endpoints.
type Handler struct {
	*provider.Container
}

// NewHandler creates the admin handler.
func NewHandler(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
