// Package reception exposes the front-desk card operations: issuing
// cards, looking them up and recording visits.
package reception

import "github.com/sportfabrik/bonuscard/internal/provider"

// Handler serves the reception endpoints.
type Handler struct {
	*provider.Container
}

// NewHandler creates the reception handler.
func NewHandler(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
