package public

import "github.com/nutriplan/payments/internal/provider"

// Handler is the customer-facing API handler entry.
type Handler struct {
	*provider.Container
}

// New creates the customer-facing handler.
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
