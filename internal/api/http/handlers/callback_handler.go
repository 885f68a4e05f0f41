package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-session/internal/navigation"
	"github.com/spec-kit/marketplace-session/internal/service"
)

// CallbackResolver resolves a provider return into a navigation.
type CallbackResolver interface {
	Handle(ctx context.Context, params service.CallbackParams) navigation.Target
}

// CallbackHandler serves the identity provider's return route.
type CallbackHandler struct {
	callbacks CallbackResolver
}

// NewCallbackHandler constructs handler.
func NewCallbackHandler(callbacks CallbackResolver) *CallbackHandler {
	return &CallbackHandler{callbacks: callbacks}
}

// Callback handles GET /auth/callback?token=&error=. The response is the
// redirect produced by the navigation the flow performs.
func (h *CallbackHandler) Callback(c *fiber.Ctx) error {
	h.callbacks.Handle(c.UserContext(), service.CallbackParams{
		Credential: c.Query("token"),
		Error:      c.Query("error"),
	})
	return nil
}
