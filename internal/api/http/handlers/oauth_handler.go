package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-session/internal/api/dto"
	"github.com/spec-kit/marketplace-session/internal/domain"
	"github.com/spec-kit/marketplace-session/internal/repository"
	apperrors "github.com/spec-kit/marketplace-session/pkg/util/errorutil"
)

// OAuthHandler starts the provider handshake.
type OAuthHandler struct {
	store    repository.CredentialStore
	startURL string
}

// NewOAuthHandler constructs handler.
func NewOAuthHandler(store repository.CredentialStore, startURL string) *OAuthHandler {
	return &OAuthHandler{store: store, startURL: startURL}
}

// Start handles GET /auth/google?redirect=&seller=true. Intents are stashed
// for the callback before the browser leaves for the provider.
func (h *OAuthHandler) Start(c *fiber.Ctx) error {
	var req dto.OAuthStartRequest
	if err := c.QueryParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid query")
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	ctx := c.UserContext()
	if req.Redirect != "" {
		if err := h.store.Set(ctx, domain.KeyOAuthRedirect, req.Redirect); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
	if req.Seller {
		if err := h.store.Set(ctx, domain.KeySellerRegistrationPending, domain.FlagTrue); err != nil {
			return apperrors.NewInternalError(err)
		}
	}

	return c.Redirect(h.startURL, http.StatusFound)
}
