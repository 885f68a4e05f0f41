package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-session/internal/api/dto"
	"github.com/spec-kit/marketplace-session/internal/domain"
	"github.com/spec-kit/marketplace-session/internal/events"
	"github.com/spec-kit/marketplace-session/internal/repository"
	apperrors "github.com/spec-kit/marketplace-session/pkg/util/errorutil"
)

// SessionManager is the slice of the session service the handlers drive.
type SessionManager interface {
	Session() domain.Session
	Adopt(ctx context.Context, credential string) error
	Terminate(ctx context.Context) error
}

// SessionHandler exposes the session of this client context.
type SessionHandler struct {
	sessions   SessionManager
	store      repository.CredentialStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewSessionHandler constructs handler.
func NewSessionHandler(sessions SessionManager, store repository.CredentialStore, dispatcher events.Dispatcher, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, store: store, dispatcher: dispatcher, logger: logger}
}

// Get handles GET /auth/session.
func (h *SessionHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(h.sessions.Session())})
}

// Adopt handles POST /auth/session.
func (h *SessionHandler) Adopt(c *fiber.Ctx) error {
	var req dto.CredentialRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	if err := h.sessions.Adopt(c.UserContext(), req.Token); err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(h.sessions.Session())})
}

// Logout handles POST /auth/logout. Terminate navigates to the root, which
// turns the response into a redirect.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	if err := h.sessions.Terminate(c.UserContext()); err != nil {
		h.logger.Warn("logout left a credential behind", zap.Error(err))
	}
	return nil
}

// Broadcast handles POST /auth/broadcast. Every session in this process
// re-derives from the announced credential; an empty token ends them.
func (h *SessionHandler) Broadcast(c *fiber.Ctx) error {
	var req dto.BroadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	event := events.NewEvent(events.EventCredentialBroadcast, events.CredentialBroadcastPayload{Token: req.Token})
	if err := h.dispatcher.Publish(c.UserContext(), event); err != nil {
		h.logger.Warn("broadcast handlers failed", zap.Error(err))
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"event_id": event.ID}})
}

// Resume handles POST /auth/resume, remembering where to return once the
// user has signed in.
func (h *SessionHandler) Resume(c *fiber.Ctx) error {
	var req dto.ResumeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	if err := h.store.Set(c.UserContext(), domain.KeyRedirectAfterAuth, req.Path); err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Identity handles GET /seller/identity for role-guarded views.
func (h *SessionHandler) Identity(c *fiber.Ctx) error {
	session := h.sessions.Session()
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session).Identity})
}
