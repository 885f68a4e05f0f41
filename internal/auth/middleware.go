package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/marketplace-session/internal/domain"
)

const sessionKey = "auth_session"

// SessionReader exposes the derived session of the current client context.
type SessionReader interface {
	Session() domain.Session
}

// SessionMiddleware snapshots the session into the request for consuming views.
type SessionMiddleware struct {
	sessions SessionReader
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(sessions SessionReader) *SessionMiddleware {
	return &SessionMiddleware{sessions: sessions}
}

// Handle stores the session snapshot in request locals.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	session := m.sessions.Session()
	c.Locals(sessionKey, &session)
	return c.Next()
}

// SessionFromContext retrieves the session snapshot taken for this request.
func SessionFromContext(c *fiber.Ctx) (*domain.Session, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return nil, false
	}
	session, ok := val.(*domain.Session)
	return session, ok
}
