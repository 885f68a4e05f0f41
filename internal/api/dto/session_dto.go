package dto

import "github.com/spec-kit/marketplace-session/internal/domain"

// CredentialRequest carries a credential to adopt.
type CredentialRequest struct {
	Token string `json:"token" validate:"required"`
}

// BroadcastRequest announces a credential to every session of the process.
// An empty token announces its removal.
type BroadcastRequest struct {
	Token string `json:"token"`
}

// ResumeRequest stashes a path to return to after authentication.
type ResumeRequest struct {
	Path string `json:"path" validate:"required,localpath"`
}

// OAuthStartRequest is the query of the provider handshake entry point.
type OAuthStartRequest struct {
	Redirect string `query:"redirect" validate:"omitempty,localpath"`
	Seller   bool   `query:"seller"`
}

// SessionResponse renders the session of this client context.
type SessionResponse struct {
	State           domain.SessionState `json:"state"`
	IsLoading       bool                `json:"is_loading"`
	IsAuthenticated bool                `json:"is_authenticated"`
	Identity        *IdentityResponse   `json:"identity"`
}

// IdentityResponse renders an identity.
type IdentityResponse struct {
	ID          int64       `json:"identity_id"`
	DisplayName string      `json:"display_name"`
	Role        domain.Role `json:"role"`
	StoreID     *int64      `json:"store_id"`
}

// NewSessionResponse maps a session snapshot.
func NewSessionResponse(s domain.Session) SessionResponse {
	resp := SessionResponse{
		State:           s.State,
		IsLoading:       s.IsLoading,
		IsAuthenticated: s.IsAuthenticated,
	}
	if s.Identity != nil {
		resp.Identity = &IdentityResponse{
			ID:          s.Identity.ID,
			DisplayName: s.Identity.DisplayName,
			Role:        s.Identity.Role,
			StoreID:     s.Identity.StoreID,
		}
	}
	return resp
}
