package domain

// SessionState enumerates the lifecycle of a derived session.
type SessionState string

const (
	SessionUninitialized SessionState = "UNINITIALIZED"
	SessionLoading       SessionState = "LOADING"
	SessionAuthenticated SessionState = "AUTHENTICATED"
	SessionAnonymous     SessionState = "ANONYMOUS"
)

// Session is the observable authentication state of one client context.
type Session struct {
	State           SessionState `json:"state"`
	Identity        *Identity    `json:"identity"`
	IsLoading       bool         `json:"is_loading"`
	IsAuthenticated bool         `json:"is_authenticated"`
}

// NewSession builds a Session keeping IsAuthenticated and IsLoading consistent with state.
func NewSession(state SessionState, identity *Identity) Session {
	if state != SessionAuthenticated {
		identity = nil
	}
	return Session{
		State:           state,
		Identity:        identity,
		IsLoading:       state == SessionUninitialized || state == SessionLoading,
		IsAuthenticated: identity != nil,
	}
}
