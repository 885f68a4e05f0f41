package domain

// Error codes carried to login surfaces in the "error" query parameter.
const (
	NavErrorTokenMismatch      = "token_mismatch"
	NavErrorRegistrationFailed = "registration_failed"
	NavErrorNetwork            = "network_error"
)

// NavigationReason labels why a navigation happened; used for logs and metrics.
type NavigationReason string

const (
	ReasonTerminate          NavigationReason = "terminate"
	ReasonResumeAfterAuth    NavigationReason = "resume_after_auth"
	ReasonProviderError      NavigationReason = "provider_error"
	ReasonMissingCredential  NavigationReason = "missing_credential"
	ReasonSellerIssued       NavigationReason = "seller_issued"
	ReasonSellerResync       NavigationReason = "seller_resync"
	ReasonTokenMismatch      NavigationReason = "token_mismatch"
	ReasonRegistrationFailed NavigationReason = "registration_failed"
	ReasonNetworkError       NavigationReason = "network_error"
	ReasonOAuthRedirect      NavigationReason = "oauth_redirect"
	ReasonDefault            NavigationReason = "default"
)
