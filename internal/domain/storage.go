package domain

// Credential store slots shared by every context of one origin.
const (
	KeyAuthToken                 = "auth_token"
	KeySellerRegistrationPending = "seller_registration_pending"
	KeyOAuthRedirect             = "oauth_redirect"
	KeyRedirectAfterAuth         = "redirect_after_auth"
)

// FlagTrue is the value stored for a set boolean flag.
const FlagTrue = "true"
