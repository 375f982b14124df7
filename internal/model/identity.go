package model

// Identity is the verified caller of a single request. It is built from a
// freshly verified ID token and discarded with the request.
type Identity struct {
	UID           string         `json:"uid"`
	Email         string         `json:"email,omitempty"`
	EmailVerified bool           `json:"email_verified"`
	DisplayName   string         `json:"display_name,omitempty"`
	PhotoURL      string         `json:"photo_url,omitempty"`
	CustomClaims  map[string]any `json:"custom_claims"`
}

// Claim returns a provider-issued custom claim.
func (i Identity) Claim(key string) (any, bool) {
	v, ok := i.CustomClaims[key]
	return v, ok
}
