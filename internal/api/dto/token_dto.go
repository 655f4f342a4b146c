package dto

// TokenRequest is accepted by the refresh and validate endpoints.
type TokenRequest struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// ValidateTokenResponse is returned by validate.
type ValidateTokenResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}
