package identityapi

import "time"

// AccessTokenMetadataKey carries the access token on authenticated calls.
const AccessTokenMetadataKey = "access_token"

type Claim struct {
	ClaimType  string `json:"claimType"`
	ClaimValue string `json:"claimValue"`
}

type SignUpRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
}

type SignUpResponse struct {
	UserID string `json:"userId"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse answers Login and RefreshToken.
type TokenResponse struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type AddUserClaimRequest struct {
	Email  string  `json:"email"`
	Claims []Claim `json:"claims"`
}

type GetUserClaimsRequest struct {
	Email string `json:"email"`
}

type GetUserClaimsResponse struct {
	Email  string  `json:"email"`
	Claims []Claim `json:"claims"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type Empty struct{}
