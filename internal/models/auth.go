package models

import "github.com/golang-jwt/jwt/v5"

// UserMetadata is the profile data the identity provider embeds in its tokens.
type UserMetadata struct {
	FullName      string `json:"full_name"`
	EmailVerified bool   `json:"email_verified"`
}

// AccessClaims is the payload of an access token minted by the identity provider.
// The subject is the user id.
type AccessClaims struct {
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}
