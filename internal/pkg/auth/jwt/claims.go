package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims issued to
// chat participants. It includes standard claims required by the JWT
// specification and the custom claims the relay needs to identify a session.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the unified identifier for the participant, which can be a system-generated
	// Guest ID or a registered User ID, depending on the UserType.
	ID string `json:"id"`

	// Username is the display name the participant presents in rooms.
	Username string `json:"username"`

	// UserType defines the role of the participant, allowing the server to apply
	// different logic and permissions (e.g., "guest" or "registered").
	UserType string `json:"user_type"`
}
