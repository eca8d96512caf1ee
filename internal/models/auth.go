package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor is the caller of a service operation.
type Actor struct {
	UserID string
	Role   UserRole
}

// ActorFromClaims maps validated token claims to an actor. Nil claims yield an anonymous actor.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}
}

// Anonymous reports whether the actor carries no identity.
func (a Actor) Anonymous() bool {
	return a.UserID == ""
}
