package service

import (
	"github.com/noah-isme/lms-announcement-api/internal/models"
	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
)

// Authorize checks that actor is signed in and, when required roles are given,
// holds one of them.
func Authorize(actor models.Actor, required ...models.UserRole) error {
	if actor.Anonymous() {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	if len(required) == 0 {
		return nil
	}
	for _, role := range required {
		if actor.Role == role {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient role")
}
