package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lms-announcement-api/internal/models"
	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
)

func TestAuthorize(t *testing.T) {
	admin := models.Actor{UserID: "a1", Role: models.RoleAdmin}
	student := models.Actor{UserID: "s1", Role: models.RoleStudent}

	assert.NoError(t, Authorize(admin, models.RoleAdmin))
	assert.NoError(t, Authorize(student))
	assert.ErrorIs(t, Authorize(student, models.RoleAdmin), appErrors.ErrForbidden)
	assert.ErrorIs(t, Authorize(models.Actor{}), appErrors.ErrUnauthorized)
}
