package service

import (
	"context"
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-announcement-api/internal/models"
)

func directoryUsers() []models.User {
	return []models.User{
		{ID: "a1", Email: "admin@example.com", FullName: "Ada Admin", Role: models.RoleAdmin},
		{ID: "i1", Email: "ins@example.com", FullName: "Ian Instructor", Role: models.RoleInstructor},
		{ID: "s1", Email: "s1@example.com", FullName: "", Role: models.RoleStudent},
		{ID: "s2", Email: "  ", FullName: "No Mail", Role: models.RoleStudent},
	}
}

func newResolverFixture() (*AudienceResolver, *fakeUserDirectory, *fakeCourseDirectory) {
	users := &fakeUserDirectory{users: directoryUsers()}
	courses := &fakeCourseDirectory{enrolled: map[string][]models.User{
		"c1": {
			{ID: "s1", Email: "s1@example.com", FullName: "Sam"},
			{ID: "s1", Email: "s1@example.com", FullName: "Sam"},
			{ID: "s3", Email: "s3@example.com", FullName: "Sue"},
		},
	}}
	return NewAudienceResolver(users, courses, nil), users, courses
}

func TestResolveBroadcastTypes(t *testing.T) {
	resolver, _, _ := newResolverFixture()
	for _, typ := range []models.AnnouncementType{
		models.AnnouncementTypeAllUsers,
		models.AnnouncementTypeRegisteredUsers,
		models.AnnouncementTypePromotional,
		models.AnnouncementTypeSystemUpdate,
	} {
		res, err := resolver.Resolve(context.Background(), &models.Announcement{Type: typ})
		require.NoError(t, err)
		assert.Equal(t, []string{"a1", "i1", "s1"}, res.IDs(), typ)
		require.Len(t, res.Skipped, 1)
		assert.Equal(t, "s2", res.Skipped[0].UserID)
	}
}

func TestResolveFallsBackToEmailForName(t *testing.T) {
	resolver, _, _ := newResolverFixture()
	res, err := resolver.Resolve(context.Background(), &models.Announcement{Type: models.AnnouncementTypeAllUsers})
	require.NoError(t, err)
	assert.Equal(t, Recipient{ID: "s1", Email: "s1@example.com", Name: "s1@example.com"}, res.Recipients[2])
}

func TestResolveTargetedTypes(t *testing.T) {
	resolver, _, _ := newResolverFixture()
	ctx := context.Background()

	res, err := resolver.Resolve(ctx, &models.Announcement{Type: models.AnnouncementTypeInstructors})
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, res.IDs())

	res, err = resolver.Resolve(ctx, &models.Announcement{Type: models.AnnouncementTypeSpecificRoles, TargetRoles: pq.StringArray{"ADMIN", "STUDENT"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "s1"}, res.IDs())

	res, err = resolver.Resolve(ctx, &models.Announcement{Type: models.AnnouncementTypeSpecificUsers, TargetUserIDs: pq.StringArray{"i1", "zz"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, res.IDs())

	res, err = resolver.Resolve(ctx, &models.Announcement{Type: models.AnnouncementTypeCourseStudents, CourseID: strPtr("c1")})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, res.IDs())
}

func TestResolveEmptyAudiences(t *testing.T) {
	resolver, users, _ := newResolverFixture()
	ctx := context.Background()

	cases := []*models.Announcement{
		{Type: models.AnnouncementTypePublicUsers},
		{Type: models.AnnouncementTypeCourseStudents},
		{Type: models.AnnouncementTypeSpecificRoles},
		{Type: models.AnnouncementTypeSpecificUsers},
	}
	for _, a := range cases {
		res, err := resolver.Resolve(ctx, a)
		require.NoError(t, err, a.Type)
		assert.Empty(t, res.Recipients, a.Type)
	}
	assert.Zero(t, users.calls)
}

func TestResolveIsIdempotent(t *testing.T) {
	resolver, _, _ := newResolverFixture()
	a := &models.Announcement{Type: models.AnnouncementTypeSpecificRoles, TargetRoles: pq.StringArray{"STUDENT", "INSTRUCTOR"}}

	first, err := resolver.Resolve(context.Background(), a)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), a)
	require.NoError(t, err)
	assert.ElementsMatch(t, first.IDs(), second.IDs())

	reordered := &models.Announcement{Type: models.AnnouncementTypeSpecificRoles, TargetRoles: pq.StringArray{"INSTRUCTOR", "STUDENT"}}
	third, err := resolver.Resolve(context.Background(), reordered)
	require.NoError(t, err)
	assert.ElementsMatch(t, first.IDs(), third.IDs())
}

func TestResolvePropagatesDirectoryErrors(t *testing.T) {
	resolver, users, _ := newResolverFixture()
	users.err = errors.New("directory down")

	_, err := resolver.Resolve(context.Background(), &models.Announcement{Type: models.AnnouncementTypeAllUsers})
	assert.Error(t, err)
}
