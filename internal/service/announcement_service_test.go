package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-announcement-api/internal/models"
	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
)

var (
	adminActor   = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	studentActor = models.Actor{UserID: "s1", Role: models.RoleStudent}
	fixedNow     = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
)

type announcementFixture struct {
	svc     *AnnouncementService
	repo    *fakeAnnouncementRepo
	courses *fakeCourseDirectory
	users   *fakeUserDirectory
	cache   *fakeFeedCache
}

func newAnnouncementFixture(items ...models.Announcement) announcementFixture {
	repo := newFakeAnnouncementRepo(items...)
	courses := &fakeCourseDirectory{
		courses:     map[string]bool{"c1": true},
		enrollments: map[string][]string{"s1": {"c1"}},
	}
	users := &fakeUserDirectory{users: []models.User{
		{ID: "u1", Email: "u1@example.com", Role: models.RoleStudent},
		{ID: "u3", Email: "u3@example.com", Role: models.RoleStudent},
	}}
	cache := newFakeFeedCache()
	svc := NewAnnouncementService(repo, courses, users, cache, validator.New(), zap.NewNop(), AnnouncementServiceConfig{})
	svc.now = func() time.Time { return fixedNow }
	return announcementFixture{svc: svc, repo: repo, courses: courses, users: users, cache: cache}
}

func fixtureAnnouncement(id string, typ models.AnnouncementType, priority models.AnnouncementPriority, createdAt time.Time) models.Announcement {
	return models.Announcement{
		ID:          id,
		Title:       "Title " + id,
		Type:        typ,
		Priority:    priority,
		Category:    models.AnnouncementCategoryGeneral,
		DisplayType: models.DisplayTypeNotification,
		IsActive:    true,
		CreatedBy:   "admin-1",
		CreatedAt:   createdAt,
	}
}

func TestCreateCourseStudentsRequiresCourse(t *testing.T) {
	f := newAnnouncementFixture()

	_, err := f.svc.Create(context.Background(), adminActor, CreateAnnouncementRequest{
		Title: "Lab moved",
		Type:  string(models.AnnouncementTypeCourseStudents),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Zero(t, f.repo.creates)
}

func TestCreateCourseStudentsUnknownCourse(t *testing.T) {
	f := newAnnouncementFixture()

	_, err := f.svc.Create(context.Background(), adminActor, CreateAnnouncementRequest{
		Title:    "Lab moved",
		Type:     string(models.AnnouncementTypeCourseStudents),
		CourseID: strPtr("c9"),
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidReference.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "c9")
	assert.Equal(t, []string{"c9"}, appErr.Details["missing_ids"])
	assert.Zero(t, f.repo.creates)
}

func TestCreateSpecificUsersNamesMissingID(t *testing.T) {
	f := newAnnouncementFixture()

	_, err := f.svc.Create(context.Background(), adminActor, CreateAnnouncementRequest{
		Title:         "Your grades",
		Type:          string(models.AnnouncementTypeSpecificUsers),
		TargetUserIDs: []string{"u1", "u2"},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidReference.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "u2")
	assert.NotContains(t, appErr.Message, "u1")
	assert.Equal(t, []string{"u2"}, appErr.Details["missing_ids"])
	assert.Zero(t, f.repo.creates)
	assert.Empty(t, f.repo.items)
}

func TestCreateSpecificRolesRequiresRoles(t *testing.T) {
	f := newAnnouncementFixture()

	_, err := f.svc.Create(context.Background(), adminActor, CreateAnnouncementRequest{
		Title: "Staff meeting",
		Type:  string(models.AnnouncementTypeSpecificRoles),
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Create(context.Background(), adminActor, CreateAnnouncementRequest{
		Title:       "Staff meeting",
		Type:        string(models.AnnouncementTypeSpecificRoles),
		TargetRoles: []string{"GUEST"},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCreateAppliesDefaults(t *testing.T) {
	f := newAnnouncementFixture()

	created, err := f.svc.Create(context.Background(), adminActor, CreateAnnouncementRequest{
		Title:       "  Welcome  ",
		Content:     "Hello",
		Type:        "all_users",
		TargetRoles: nil,
		Tags:        []string{"intro", "intro", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Welcome", created.Title)
	assert.Equal(t, models.AnnouncementTypeAllUsers, created.Type)
	assert.Equal(t, models.AnnouncementPriorityP2, created.Priority)
	assert.Equal(t, models.AnnouncementCategoryGeneral, created.Category)
	assert.Equal(t, models.DisplayTypeNotification, created.DisplayType)
	assert.True(t, created.IsActive)
	assert.Equal(t, pq.StringArray{"intro"}, created.Tags)
	assert.Equal(t, "admin-1", created.CreatedBy)
	assert.Equal(t, 1, f.cache.invalidated)
}

func TestCreateRejectsInvertedWindow(t *testing.T) {
	f := newAnnouncementFixture()

	_, err := f.svc.Create(context.Background(), adminActor, CreateAnnouncementRequest{
		Title:     "Backwards",
		Type:      string(models.AnnouncementTypeAllUsers),
		StartsAt:  timePtr(fixedNow),
		ExpiresAt: timePtr(fixedNow),
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCreateRequiresAdmin(t *testing.T) {
	f := newAnnouncementFixture()

	_, err := f.svc.Create(context.Background(), studentActor, CreateAnnouncementRequest{Title: "x", Type: "ALL_USERS"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestUpdatePartialKeepsOtherFields(t *testing.T) {
	existing := fixtureAnnouncement("a1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP3, fixedNow)
	existing.Content = "original body"
	existing.Tags = pq.StringArray{"news"}
	f := newAnnouncementFixture(existing)

	updated, err := f.svc.Update(context.Background(), adminActor, "a1", UpdateAnnouncementRequest{Priority: strPtr("p1")})
	require.NoError(t, err)
	assert.Equal(t, models.AnnouncementPriorityP1, updated.Priority)
	assert.Equal(t, "original body", updated.Content)
	assert.Equal(t, pq.StringArray{"news"}, updated.Tags)
}

func TestUpdateRevalidatesMergedRecord(t *testing.T) {
	f := newAnnouncementFixture(fixtureAnnouncement("a1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow))

	_, err := f.svc.Update(context.Background(), adminActor, "a1", UpdateAnnouncementRequest{Type: strPtr("COURSE_STUDENTS")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, models.AnnouncementTypeAllUsers, f.repo.items["a1"].Type)
}

func TestUpdateClearsExpiryWindow(t *testing.T) {
	expired := fixtureAnnouncement("a1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow.Add(-48*time.Hour))
	expired.StartsAt = timePtr(fixedNow.Add(-24 * time.Hour))
	expired.ExpiresAt = timePtr(fixedNow.Add(-time.Hour))
	f := newAnnouncementFixture(expired)
	ctx := context.Background()

	feed, err := f.svc.UserFeed(ctx, studentActor)
	require.NoError(t, err)
	assert.Empty(t, feed)

	updated, err := f.svc.Update(ctx, adminActor, "a1", UpdateAnnouncementRequest{ClearExpiresAt: true})
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiresAt)
	require.NotNil(t, updated.StartsAt)
	assert.Nil(t, f.repo.items["a1"].ExpiresAt)

	feed, err = f.svc.UserFeed(ctx, studentActor)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "a1", feed[0].ID)

	updated, err = f.svc.Update(ctx, adminActor, "a1", UpdateAnnouncementRequest{ClearStartsAt: true})
	require.NoError(t, err)
	assert.Nil(t, updated.StartsAt)
}

func TestUpdateRejectsClearWithValue(t *testing.T) {
	original := fixtureAnnouncement("a1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow)
	original.ExpiresAt = timePtr(fixedNow.Add(time.Hour))
	f := newAnnouncementFixture(original)

	_, err := f.svc.Update(context.Background(), adminActor, "a1", UpdateAnnouncementRequest{
		ExpiresAt:      timePtr(fixedNow.Add(2 * time.Hour)),
		ClearExpiresAt: true,
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Equal(t, fixedNow.Add(time.Hour), *f.repo.items["a1"].ExpiresAt)
}

func TestSingleEntityNotFound(t *testing.T) {
	f := newAnnouncementFixture()
	ctx := context.Background()

	_, err := f.svc.Get(ctx, adminActor, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.Update(ctx, adminActor, "missing", UpdateAnnouncementRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = f.svc.ToggleActive(ctx, adminActor, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, adminActor, "missing"), appErrors.ErrNotFound)
}

func TestToggleTwiceRestoresState(t *testing.T) {
	original := fixtureAnnouncement("a1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow)
	original.Tags = pq.StringArray{"exam"}
	f := newAnnouncementFixture(original)
	ctx := context.Background()

	first, err := f.svc.ToggleActive(ctx, adminActor, "a1")
	require.NoError(t, err)
	assert.False(t, first.IsActive)

	afterFirst := *f.repo.items["a1"]
	expected := original
	expected.IsActive = false
	assert.Equal(t, expected, afterFirst)

	second, err := f.svc.ToggleActive(ctx, adminActor, "a1")
	require.NoError(t, err)
	assert.True(t, second.IsActive)
	assert.Equal(t, original, *f.repo.items["a1"])
}

func TestDeleteRemovesRecord(t *testing.T) {
	f := newAnnouncementFixture(fixtureAnnouncement("a1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow))

	require.NoError(t, f.svc.Delete(context.Background(), adminActor, "a1"))
	assert.Empty(t, f.repo.items)
}

func TestListDefaultsPaginationAndRejectsBadFilter(t *testing.T) {
	f := newAnnouncementFixture(fixtureAnnouncement("a1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow))

	rows, pagination, err := f.svc.List(context.Background(), adminActor, AnnouncementListRequest{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)

	_, _, err = f.svc.List(context.Background(), adminActor, AnnouncementListRequest{Priority: "P9"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, _, err = f.svc.List(context.Background(), adminActor, AnnouncementListRequest{ExpiresBefore: "tomorrow"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestParseAnnouncementFilter(t *testing.T) {
	filter, err := ParseAnnouncementFilter(AnnouncementListRequest{
		IsActive:     "true",
		Priority:     "p1",
		Type:         "specific_roles",
		Category:     "academic",
		StartsAfter:  "2024-03-01",
		ExpiresAfter: "2024-03-01T10:00:00Z",
		Tags:         "exam, news,exam",
	})
	require.NoError(t, err)
	require.NotNil(t, filter.IsActive)
	assert.True(t, *filter.IsActive)
	assert.Equal(t, models.AnnouncementPriorityP1, *filter.Priority)
	assert.Equal(t, models.AnnouncementTypeSpecificRoles, *filter.Type)
	assert.Equal(t, "ACADEMIC", *filter.Category)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *filter.StartsAfter)
	assert.Equal(t, []string{"exam", "news"}, filter.Tags)
	assert.Nil(t, filter.ShowAsBanner)
	assert.False(t, filter.IsEmpty())

	empty, err := ParseAnnouncementFilter(AnnouncementListRequest{})
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestUserFeedTargetingAndOrdering(t *testing.T) {
	items := []models.Announcement{
		fixtureAnnouncement("old-p2", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow.Add(-3*time.Hour)),
		fixtureAnnouncement("new-p2", models.AnnouncementTypeInstructors, models.AnnouncementPriorityP2, fixedNow.Add(-time.Hour)),
		fixtureAnnouncement("p1", models.AnnouncementTypeSystemUpdate, models.AnnouncementPriorityP1, fixedNow.Add(-5*time.Hour)),
		fixtureAnnouncement("p3", models.AnnouncementTypePromotional, models.AnnouncementPriorityP3, fixedNow),
		fixtureAnnouncement("public", models.AnnouncementTypePublicUsers, models.AnnouncementPriorityP1, fixedNow),
	}
	course := fixtureAnnouncement("course", models.AnnouncementTypeCourseStudents, models.AnnouncementPriorityP2, fixedNow.Add(-2*time.Hour))
	course.CourseID = strPtr("c1")
	otherCourse := fixtureAnnouncement("other-course", models.AnnouncementTypeCourseStudents, models.AnnouncementPriorityP1, fixedNow)
	otherCourse.CourseID = strPtr("c2")
	roles := fixtureAnnouncement("roles", models.AnnouncementTypeSpecificRoles, models.AnnouncementPriorityP3, fixedNow.Add(-time.Hour))
	roles.TargetRoles = pq.StringArray{"STUDENT"}
	instructorsOnly := fixtureAnnouncement("instructor-roles", models.AnnouncementTypeSpecificRoles, models.AnnouncementPriorityP1, fixedNow)
	instructorsOnly.TargetRoles = pq.StringArray{"INSTRUCTOR"}
	direct := fixtureAnnouncement("direct", models.AnnouncementTypeSpecificUsers, models.AnnouncementPriorityP1, fixedNow.Add(-time.Minute))
	direct.TargetUserIDs = pq.StringArray{"s1"}
	expired := fixtureAnnouncement("expired", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP1, fixedNow)
	expired.ExpiresAt = timePtr(fixedNow)
	items = append(items, course, otherCourse, roles, instructorsOnly, direct, expired)

	f := newAnnouncementFixture(items...)
	feed, err := f.svc.UserFeed(context.Background(), studentActor)
	require.NoError(t, err)

	var ids []string
	for _, a := range feed {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"direct", "p1", "new-p2", "course", "old-p2", "p3", "roles"}, ids)
	assertOrdered(t, feed)
}

func TestPublicUsersOnlyInPublicFeed(t *testing.T) {
	public := fixtureAnnouncement("public", models.AnnouncementTypePublicUsers, models.AnnouncementPriorityP2, fixedNow)
	f := newAnnouncementFixture(public, fixtureAnnouncement("all", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow))
	ctx := context.Background()

	publicFeed, err := f.svc.PublicFeed(ctx)
	require.NoError(t, err)
	require.Len(t, publicFeed, 1)
	assert.Equal(t, "public", publicFeed[0].ID)

	for _, actor := range []models.Actor{studentActor, adminActor, {UserID: "i1", Role: models.RoleInstructor}} {
		feed, err := f.svc.UserFeed(ctx, actor)
		require.NoError(t, err)
		for _, a := range feed {
			assert.NotEqual(t, models.AnnouncementTypePublicUsers, a.Type)
		}
	}
}

func TestCachedCandidatesStillApplyVisibility(t *testing.T) {
	expiring := fixtureAnnouncement("public", models.AnnouncementTypePublicUsers, models.AnnouncementPriorityP2, fixedNow)
	expiring.ExpiresAt = timePtr(fixedNow.Add(time.Minute))
	f := newAnnouncementFixture(expiring)
	ctx := context.Background()

	feed, err := f.svc.PublicFeed(ctx)
	require.NoError(t, err)
	assert.Len(t, feed, 1)
	assert.Equal(t, 1, f.repo.candidates)

	f.svc.now = func() time.Time { return fixedNow.Add(time.Minute) }
	feed, err = f.svc.PublicFeed(ctx)
	require.NoError(t, err)
	assert.Empty(t, feed)
	assert.Equal(t, 1, f.repo.candidates, "second read should come from cache")
}

func TestWritesInvalidateFeedCache(t *testing.T) {
	f := newAnnouncementFixture(fixtureAnnouncement("b1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow))
	f.repo.items["b1"].ShowAsBanner = true
	ctx := context.Background()

	feed, err := f.svc.BannerFeed(ctx, studentActor)
	require.NoError(t, err)
	assert.Len(t, feed, 1)

	_, err = f.svc.ToggleActive(ctx, adminActor, "b1")
	require.NoError(t, err)
	feed, err = f.svc.BannerFeed(ctx, studentActor)
	require.NoError(t, err)
	assert.Empty(t, feed)
	assert.Equal(t, 2, f.repo.candidates)
}

func TestTagFeed(t *testing.T) {
	exam := fixtureAnnouncement("exam", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow)
	exam.Tags = pq.StringArray{"exam", "midterm"}
	news := fixtureAnnouncement("news", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow)
	news.Tags = pq.StringArray{"news"}
	future := fixtureAnnouncement("future", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP2, fixedNow)
	future.Tags = pq.StringArray{"exam"}
	future.StartsAt = timePtr(fixedNow.Add(time.Second))
	f := newAnnouncementFixture(exam, news, future)

	feed, err := f.svc.TagFeed(context.Background(), studentActor, []string{"midterm", "exam"})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, "exam", feed[0].ID)

	_, err = f.svc.TagFeed(context.Background(), studentActor, []string{" "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestFeedsRequireIdentity(t *testing.T) {
	f := newAnnouncementFixture()
	_, err := f.svc.UserFeed(context.Background(), models.Actor{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
	_, err = f.svc.BannerFeed(context.Background(), models.Actor{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestStats(t *testing.T) {
	inactive := fixtureAnnouncement("a2", models.AnnouncementTypeInstructors, models.AnnouncementPriorityP1, fixedNow)
	inactive.IsActive = false
	future := fixtureAnnouncement("a3", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP1, fixedNow)
	future.StartsAt = timePtr(fixedNow.Add(time.Hour))
	f := newAnnouncementFixture(fixtureAnnouncement("a1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP1, fixedNow), inactive, future)

	stats, err := f.svc.Stats(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 1, stats.VisibleNow)
	assert.Equal(t, 3, stats.ByPriority["P1"])
	assert.Equal(t, 1, stats.ByType["INSTRUCTORS"])
	assert.Equal(t, 3, stats.ByCategory["GENERAL"])

	_, err = f.svc.Stats(context.Background(), studentActor)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestExportCSV(t *testing.T) {
	f := newAnnouncementFixture(fixtureAnnouncement("a1", models.AnnouncementTypeAllUsers, models.AnnouncementPriorityP1, fixedNow))

	result, err := f.svc.Export(context.Background(), adminActor, AnnouncementListRequest{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))
	assert.Contains(t, string(result.Body), "Title a1")

	_, err = f.svc.Export(context.Background(), adminActor, AnnouncementListRequest{}, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func assertOrdered(t *testing.T, items []models.Announcement) {
	t.Helper()
	for i := 1; i < len(items); i++ {
		prev, cur := items[i-1], items[i]
		require.LessOrEqual(t, prev.Priority.Rank(), cur.Priority.Rank())
		if prev.Priority == cur.Priority {
			require.False(t, cur.CreatedAt.After(prev.CreatedAt))
		}
	}
}
