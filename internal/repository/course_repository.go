package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-announcement-api/internal/models"
)

// CourseRepository answers course and enrollment lookups.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Exists reports whether a course with id exists.
func (r *CourseRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)", id); err != nil {
		return false, fmt.Errorf("check course exists: %w", err)
	}
	return exists, nil
}

// ListEnrolledUsers returns the active users with an ENROLLED enrollment in the course.
func (r *CourseRepository) ListEnrolledUsers(ctx context.Context, courseID string) ([]models.User, error) {
	const query = `SELECT u.id, u.email, u.full_name, u.role, u.active, u.created_at, u.updated_at
FROM enrollments e
JOIN users u ON u.id = e.user_id
WHERE e.course_id = $1 AND e.status = $2 AND u.active = TRUE
ORDER BY e.enrolled_at ASC, u.id ASC`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, courseID, string(models.EnrollmentStatusEnrolled)); err != nil {
		return nil, fmt.Errorf("list enrolled users: %w", err)
	}
	return users, nil
}

// ListEnrolledCourseIDs returns the courses a user is currently enrolled in.
func (r *CourseRepository) ListEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT course_id FROM enrollments WHERE user_id = $1 AND status = $2 ORDER BY course_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, string(models.EnrollmentStatusEnrolled)); err != nil {
		return nil, fmt.Errorf("list enrolled course ids: %w", err)
	}
	return ids, nil
}
