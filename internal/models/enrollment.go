package models

import "time"

// EnrollmentStatus represents the lifecycle of a course enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped   EnrollmentStatus = "DROPPED"
)

// Course is the minimal course record announcements can reference.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	InstructorID *string   `db:"instructor_id" json:"instructor_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Enrollment links a user to a course.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	UserID     string           `db:"user_id" json:"user_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
}
