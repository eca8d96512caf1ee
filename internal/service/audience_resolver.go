package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-announcement-api/internal/models"
	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
)

type userDirectory interface {
	ListActive(ctx context.Context) ([]models.User, error)
	ListActiveByRoles(ctx context.Context, roles []models.UserRole) ([]models.User, error)
	ListActiveByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type enrollmentDirectory interface {
	ListEnrolledUsers(ctx context.Context, courseID string) ([]models.User, error)
}

// Recipient is an addressable member of an announcement audience.
type Recipient struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SkippedRecipient records a directory user that could not be addressed.
type SkippedRecipient struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// AudienceResolution is the outcome of resolving one announcement.
type AudienceResolution struct {
	Recipients []Recipient        `json:"recipients"`
	Skipped    []SkippedRecipient `json:"skipped,omitempty"`
}

// IDs returns recipient ids in resolution order.
func (r *AudienceResolution) IDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.Recipients))
	for _, rec := range r.Recipients {
		ids = append(ids, rec.ID)
	}
	return ids
}

const skipReasonNoEmail = "missing email address"

// AudienceResolver maps an announcement's targeting to concrete recipients.
type AudienceResolver struct {
	users       userDirectory
	enrollments enrollmentDirectory
	logger      *zap.Logger
}

// NewAudienceResolver constructs the resolver.
func NewAudienceResolver(users userDirectory, enrollments enrollmentDirectory, logger *zap.Logger) *AudienceResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AudienceResolver{users: users, enrollments: enrollments, logger: logger}
}

// Resolve returns the ordered, de-duplicated recipients of announcement. A
// missing type parameter yields an empty audience rather than an error.
func (r *AudienceResolver) Resolve(ctx context.Context, announcement *models.Announcement) (*AudienceResolution, error) {
	if announcement == nil {
		return &AudienceResolution{}, nil
	}
	users, err := r.lookup(ctx, announcement)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve audience")
	}

	resolution := &AudienceResolution{Recipients: make([]Recipient, 0, len(users))}
	seen := make(map[string]struct{}, len(users))
	for _, user := range users {
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}

		email := strings.TrimSpace(user.Email)
		if email == "" {
			resolution.Skipped = append(resolution.Skipped, SkippedRecipient{UserID: user.ID, Reason: skipReasonNoEmail})
			continue
		}
		name := strings.TrimSpace(user.FullName)
		if name == "" {
			name = email
		}
		resolution.Recipients = append(resolution.Recipients, Recipient{ID: user.ID, Email: email, Name: name})
	}
	return resolution, nil
}

func (r *AudienceResolver) lookup(ctx context.Context, a *models.Announcement) ([]models.User, error) {
	switch a.Type {
	case models.AnnouncementTypeAllUsers,
		models.AnnouncementTypeRegisteredUsers,
		models.AnnouncementTypePromotional,
		models.AnnouncementTypeSystemUpdate:
		return r.users.ListActive(ctx)
	case models.AnnouncementTypeInstructors:
		return r.users.ListActiveByRoles(ctx, []models.UserRole{models.RoleInstructor})
	case models.AnnouncementTypeCourseStudents:
		if a.CourseID == nil || *a.CourseID == "" {
			return nil, nil
		}
		return r.enrollments.ListEnrolledUsers(ctx, *a.CourseID)
	case models.AnnouncementTypeSpecificRoles:
		if len(a.TargetRoles) == 0 {
			return nil, nil
		}
		roles := make([]models.UserRole, 0, len(a.TargetRoles))
		for _, role := range a.TargetRoles {
			roles = append(roles, models.UserRole(role))
		}
		return r.users.ListActiveByRoles(ctx, roles)
	case models.AnnouncementTypeSpecificUsers:
		if len(a.TargetUserIDs) == 0 {
			return nil, nil
		}
		return r.users.ListActiveByIDs(ctx, a.TargetUserIDs)
	case models.AnnouncementTypePublicUsers:
		return nil, nil
	default:
		r.logger.Sugar().Warnw("unknown announcement type", "announcement_id", a.ID, "type", a.Type)
		return nil, nil
	}
}
