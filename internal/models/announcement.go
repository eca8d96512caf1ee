package models

import (
	"sort"
	"time"

	"github.com/lib/pq"
)

// AnnouncementType decides which audience an announcement addresses.
type AnnouncementType string

const (
	AnnouncementTypeAllUsers        AnnouncementType = "ALL_USERS"
	AnnouncementTypeRegisteredUsers AnnouncementType = "REGISTERED_USERS"
	AnnouncementTypeInstructors     AnnouncementType = "INSTRUCTORS"
	AnnouncementTypeCourseStudents  AnnouncementType = "COURSE_STUDENTS"
	AnnouncementTypeSpecificRoles   AnnouncementType = "SPECIFIC_ROLES"
	AnnouncementTypeSpecificUsers   AnnouncementType = "SPECIFIC_USERS"
	AnnouncementTypePromotional     AnnouncementType = "PROMOTIONAL"
	AnnouncementTypePublicUsers     AnnouncementType = "PUBLIC_USERS"
	AnnouncementTypeSystemUpdate    AnnouncementType = "SYSTEM_UPDATE"
)

// AnnouncementTypes lists every supported type.
var AnnouncementTypes = []AnnouncementType{
	AnnouncementTypeAllUsers,
	AnnouncementTypeRegisteredUsers,
	AnnouncementTypeInstructors,
	AnnouncementTypeCourseStudents,
	AnnouncementTypeSpecificRoles,
	AnnouncementTypeSpecificUsers,
	AnnouncementTypePromotional,
	AnnouncementTypePublicUsers,
	AnnouncementTypeSystemUpdate,
}

// BroadcastAnnouncementTypes reach every signed-in user without further targeting.
var BroadcastAnnouncementTypes = []AnnouncementType{
	AnnouncementTypeAllUsers,
	AnnouncementTypeRegisteredUsers,
	AnnouncementTypeInstructors,
	AnnouncementTypePromotional,
	AnnouncementTypeSystemUpdate,
}

// Valid reports whether t is a known type.
func (t AnnouncementType) Valid() bool {
	for _, known := range AnnouncementTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsBroadcast reports whether t is shown to every signed-in user.
func (t AnnouncementType) IsBroadcast() bool {
	for _, b := range BroadcastAnnouncementTypes {
		if t == b {
			return true
		}
	}
	return false
}

// AnnouncementPriority orders announcements, P1 first.
type AnnouncementPriority string

const (
	AnnouncementPriorityP1 AnnouncementPriority = "P1"
	AnnouncementPriorityP2 AnnouncementPriority = "P2"
	AnnouncementPriorityP3 AnnouncementPriority = "P3"
)

// Rank returns the sort rank; unknown priorities sort last.
func (p AnnouncementPriority) Rank() int {
	switch p {
	case AnnouncementPriorityP1:
		return 1
	case AnnouncementPriorityP2:
		return 2
	case AnnouncementPriorityP3:
		return 3
	default:
		return 4
	}
}

// Valid reports whether p is a known priority.
func (p AnnouncementPriority) Valid() bool {
	return p.Rank() < 4
}

// DisplayType controls where clients render an announcement.
type DisplayType string

const (
	DisplayTypeBanner       DisplayType = "BANNER"
	DisplayTypeNotification DisplayType = "NOTIFICATION"
	DisplayTypeSidebar      DisplayType = "SIDEBAR"
	DisplayTypeEmail        DisplayType = "EMAIL"
	DisplayTypeInApp        DisplayType = "IN_APP"
)

// Valid reports whether d is a known display type.
func (d DisplayType) Valid() bool {
	switch d {
	case DisplayTypeBanner, DisplayTypeNotification, DisplayTypeSidebar, DisplayTypeEmail, DisplayTypeInApp:
		return true
	default:
		return false
	}
}

// Well-known categories. Other values are accepted and grouped under a default label.
const (
	AnnouncementCategoryGeneral      = "GENERAL"
	AnnouncementCategoryAcademic     = "ACADEMIC"
	AnnouncementCategoryCourseUpdate = "COURSE_UPDATE"
	AnnouncementCategorySystem       = "SYSTEM"
	AnnouncementCategoryMaintenance  = "MAINTENANCE"
	AnnouncementCategoryPromotion    = "PROMOTION"
	AnnouncementCategoryEvent        = "EVENT"
	AnnouncementCategoryDeadline     = "DEADLINE"
)

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID            string               `db:"id" json:"id"`
	Title         string               `db:"title" json:"title"`
	Content       string               `db:"content" json:"content"`
	Type          AnnouncementType     `db:"type" json:"type"`
	Priority      AnnouncementPriority `db:"priority" json:"priority"`
	Category      string               `db:"category" json:"category"`
	DisplayType   DisplayType          `db:"display_type" json:"display_type"`
	CourseID      *string              `db:"course_id" json:"course_id,omitempty"`
	TargetRoles   pq.StringArray       `db:"target_roles" json:"target_roles"`
	TargetUserIDs pq.StringArray       `db:"target_user_ids" json:"target_user_ids"`
	StartsAt      *time.Time           `db:"starts_at" json:"starts_at,omitempty"`
	ExpiresAt     *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	IsActive      bool                 `db:"is_active" json:"is_active"`
	ShowAsBanner  bool                 `db:"show_as_banner" json:"show_as_banner"`
	SendEmail     bool                 `db:"send_email" json:"send_email"`
	ActionURL     *string              `db:"action_url" json:"action_url,omitempty"`
	ActionText    *string              `db:"action_text" json:"action_text,omitempty"`
	ImageURL      *string              `db:"image_url" json:"image_url,omitempty"`
	Tags          pq.StringArray       `db:"tags" json:"tags"`
	CreatedBy     string               `db:"created_by" json:"created_by"`
	CreatorName   *string              `db:"creator_name" json:"creator_name,omitempty"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time            `db:"updated_at" json:"updated_at"`
}

// VisibleAt reports whether the announcement may be shown at now. It is the
// only visibility rule used by the feeds: active, already started (inclusive)
// and not yet expired (exclusive).
func (a *Announcement) VisibleAt(now time.Time) bool {
	if a == nil || !a.IsActive {
		return false
	}
	if a.StartsAt != nil && a.StartsAt.After(now) {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}

// Viewer identifies the signed-in caller of a personal feed.
type Viewer struct {
	UserID    string
	Role      UserRole
	CourseIDs []string
}

// TargetsViewer reports whether the announcement's audience includes v.
// PUBLIC_USERS announcements only appear in the public feed.
func (a *Announcement) TargetsViewer(v Viewer) bool {
	if a == nil {
		return false
	}
	switch {
	case a.Type.IsBroadcast():
		return true
	case a.Type == AnnouncementTypeCourseStudents:
		return a.CourseID != nil && containsString(v.CourseIDs, *a.CourseID)
	case a.Type == AnnouncementTypeSpecificRoles:
		return containsString(a.TargetRoles, string(v.Role))
	case a.Type == AnnouncementTypeSpecificUsers:
		return containsString(a.TargetUserIDs, v.UserID)
	default:
		return false
	}
}

// HasAnyTag reports whether the announcement carries at least one of tags.
func (a *Announcement) HasAnyTag(tags []string) bool {
	if a == nil {
		return false
	}
	for _, tag := range tags {
		if containsString(a.Tags, tag) {
			return true
		}
	}
	return false
}

// SortAnnouncements orders by priority (P1 first) then newest first.
func SortAnnouncements(items []Announcement) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Priority.Rank(), items[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

// AnnouncementFilter is the admin filter spec. Nil fields are not applied;
// every set field narrows the result (AND).
type AnnouncementFilter struct {
	IsActive      *bool
	Priority      *AnnouncementPriority
	Type          *AnnouncementType
	Category      *string
	DisplayType   *DisplayType
	CreatedBy     *string
	CourseID      *string
	ExpiresBefore *time.Time
	ExpiresAfter  *time.Time
	StartsBefore  *time.Time
	StartsAfter   *time.Time
	Tags          []string
	ShowAsBanner  *bool
	Page          int
	PageSize      int
}

// IsEmpty reports whether no narrowing criteria are set.
func (f AnnouncementFilter) IsEmpty() bool {
	return f.IsActive == nil && f.Priority == nil && f.Type == nil && f.Category == nil &&
		f.DisplayType == nil && f.CreatedBy == nil && f.CourseID == nil &&
		f.ExpiresBefore == nil && f.ExpiresAfter == nil && f.StartsBefore == nil &&
		f.StartsAfter == nil && len(f.Tags) == 0 && f.ShowAsBanner == nil
}

// AnnouncementCandidateQuery narrows the active announcements a feed starts from.
// Visibility is applied afterwards with VisibleAt.
type AnnouncementCandidateQuery struct {
	Types        []AnnouncementType
	Viewer       *Viewer
	ShowAsBanner *bool
	Tags         []string
}

// AnnouncementStats aggregates counts for the admin dashboard.
type AnnouncementStats struct {
	Total         int            `json:"total"`
	Active        int            `json:"active"`
	Inactive      int            `json:"inactive"`
	VisibleNow    int            `json:"visible_now"`
	ByType        map[string]int `json:"by_type"`
	ByPriority    map[string]int `json:"by_priority"`
	ByCategory    map[string]int `json:"by_category"`
	ByDisplayType map[string]int `json:"by_display_type"`
}

// GroupCount is one row of a grouped count query.
type GroupCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
