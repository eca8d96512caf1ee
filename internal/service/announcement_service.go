package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-announcement-api/internal/models"
	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
	"github.com/noah-isme/lms-announcement-api/pkg/export"
)

const (
	feedPublic     = "public"
	feedBanner     = "banner"
	feedTagsPrefix = "tags:"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	ListForExport(ctx context.Context, filter models.AnnouncementFilter, limit int) ([]models.Announcement, error)
	ListCandidates(ctx context.Context, query models.AnnouncementCandidateQuery) ([]models.Announcement, error)
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	ToggleActive(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	CountByActive(ctx context.Context) (int, int, error)
	CountGrouped(ctx context.Context, column string) ([]models.GroupCount, error)
}

type courseDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
	ListEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error)
}

type userReferenceChecker interface {
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}

type feedCache interface {
	Candidates(ctx context.Context, feed string) ([]models.Announcement, bool)
	StoreCandidates(ctx context.Context, feed string, items []models.Announcement)
	InvalidateFeeds(ctx context.Context)
}

// AnnouncementServiceConfig tunes export limits.
type AnnouncementServiceConfig struct {
	ExportMaxRows int
}

// AnnouncementService handles announcement administration and the read feeds.
type AnnouncementService struct {
	repo      announcementRepository
	courses   courseDirectory
	users     userReferenceChecker
	cache     feedCache
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AnnouncementServiceConfig
	now       func() time.Time
}

// NewAnnouncementService constructs the service. cache may be nil.
func NewAnnouncementService(repo announcementRepository, courses courseDirectory, users userReferenceChecker, cache feedCache, validate *validator.Validate, logger *zap.Logger, cfg AnnouncementServiceConfig) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ExportMaxRows <= 0 {
		cfg.ExportMaxRows = 5000
	}
	registerAnnouncementValidations(validate)
	return &AnnouncementService{
		repo:      repo,
		courses:   courses,
		users:     users,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

func registerAnnouncementValidations(v *validator.Validate) {
	_ = v.RegisterValidation("announcement_type", func(fl validator.FieldLevel) bool {
		return models.AnnouncementType(strings.ToUpper(fl.Field().String())).Valid()
	})
	_ = v.RegisterValidation("announcement_priority", func(fl validator.FieldLevel) bool {
		return models.AnnouncementPriority(strings.ToUpper(fl.Field().String())).Valid()
	})
	_ = v.RegisterValidation("display_type", func(fl validator.FieldLevel) bool {
		return models.DisplayType(strings.ToUpper(fl.Field().String())).Valid()
	})
	_ = v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.UserRole(strings.ToUpper(fl.Field().String())).Valid()
	})
}

// AnnouncementListRequest carries raw admin filter input. Empty values are not applied.
type AnnouncementListRequest struct {
	IsActive      string `form:"is_active"`
	Priority      string `form:"priority"`
	Type          string `form:"type"`
	Category      string `form:"category"`
	DisplayType   string `form:"display_type"`
	CreatedBy     string `form:"created_by"`
	CourseID      string `form:"course_id"`
	ExpiresBefore string `form:"expires_before"`
	ExpiresAfter  string `form:"expires_after"`
	StartsBefore  string `form:"starts_before"`
	StartsAfter   string `form:"starts_after"`
	Tags          string `form:"tags"`
	ShowAsBanner  string `form:"show_as_banner"`
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
}

// CreateAnnouncementRequest describes the create payload.
type CreateAnnouncementRequest struct {
	Title         string     `json:"title" validate:"required,max=255"`
	Content       string     `json:"content"`
	Type          string     `json:"type" validate:"required,announcement_type"`
	Priority      string     `json:"priority" validate:"omitempty,announcement_priority"`
	Category      string     `json:"category" validate:"omitempty,max=64"`
	DisplayType   string     `json:"display_type" validate:"omitempty,display_type"`
	CourseID      *string    `json:"course_id"`
	TargetRoles   []string   `json:"target_roles" validate:"omitempty,dive,user_role"`
	TargetUserIDs []string   `json:"target_user_ids" validate:"omitempty,dive,required"`
	StartsAt      *time.Time `json:"starts_at"`
	ExpiresAt     *time.Time `json:"expires_at"`
	IsActive      *bool      `json:"is_active"`
	ShowAsBanner  bool       `json:"show_as_banner"`
	SendEmail     bool       `json:"send_email"`
	ActionURL     *string    `json:"action_url" validate:"omitempty,url"`
	ActionText    *string    `json:"action_text" validate:"omitempty,max=64"`
	ImageURL      *string    `json:"image_url" validate:"omitempty,url"`
	Tags          []string   `json:"tags" validate:"omitempty,dive,required"`
}

// UpdateAnnouncementRequest describes a partial update. Nil fields keep their current value.
type UpdateAnnouncementRequest struct {
	Title         *string    `json:"title" validate:"omitempty,min=1,max=255"`
	Content       *string    `json:"content"`
	Type          *string    `json:"type" validate:"omitempty,announcement_type"`
	Priority      *string    `json:"priority" validate:"omitempty,announcement_priority"`
	Category      *string    `json:"category" validate:"omitempty,max=64"`
	DisplayType   *string    `json:"display_type" validate:"omitempty,display_type"`
	CourseID      *string    `json:"course_id"`
	TargetRoles   []string   `json:"target_roles" validate:"omitempty,dive,user_role"`
	TargetUserIDs []string   `json:"target_user_ids" validate:"omitempty,dive,required"`
	StartsAt      *time.Time `json:"starts_at"`
	ExpiresAt     *time.Time `json:"expires_at"`
	// ClearStartsAt and ClearExpiresAt reset the window bound to null
	// (started immediately, never expires).
	ClearStartsAt  bool     `json:"clear_starts_at" validate:"excluded_with=StartsAt"`
	ClearExpiresAt bool     `json:"clear_expires_at" validate:"excluded_with=ExpiresAt"`
	IsActive       *bool    `json:"is_active"`
	ShowAsBanner   *bool    `json:"show_as_banner"`
	SendEmail      *bool    `json:"send_email"`
	ActionURL      *string  `json:"action_url" validate:"omitempty,url"`
	ActionText     *string  `json:"action_text" validate:"omitempty,max=64"`
	ImageURL       *string  `json:"image_url" validate:"omitempty,url"`
	Tags           []string `json:"tags" validate:"omitempty,dive,required"`
}

// ToggleResult reports the new active state after a toggle.
type ToggleResult struct {
	ID       string `json:"id"`
	IsActive bool   `json:"is_active"`
}

// ExportResult is a rendered admin export.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// List returns admin announcements. An empty filter lists everything.
func (s *AnnouncementService) List(ctx context.Context, actor models.Actor, req AnnouncementListRequest) ([]models.Announcement, *models.Pagination, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return nil, nil, err
	}
	filter, err := ParseAnnouncementFilter(req)
	if err != nil {
		return nil, nil, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	if rows == nil {
		rows = []models.Announcement{}
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns an announcement by id.
func (s *AnnouncementService) Get(ctx context.Context, actor models.Actor, id string) (*models.Announcement, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create validates and stores a new announcement.
func (s *AnnouncementService) Create(ctx context.Context, actor models.Actor, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	announcement := &models.Announcement{
		Title:         strings.TrimSpace(req.Title),
		Content:       req.Content,
		Type:          models.AnnouncementType(strings.ToUpper(req.Type)),
		Priority:      models.AnnouncementPriorityP2,
		Category:      models.AnnouncementCategoryGeneral,
		DisplayType:   models.DisplayTypeNotification,
		CourseID:      trimmedOrNil(req.CourseID),
		TargetRoles:   upperAll(req.TargetRoles),
		TargetUserIDs: pq.StringArray(dedupe(req.TargetUserIDs)),
		StartsAt:      req.StartsAt,
		ExpiresAt:     req.ExpiresAt,
		IsActive:      true,
		ShowAsBanner:  req.ShowAsBanner,
		SendEmail:     req.SendEmail,
		ActionURL:     trimmedOrNil(req.ActionURL),
		ActionText:    trimmedOrNil(req.ActionText),
		ImageURL:      trimmedOrNil(req.ImageURL),
		Tags:          pq.StringArray(dedupe(req.Tags)),
		CreatedBy:     actor.UserID,
	}
	if req.Priority != "" {
		announcement.Priority = models.AnnouncementPriority(strings.ToUpper(req.Priority))
	}
	if strings.TrimSpace(req.Category) != "" {
		announcement.Category = strings.ToUpper(strings.TrimSpace(req.Category))
	}
	if req.DisplayType != "" {
		announcement.DisplayType = models.DisplayType(strings.ToUpper(req.DisplayType))
	}
	if req.IsActive != nil {
		announcement.IsActive = *req.IsActive
	}

	if err := s.checkInvariants(ctx, announcement); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	s.invalidateFeeds(ctx)
	s.logger.Sugar().Infow("announcement created", "announcement_id", announcement.ID, "type", announcement.Type, "created_by", actor.UserID)
	return announcement, nil
}

// Update applies a partial update after re-checking every invariant on the merged record.
func (s *AnnouncementService) Update(ctx context.Context, actor models.Actor, id string, req UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		existing.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		existing.Content = *req.Content
	}
	if req.Type != nil {
		existing.Type = models.AnnouncementType(strings.ToUpper(*req.Type))
	}
	if req.Priority != nil {
		existing.Priority = models.AnnouncementPriority(strings.ToUpper(*req.Priority))
	}
	if req.Category != nil {
		existing.Category = strings.ToUpper(strings.TrimSpace(*req.Category))
	}
	if req.DisplayType != nil {
		existing.DisplayType = models.DisplayType(strings.ToUpper(*req.DisplayType))
	}
	if req.CourseID != nil {
		existing.CourseID = trimmedOrNil(req.CourseID)
	}
	if req.TargetRoles != nil {
		existing.TargetRoles = upperAll(req.TargetRoles)
	}
	if req.TargetUserIDs != nil {
		existing.TargetUserIDs = pq.StringArray(dedupe(req.TargetUserIDs))
	}
	if req.StartsAt != nil {
		existing.StartsAt = req.StartsAt
	} else if req.ClearStartsAt {
		existing.StartsAt = nil
	}
	if req.ExpiresAt != nil {
		existing.ExpiresAt = req.ExpiresAt
	} else if req.ClearExpiresAt {
		existing.ExpiresAt = nil
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if req.ShowAsBanner != nil {
		existing.ShowAsBanner = *req.ShowAsBanner
	}
	if req.SendEmail != nil {
		existing.SendEmail = *req.SendEmail
	}
	if req.ActionURL != nil {
		existing.ActionURL = trimmedOrNil(req.ActionURL)
	}
	if req.ActionText != nil {
		existing.ActionText = trimmedOrNil(req.ActionText)
	}
	if req.ImageURL != nil {
		existing.ImageURL = trimmedOrNil(req.ImageURL)
	}
	if req.Tags != nil {
		existing.Tags = pq.StringArray(dedupe(req.Tags))
	}

	if err := s.checkInvariants(ctx, existing); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	s.invalidateFeeds(ctx)
	return existing, nil
}

// Delete hard-deletes an announcement.
func (s *AnnouncementService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	s.invalidateFeeds(ctx)
	s.logger.Sugar().Infow("announcement deleted", "announcement_id", id, "deleted_by", actor.UserID)
	return nil
}

// ToggleActive flips the is_active flag and nothing else.
func (s *AnnouncementService) ToggleActive(ctx context.Context, actor models.Actor, id string) (*ToggleResult, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	active, err := s.repo.ToggleActive(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle announcement")
	}
	s.invalidateFeeds(ctx)
	return &ToggleResult{ID: id, IsActive: active}, nil
}

// UserFeed returns the visible announcements addressed to the caller.
func (s *AnnouncementService) UserFeed(ctx context.Context, actor models.Actor) ([]models.Announcement, error) {
	if err := Authorize(actor); err != nil {
		return nil, err
	}
	courseIDs, err := s.courses.ListEnrolledCourseIDs(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	viewer := models.Viewer{UserID: actor.UserID, Role: actor.Role, CourseIDs: courseIDs}
	candidates, err := s.repo.ListCandidates(ctx, models.AnnouncementCandidateQuery{Viewer: &viewer})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feed")
	}
	return s.visible(candidates, func(a *models.Announcement) bool { return a.TargetsViewer(viewer) }), nil
}

// PublicFeed returns visible PUBLIC_USERS announcements. No caller identity is needed.
func (s *AnnouncementService) PublicFeed(ctx context.Context) ([]models.Announcement, error) {
	query := models.AnnouncementCandidateQuery{Types: []models.AnnouncementType{models.AnnouncementTypePublicUsers}}
	candidates, err := s.cachedCandidates(ctx, feedPublic, query)
	if err != nil {
		return nil, err
	}
	return s.visible(candidates, func(a *models.Announcement) bool { return a.Type == models.AnnouncementTypePublicUsers }), nil
}

// BannerFeed returns visible announcements flagged as banners.
func (s *AnnouncementService) BannerFeed(ctx context.Context, actor models.Actor) ([]models.Announcement, error) {
	if err := Authorize(actor); err != nil {
		return nil, err
	}
	banner := true
	candidates, err := s.cachedCandidates(ctx, feedBanner, models.AnnouncementCandidateQuery{ShowAsBanner: &banner})
	if err != nil {
		return nil, err
	}
	return s.visible(candidates, func(a *models.Announcement) bool { return a.ShowAsBanner }), nil
}

// TagFeed returns visible announcements carrying any of tags.
func (s *AnnouncementService) TagFeed(ctx context.Context, actor models.Actor, tags []string) ([]models.Announcement, error) {
	if err := Authorize(actor); err != nil {
		return nil, err
	}
	tags = dedupe(tags)
	if len(tags) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one tag is required")
	}
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	key := feedTagsPrefix + strings.Join(sorted, ",")
	candidates, err := s.cachedCandidates(ctx, key, models.AnnouncementCandidateQuery{Tags: sorted})
	if err != nil {
		return nil, err
	}
	return s.visible(candidates, func(a *models.Announcement) bool { return a.HasAnyTag(sorted) }), nil
}

// Stats aggregates announcement counts for the dashboard.
func (s *AnnouncementService) Stats(ctx context.Context, actor models.Actor) (*models.AnnouncementStats, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	total, active, err := s.repo.CountByActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count announcements")
	}
	stats := &models.AnnouncementStats{Total: total, Active: active, Inactive: total - active}
	candidates, err := s.repo.ListCandidates(ctx, models.AnnouncementCandidateQuery{})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count visible announcements")
	}
	now := s.now()
	for i := range candidates {
		if candidates[i].VisibleAt(now) {
			stats.VisibleNow++
		}
	}
	groups := []struct {
		column string
		dest   *map[string]int
	}{
		{"type", &stats.ByType},
		{"priority", &stats.ByPriority},
		{"category", &stats.ByCategory},
		{"display_type", &stats.ByDisplayType},
	}
	for _, g := range groups {
		rows, err := s.repo.CountGrouped(ctx, g.column)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group announcements")
		}
		counts := make(map[string]int, len(rows))
		for _, row := range rows {
			counts[row.Key] = row.Count
		}
		*g.dest = counts
	}
	return stats, nil
}

// Export renders the filtered admin list as CSV or PDF.
func (s *AnnouncementService) Export(ctx context.Context, actor models.Actor, req AnnouncementListRequest, rawFormat string) (*ExportResult, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(rawFormat)))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export format")
	}
	filter, err := ParseAnnouncementFilter(req)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListForExport(ctx, filter, s.cfg.ExportMaxRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcements for export")
	}
	generatedAt := s.now()
	body, err := export.Render(format, announcementTable(rows, generatedAt))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportResult{
		Filename:    fmt.Sprintf("announcements-%s.%s", generatedAt.Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

func (s *AnnouncementService) load(ctx context.Context, id string) (*models.Announcement, error) {
	ann, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get announcement")
	}
	return ann, nil
}

// checkInvariants runs the type-specific rules and reference checks. Nothing is written when it fails.
func (s *AnnouncementService) checkInvariants(ctx context.Context, a *models.Announcement) error {
	if a.Title == "" {
		return appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if !a.Type.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported announcement type %q", a.Type))
	}
	if a.StartsAt != nil && a.ExpiresAt != nil && !a.ExpiresAt.After(*a.StartsAt) {
		return appErrors.Clone(appErrors.ErrValidation, "expires_at must be after starts_at")
	}

	switch a.Type {
	case models.AnnouncementTypeCourseStudents:
		if a.CourseID == nil {
			return appErrors.Clone(appErrors.ErrValidation, "course_id is required for COURSE_STUDENTS announcements")
		}
		exists, err := s.courses.Exists(ctx, *a.CourseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify course")
		}
		if !exists {
			return invalidReference("course", []string{*a.CourseID})
		}
	case models.AnnouncementTypeSpecificRoles:
		if len(a.TargetRoles) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "target_roles is required for SPECIFIC_ROLES announcements")
		}
		for _, role := range a.TargetRoles {
			if !models.UserRole(role).Valid() {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q in target_roles", role))
			}
		}
	case models.AnnouncementTypeSpecificUsers:
		if len(a.TargetUserIDs) == 0 {
			return appErrors.Clone(appErrors.ErrValidation, "target_user_ids is required for SPECIFIC_USERS announcements")
		}
		missing, err := s.users.MissingIDs(ctx, a.TargetUserIDs)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify users")
		}
		if len(missing) > 0 {
			return invalidReference("user", missing)
		}
	}
	return nil
}

func invalidReference(kind string, missing []string) error {
	return appErrors.WithDetails(appErrors.ErrInvalidReference,
		fmt.Sprintf("unknown %s id(s): %s", kind, strings.Join(missing, ", ")),
		map[string]interface{}{"resource": kind, "missing_ids": missing})
}

// cachedCandidates loads the candidate set for feed from cache or the repository.
// Only candidates are cached; visibility is always evaluated by the caller.
func (s *AnnouncementService) cachedCandidates(ctx context.Context, feed string, query models.AnnouncementCandidateQuery) ([]models.Announcement, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Candidates(ctx, feed); ok {
			return cached, nil
		}
	}
	candidates, err := s.repo.ListCandidates(ctx, query)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feed")
	}
	if s.cache != nil {
		s.cache.StoreCandidates(ctx, feed, candidates)
	}
	return candidates, nil
}

func (s *AnnouncementService) invalidateFeeds(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateFeeds(ctx)
	}
}

func (s *AnnouncementService) visible(candidates []models.Announcement, keep func(*models.Announcement) bool) []models.Announcement {
	now := s.now()
	result := make([]models.Announcement, 0, len(candidates))
	for i := range candidates {
		a := &candidates[i]
		if a.VisibleAt(now) && keep(a) {
			result = append(result, *a)
		}
	}
	models.SortAnnouncements(result)
	return result
}

// ParseAnnouncementFilter converts raw list input into a typed filter.
func ParseAnnouncementFilter(req AnnouncementListRequest) (models.AnnouncementFilter, error) {
	filter := models.AnnouncementFilter{Page: req.Page, PageSize: req.PageSize}
	var err error

	if filter.IsActive, err = parseOptionalBool("is_active", req.IsActive); err != nil {
		return filter, err
	}
	if filter.ShowAsBanner, err = parseOptionalBool("show_as_banner", req.ShowAsBanner); err != nil {
		return filter, err
	}
	if v := strings.ToUpper(strings.TrimSpace(req.Priority)); v != "" {
		p := models.AnnouncementPriority(v)
		if !p.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid priority %q", req.Priority))
		}
		filter.Priority = &p
	}
	if v := strings.ToUpper(strings.TrimSpace(req.Type)); v != "" {
		t := models.AnnouncementType(v)
		if !t.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid type %q", req.Type))
		}
		filter.Type = &t
	}
	if v := strings.ToUpper(strings.TrimSpace(req.DisplayType)); v != "" {
		d := models.DisplayType(v)
		if !d.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid display_type %q", req.DisplayType))
		}
		filter.DisplayType = &d
	}
	if v := strings.ToUpper(strings.TrimSpace(req.Category)); v != "" {
		filter.Category = &v
	}
	filter.CreatedBy = trimmedOrNil(&req.CreatedBy)
	filter.CourseID = trimmedOrNil(&req.CourseID)

	bounds := []struct {
		name string
		raw  string
		dest **time.Time
	}{
		{"expires_before", req.ExpiresBefore, &filter.ExpiresBefore},
		{"expires_after", req.ExpiresAfter, &filter.ExpiresAfter},
		{"starts_before", req.StartsBefore, &filter.StartsBefore},
		{"starts_after", req.StartsAfter, &filter.StartsAfter},
	}
	for _, b := range bounds {
		if *b.dest, err = parseOptionalTime(b.name, b.raw); err != nil {
			return filter, err
		}
	}
	filter.Tags = splitTags(req.Tags)
	return filter, nil
}

func parseOptionalBool(name, raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a boolean", name))
	}
	return &v, nil
}

func parseOptionalTime(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be RFC3339 or YYYY-MM-DD", name))
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return dedupe(strings.Split(raw, ","))
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func dedupe(values []string) []string {
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func upperAll(values []string) pq.StringArray {
	out := dedupe(values)
	for i := range out {
		out[i] = strings.ToUpper(out[i])
	}
	return pq.StringArray(out)
}

func announcementTable(rows []models.Announcement, generatedAt time.Time) export.Table {
	table := export.Table{
		Title: fmt.Sprintf("Announcements (%s)", generatedAt.Format("2006-01-02 15:04")),
		Columns: []export.Column{
			{Key: "id", Title: "ID", Weight: 2},
			{Key: "title", Title: "Title", Weight: 3},
			{Key: "type", Title: "Type", Weight: 1.5},
			{Key: "priority", Title: "Priority", Weight: 0.7},
			{Key: "category", Title: "Category", Weight: 1.2},
			{Key: "display_type", Title: "Display", Weight: 1.2},
			{Key: "is_active", Title: "Active", Weight: 0.7},
			{Key: "starts_at", Title: "Starts", Weight: 1.5},
			{Key: "expires_at", Title: "Expires", Weight: 1.5},
			{Key: "tags", Title: "Tags", Weight: 1.5},
			{Key: "created_by", Title: "Created By", Weight: 1.5},
		},
		Rows: make([]map[string]string, 0, len(rows)),
	}
	for _, a := range rows {
		createdBy := a.CreatedBy
		if a.CreatorName != nil && *a.CreatorName != "" {
			createdBy = *a.CreatorName
		}
		table.Rows = append(table.Rows, map[string]string{
			"id":           a.ID,
			"title":        a.Title,
			"type":         string(a.Type),
			"priority":     string(a.Priority),
			"category":     a.Category,
			"display_type": string(a.DisplayType),
			"is_active":    strconv.FormatBool(a.IsActive),
			"starts_at":    formatOptionalTime(a.StartsAt),
			"expires_at":   formatOptionalTime(a.ExpiresAt),
			"tags":         strings.Join(a.Tags, ", "),
			"created_by":   createdBy,
		})
	}
	return table
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
