package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-announcement-api/internal/models"
)

const (
	announcementSelect = `SELECT a.id, a.title, a.content, a.type, a.priority, a.category, a.display_type, a.course_id,
a.target_roles, a.target_user_ids, a.starts_at, a.expires_at, a.is_active, a.show_as_banner, a.send_email,
a.action_url, a.action_text, a.image_url, a.tags, a.created_by, u.full_name AS creator_name, a.created_at, a.updated_at
FROM announcements a
LEFT JOIN users u ON u.id = a.created_by`
	announcementOrder = "ORDER BY a.priority ASC, a.created_at DESC, a.id ASC"
)

// groupableColumns whitelists the columns statistics may be grouped by.
var groupableColumns = map[string]string{
	"type":         "a.type",
	"priority":     "a.priority",
	"category":     "a.category",
	"display_type": "a.display_type",
}

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// buildAnnouncementFilterClause turns the admin filter into a WHERE clause.
// Unset fields are skipped and the rest are AND-ed.
func buildAnnouncementFilterClause(filter models.AnnouncementFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	add := func(format string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(format, len(args)+1))
		args = append(args, value)
	}

	if filter.IsActive != nil {
		add("a.is_active = $%d", *filter.IsActive)
	}
	if filter.Priority != nil {
		add("a.priority = $%d", string(*filter.Priority))
	}
	if filter.Type != nil {
		add("a.type = $%d", string(*filter.Type))
	}
	if filter.Category != nil {
		add("a.category = $%d", *filter.Category)
	}
	if filter.DisplayType != nil {
		add("a.display_type = $%d", string(*filter.DisplayType))
	}
	if filter.CreatedBy != nil {
		add("a.created_by = $%d", *filter.CreatedBy)
	}
	if filter.CourseID != nil {
		add("a.course_id = $%d", *filter.CourseID)
	}
	if filter.ExpiresBefore != nil {
		add("a.expires_at < $%d", *filter.ExpiresBefore)
	}
	if filter.ExpiresAfter != nil {
		add("a.expires_at > $%d", *filter.ExpiresAfter)
	}
	if filter.StartsBefore != nil {
		add("a.starts_at < $%d", *filter.StartsBefore)
	}
	if filter.StartsAfter != nil {
		add("a.starts_at > $%d", *filter.StartsAfter)
	}
	if len(filter.Tags) > 0 {
		add("a.tags && $%d", pq.StringArray(filter.Tags))
	}
	if filter.ShowAsBanner != nil {
		add("a.show_as_banner = $%d", *filter.ShowAsBanner)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// buildCandidateClause narrows active rows for a feed. Time bounds are left to
// the caller so visibility is decided in one place.
func buildCandidateClause(query models.AnnouncementCandidateQuery) (string, []interface{}) {
	conditions := []string{"a.is_active = TRUE"}
	var args []interface{}
	next := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(query.Types) > 0 {
		types := make([]string, 0, len(query.Types))
		for _, t := range query.Types {
			types = append(types, string(t))
		}
		conditions = append(conditions, fmt.Sprintf("a.type = ANY(%s)", next(pq.StringArray(types))))
	}
	if query.ShowAsBanner != nil {
		conditions = append(conditions, fmt.Sprintf("a.show_as_banner = %s", next(*query.ShowAsBanner)))
	}
	if len(query.Tags) > 0 {
		conditions = append(conditions, fmt.Sprintf("a.tags && %s", next(pq.StringArray(query.Tags))))
	}
	if v := query.Viewer; v != nil {
		broadcast := make([]string, 0, len(models.BroadcastAnnouncementTypes))
		for _, t := range models.BroadcastAnnouncementTypes {
			broadcast = append(broadcast, string(t))
		}
		courseIDs := v.CourseIDs
		if courseIDs == nil {
			courseIDs = []string{}
		}
		conditions = append(conditions, fmt.Sprintf(`(a.type = ANY(%s)
 OR (a.type = '%s' AND a.course_id = ANY(%s))
 OR (a.type = '%s' AND %s = ANY(a.target_roles))
 OR (a.type = '%s' AND %s = ANY(a.target_user_ids)))`,
			next(pq.StringArray(broadcast)),
			models.AnnouncementTypeCourseStudents, next(pq.StringArray(courseIDs)),
			models.AnnouncementTypeSpecificRoles, next(string(v.Role)),
			models.AnnouncementTypeSpecificUsers, next(v.UserID),
		))
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns a page of announcements matching the filter ordered by priority then recency.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	clause, args := buildAnnouncementFilterClause(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("%s%s %s LIMIT %d OFFSET %d", announcementSelect, clause, announcementOrder, size, offset)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM announcements a%s", clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// ListForExport returns up to limit rows matching the filter without paging.
func (r *AnnouncementRepository) ListForExport(ctx context.Context, filter models.AnnouncementFilter, limit int) ([]models.Announcement, error) {
	clause, args := buildAnnouncementFilterClause(filter)
	if limit <= 0 {
		limit = 5000
	}
	query := fmt.Sprintf("%s%s %s LIMIT %d", announcementSelect, clause, announcementOrder, limit)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, fmt.Errorf("export announcements: %w", err)
	}
	return announcements, nil
}

// ListCandidates returns active announcements a feed may show.
func (r *AnnouncementRepository) ListCandidates(ctx context.Context, query models.AnnouncementCandidateQuery) ([]models.Announcement, error) {
	clause, args := buildCandidateClause(query)
	stmt := fmt.Sprintf("%s%s %s", announcementSelect, clause, announcementOrder)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, stmt, args...); err != nil {
		return nil, fmt.Errorf("list announcement candidates: %w", err)
	}
	return announcements, nil
}

// ListScheduledEmail returns active EMAIL announcements starting inside
// [windowStart, windowEnd) that have not expired at now.
func (r *AnnouncementRepository) ListScheduledEmail(ctx context.Context, windowStart, windowEnd, now time.Time) ([]models.Announcement, error) {
	query := announcementSelect + `
WHERE a.is_active = TRUE AND a.display_type = $1
AND a.starts_at >= $2 AND a.starts_at < $3
AND (a.expires_at IS NULL OR a.expires_at > $4)`
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, string(models.DisplayTypeEmail), windowStart, windowEnd, now); err != nil {
		return nil, fmt.Errorf("list scheduled email announcements: %w", err)
	}
	return announcements, nil
}

// GetByID returns an announcement by identifier.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := announcementSelect + " WHERE a.id = $1"
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now
	normalizeArrays(announcement)
	query := `INSERT INTO announcements (id, title, content, type, priority, category, display_type, course_id, target_roles, target_user_ids,
starts_at, expires_at, is_active, show_as_banner, send_email, action_url, action_text, image_url, tags, created_by, created_at, updated_at)
VALUES (:id, :title, :content, :type, :priority, :category, :display_type, :course_id, :target_roles, :target_user_ids,
:starts_at, :expires_at, :is_active, :show_as_banner, :send_email, :action_url, :action_text, :image_url, :tags, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update modifies an existing announcement.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	normalizeArrays(announcement)
	query := `UPDATE announcements SET title = :title, content = :content, type = :type, priority = :priority, category = :category,
display_type = :display_type, course_id = :course_id, target_roles = :target_roles, target_user_ids = :target_user_ids,
starts_at = :starts_at, expires_at = :expires_at, is_active = :is_active, show_as_banner = :show_as_banner, send_email = :send_email,
action_url = :action_url, action_text = :action_text, image_url = :image_url, tags = :tags, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, announcement)
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return requireAffected(res)
}

// ToggleActive flips is_active and returns the new value.
func (r *AnnouncementRepository) ToggleActive(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE announcements SET is_active = NOT is_active, updated_at = $2 WHERE id = $1 RETURNING is_active`
	var active bool
	if err := r.db.GetContext(ctx, &active, query, id, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return false, err
		}
		return false, fmt.Errorf("toggle announcement: %w", err)
	}
	return active, nil
}

// Delete removes an announcement. It returns sql.ErrNoRows when nothing was deleted.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return requireAffected(res)
}

// CountByActive returns the total and active counts.
func (r *AnnouncementRepository) CountByActive(ctx context.Context) (total int, active int, err error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE is_active) AS active FROM announcements`
	var row struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("count announcements: %w", err)
	}
	return row.Total, row.Active, nil
}

// CountGrouped returns announcement counts grouped by one of type, priority, category or display_type.
func (r *AnnouncementRepository) CountGrouped(ctx context.Context, column string) ([]models.GroupCount, error) {
	col, ok := groupableColumns[column]
	if !ok {
		return nil, fmt.Errorf("count announcements: unsupported group column %q", column)
	}
	query := fmt.Sprintf("SELECT %s AS key, COUNT(*) AS count FROM announcements a GROUP BY %s ORDER BY %s", col, col, col)
	var rows []models.GroupCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("count announcements by %s: %w", column, err)
	}
	return rows, nil
}

func normalizeArrays(a *models.Announcement) {
	if a.TargetRoles == nil {
		a.TargetRoles = pq.StringArray{}
	}
	if a.TargetUserIDs == nil {
		a.TargetUserIDs = pq.StringArray{}
	}
	if a.Tags == nil {
		a.Tags = pq.StringArray{}
	}
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
