package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-announcement-api/internal/models"
)

const userSelect = `SELECT id, email, full_name, role, active, created_at, updated_at FROM users`

// UserRepository is the read side of the user directory.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// ListActive returns every active user.
func (r *UserRepository) ListActive(ctx context.Context) ([]models.User, error) {
	query := userSelect + " WHERE active = TRUE ORDER BY created_at ASC, id ASC"
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListActiveByRoles returns active users holding any of the roles.
func (r *UserRepository) ListActiveByRoles(ctx context.Context, roles []models.UserRole) ([]models.User, error) {
	if len(roles) == 0 {
		return []models.User{}, nil
	}
	values := make([]string, 0, len(roles))
	for _, role := range roles {
		values = append(values, string(role))
	}
	query := userSelect + " WHERE active = TRUE AND role = ANY($1) ORDER BY created_at ASC, id ASC"
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.StringArray(values)); err != nil {
		return nil, fmt.Errorf("list users by roles: %w", err)
	}
	return users, nil
}

// ListActiveByIDs returns active users whose id is in ids.
func (r *UserRepository) ListActiveByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	query := userSelect + " WHERE active = TRUE AND id = ANY($1) ORDER BY created_at ASC, id ASC"
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("list users by ids: %w", err)
	}
	return users, nil
}

// MissingIDs returns the ids that have no matching user, in input order.
func (r *UserRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	if err := r.db.SelectContext(ctx, &found, "SELECT id FROM users WHERE id = ANY($1)", pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("lookup user ids: %w", err)
	}
	return missingFrom(ids, found), nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func missingFrom(requested, found []string) []string {
	present := make(map[string]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []string
	seen := make(map[string]struct{}, len(requested))
	for _, id := range requested {
		if _, ok := present[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing
}
