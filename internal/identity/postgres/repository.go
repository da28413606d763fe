// Package postgres provides PostgreSQL implementation of the identity repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bissquit/pos-identity/internal/domain"
	"github.com/bissquit/pos-identity/internal/identity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Constraint names from migrations/000001_create_users.up.sql.
const (
	constraintPrimaryKey = "users_pkey"
	constraintUsername   = "users_tenant_username_key"
	constraintEmail      = "users_tenant_email_key"
)

const userColumns = `id, tenant_id, username, email, full_name, role, is_active, created_at, updated_at`

// Repository implements identity.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateUser inserts a user. created_at and updated_at are read back at database precision.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (
			id, tenant_id, username, email, full_name, role, is_active,
			username_key, email_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.TenantID,
		user.Username,
		user.Email,
		user.FullName,
		user.Role,
		user.IsActive,
		user.UsernameKey(),
		user.EmailKey(),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by tenant and id.
func (r *Repository) GetUser(ctx context.Context, tenantID, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND id = $2`

	user, err := scanUser(r.db.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListUsers retrieves a page of users ordered by username and the total matching count.
func (r *Repository) ListUsers(ctx context.Context, tenantID string, filter identity.UserFilter) ([]domain.User, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{tenantID}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY username_key, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

// MutateUser locks the user row, applies fn and writes the whole record back.
// id and tenant_id are never written.
func (r *Repository) MutateUser(ctx context.Context, tenantID, id string, fn identity.MutateFunc) (*domain.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	selectQuery := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	current, err := scanUser(tx.QueryRow(ctx, selectQuery, tenantID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}

	next, err := fn(*current)
	if err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE users
		SET username = $3, email = $4, full_name = $5, role = $6, is_active = $7,
		    username_key = $8, email_key = $9, updated_at = $10
		WHERE tenant_id = $1 AND id = $2
		RETURNING updated_at
	`
	err = tx.QueryRow(ctx, updateQuery,
		current.TenantID,
		current.ID,
		next.Username,
		next.Email,
		next.FullName,
		next.Role,
		next.IsActive,
		next.UsernameKey(),
		next.EmailKey(),
		next.UpdatedAt,
	).Scan(&next.UpdatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	next.ID = current.ID
	next.TenantID = current.TenantID
	next.CreatedAt = current.CreatedAt
	return &next, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.TenantID,
		&user.Username,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case constraintPrimaryKey:
		return identity.ErrUserExists
	case constraintUsername:
		return identity.ErrUsernameTaken
	case constraintEmail:
		return identity.ErrEmailTaken
	}
	return nil
}
