package identity

import (
	"context"

	"github.com/bissquit/pos-identity/internal/domain"
)

// MutateFunc derives the next state of a user from its current state.
// Returning an error aborts the mutation without writing anything.
type MutateFunc func(current domain.User) (domain.User, error)

// Repository defines the interface for identity data operations.
// Implementations enforce (tenant_id, username) and (tenant_id, email) uniqueness.
type Repository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, tenantID, id string) (*domain.User, error)
	ListUsers(ctx context.Context, tenantID string, filter UserFilter) ([]domain.User, int, error)

	// MutateUser applies fn to the stored user and persists the result.
	// Concurrent calls for the same (tenantID, id) are serialized.
	MutateUser(ctx context.Context, tenantID, id string, fn MutateFunc) (*domain.User, error)
}

// UserFilter represents filter criteria for listing users.
type UserFilter struct {
	Role   *domain.Role
	Active *bool
	Limit  int
	Offset int
}
