// Package identity provides tenant-scoped user provisioning, lifecycle and authorization.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/pos-identity/internal/domain"
	"github.com/bissquit/pos-identity/internal/pkg/ctxlog"
)

// UserProvisionedHook is called after a user is created.
type UserProvisionedHook interface {
	OnUserProvisioned(ctx context.Context, user *domain.User) error
}

// Service implements identity business logic.
type Service struct {
	repo Repository
	hook UserProvisionedHook
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithProvisionedHook registers a hook called after each successful Provision.
func WithProvisionedHook(hook UserProvisionedHook) Option {
	return func(s *Service) {
		s.hook = hook
	}
}

// NewService creates a new identity service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProvisionInput holds data for provisioning a user.
type ProvisionInput struct {
	ID       string
	TenantID string
	Username string
	Email    string
	FullName string
	Role     domain.Role
}

// Provision creates a new active user.
func (s *Service) Provision(ctx context.Context, input ProvisionInput) (*domain.User, error) {
	user, err := domain.NewUser(domain.NewUserParams{
		ID:       input.ID,
		Username: input.Username,
		Email:    input.Email,
		FullName: input.FullName,
		Role:     input.Role,
		TenantID: input.TenantID,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateUser(ctx, &user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("user provisioned",
		"provisioned_user_id", user.ID,
		"role", user.Role,
	)

	if s.hook != nil {
		if err := s.hook.OnUserProvisioned(ctx, &user); err != nil {
			logger.Warn("user provisioned hook failed",
				"provisioned_user_id", user.ID,
				"error", err,
			)
		}
	}

	return &user, nil
}

// GetUser returns a user of the tenant.
func (s *Service) GetUser(ctx context.Context, tenantID, id string) (*domain.User, error) {
	user, err := s.repo.GetUser(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListUsers returns a page of the tenant's users and the total count matching filter.
func (s *Service) ListUsers(ctx context.Context, tenantID string, filter UserFilter) ([]domain.User, int, error) {
	if filter.Role != nil && !filter.Role.IsValid() {
		_, err := domain.ParseRole(string(*filter.Role))
		return nil, 0, err
	}

	users, total, err := s.repo.ListUsers(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// UpdateProfile replaces the username, email and full name of a user.
func (s *Service) UpdateProfile(ctx context.Context, tenantID, id string, update domain.ProfileUpdate) (*domain.User, error) {
	return s.mutate(ctx, tenantID, id, "update profile", func(u domain.User) (domain.User, error) {
		return u.UpdateProfile(update, s.now())
	})
}

// ChangeRole assigns newRole to a user.
func (s *Service) ChangeRole(ctx context.Context, tenantID, id string, newRole domain.Role) (*domain.User, error) {
	// Reject before touching storage.
	if !newRole.IsValid() {
		_, err := domain.ParseRole(string(newRole))
		return nil, err
	}
	return s.mutate(ctx, tenantID, id, "change role", func(u domain.User) (domain.User, error) {
		return u.ChangeRole(newRole, s.now())
	})
}

// Deactivate soft-deletes a user.
func (s *Service) Deactivate(ctx context.Context, tenantID, id string) (*domain.User, error) {
	return s.mutate(ctx, tenantID, id, "deactivate user", func(u domain.User) (domain.User, error) {
		return u.Deactivate(s.now()), nil
	})
}

// Activate reactivates a soft-deleted user.
func (s *Service) Activate(ctx context.Context, tenantID, id string) (*domain.User, error) {
	return s.mutate(ctx, tenantID, id, "activate user", func(u domain.User) (domain.User, error) {
		return u.Activate(s.now()), nil
	})
}

// ProvisionAs creates a user on behalf of actor, inside actor's tenant.
// Only admins may provision admins.
func (s *Service) ProvisionAs(ctx context.Context, actor *domain.User, input ProvisionInput) (*domain.User, error) {
	input.TenantID = actor.TenantID
	if input.Role.IsValid() && !domain.CanManage(actor.Role, input.Role) {
		return nil, fmt.Errorf("provision %s: %w", input.Role, domain.ErrNotAuthorized)
	}
	return s.Provision(ctx, input)
}

// UpdateProfileAs edits a profile on behalf of actor. The target's role is
// checked under the row lock, so only admins edit admins.
func (s *Service) UpdateProfileAs(ctx context.Context, actor *domain.User, id string, update domain.ProfileUpdate) (*domain.User, error) {
	return s.mutate(ctx, actor.TenantID, id, "update profile", func(u domain.User) (domain.User, error) {
		if !domain.CanManage(actor.Role, u.Role) {
			return domain.User{}, domain.ErrNotAuthorized
		}
		return u.UpdateProfile(update, s.now())
	})
}

// ChangeRoleAs assigns newRole on behalf of actor. An actor cannot change
// their own role; with a single admin that would leave the tenant without one.
func (s *Service) ChangeRoleAs(ctx context.Context, actor *domain.User, id string, newRole domain.Role) (*domain.User, error) {
	if newRole.IsValid() && id == actor.ID && newRole != actor.Role {
		return nil, ErrSelfLockout
	}
	return s.ChangeRole(ctx, actor.TenantID, id, newRole)
}

// DeactivateAs deactivates a user on behalf of actor. Self-deactivation is refused.
func (s *Service) DeactivateAs(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if id == actor.ID {
		return nil, ErrSelfLockout
	}
	return s.Deactivate(ctx, actor.TenantID, id)
}

// Authorize loads a user and checks it against allowed.
// Returns the user on success, domain.ErrNotAuthorized when the check fails.
func (s *Service) Authorize(ctx context.Context, tenantID, userID string, allowed domain.RoleSet) (*domain.User, error) {
	user, err := s.repo.GetUser(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			recordAuthorization(outcomeUnknownUser)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.IsAuthorized(allowed) {
		if !user.IsActive {
			recordAuthorization(outcomeInactive)
		} else {
			recordAuthorization(outcomeDenied)
		}
		return user, domain.ErrNotAuthorized
	}

	recordAuthorization(outcomeAllowed)
	return user, nil
}

func (s *Service) mutate(ctx context.Context, tenantID, id, action string, fn MutateFunc) (*domain.User, error) {
	user, err := s.repo.MutateUser(ctx, tenantID, id, fn)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation),
			errors.Is(err, domain.ErrNotAuthorized),
			errors.Is(err, ErrSelfLockout),
			errors.Is(err, ErrUserNotFound),
			errors.Is(err, ErrUsernameTaken),
			errors.Is(err, ErrEmailTaken):
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	ctxlog.FromContext(ctx).Info("user updated",
		slog.String("action", action),
		slog.String("target_user_id", id),
	)
	return user, nil
}
