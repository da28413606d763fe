package identity

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/bissquit/pos-identity/internal/domain"
	"github.com/bissquit/pos-identity/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Pagination constants.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Role groups used by route guards.
var (
	managementRoles = []domain.Role{domain.RoleAdmin, domain.RoleManager}
	adminRoles      = []domain.Role{domain.RoleAdmin}
)

// errorMappings maps service errors to HTTP responses.
var errorMappings = []httputil.ErrorMapping{
	{Error: ErrUserNotFound, Status: http.StatusNotFound},
	{Error: ErrUserExists, Status: http.StatusConflict},
	{Error: ErrUsernameTaken, Status: http.StatusConflict},
	{Error: ErrEmailTaken, Status: http.StatusConflict},
	{Error: ErrSelfLockout, Status: http.StatusConflict},
	{Error: domain.ErrNotAuthorized, Status: http.StatusForbidden, Message: "insufficient permissions"},
}

// callerMappings applies inside RequireRoles, where ErrUserNotFound means the
// token names a user this tenant does not know.
var callerMappings = []httputil.ErrorMapping{
	{Error: ErrUserNotFound, Status: http.StatusUnauthorized, Message: "unknown user"},
}

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	v := validator.New()
	// Report JSON field names in validation details.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		service:   service,
		validator: v,
	}
}

// RegisterRoutes registers identity routes. r must already run httputil.AuthMiddleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httputil.RequireRoles(h.service, callerMappings, domain.AllRoles()...))
		r.Get("/me", h.Me)
		r.Post("/authorize", h.Authorize)
	})

	r.Route("/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(httputil.RequireRoles(h.service, callerMappings, managementRoles...))
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Put("/{id}", h.UpdateProfile)
		})

		r.Group(func(r chi.Router) {
			r.Use(httputil.RequireRoles(h.service, callerMappings, adminRoles...))
			r.Put("/{id}/role", h.ChangeRole)
			r.Post("/{id}/deactivate", h.Deactivate)
			r.Post("/{id}/activate", h.Activate)
		})
	})
}

// CreateUserRequest represents the request body for provisioning a user.
type CreateUserRequest struct {
	ID       string `json:"id" validate:"omitempty,max=128"`
	Username string `json:"username" validate:"required,min=1,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	FullName string `json:"full_name" validate:"required,min=1,max=255"`
	Role     string `json:"role" validate:"required,oneof=admin manager waiter kitchen cashier customer"`
}

// ToInput converts the request to service input for tenantID.
func (r *CreateUserRequest) ToInput(tenantID string) ProvisionInput {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	return ProvisionInput{
		ID:       id,
		TenantID: tenantID,
		Username: r.Username,
		Email:    r.Email,
		FullName: r.FullName,
		Role:     domain.Role(r.Role),
	}
}

// UpdateProfileRequest represents the request body for a whole-profile update.
type UpdateProfileRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
	Email    string `json:"email" validate:"required,email,max=254"`
	FullName string `json:"full_name" validate:"required,min=1,max=255"`
}

// ChangeRoleRequest represents the request body for a role change.
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// AuthorizeRequest asks whether a user of the caller's tenant holds one of roles.
type AuthorizeRequest struct {
	UserID string   `json:"user_id" validate:"required"`
	Roles  []string `json:"roles" validate:"required,min=1"`
}

// AuthorizeResponse is the result of an authorization check.
type AuthorizeResponse struct {
	UserID     string `json:"user_id"`
	Authorized bool   `json:"authorized"`
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	if user, ok := callerOf(w, r); ok {
		httputil.Success(w, http.StatusOK, user)
	}
}

// CreateUser handles POST /users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	caller, ok := callerOf(w, r)
	if !ok {
		return
	}

	user, err := h.service.ProvisionAs(r.Context(), caller, req.ToInput(caller.TenantID))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, user)
}

// ListUsers handles GET /users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := UserFilter{Limit: DefaultListLimit}

	if v := q.Get("role"); v != "" {
		role, err := domain.ParseRole(v)
		if err != nil {
			httputil.ValidationError(w, err)
			return
		}
		filter.Role = &role
	}

	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "active must be true or false")
			return
		}
		filter.Active = &active
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(limit, MaxListLimit)
	}

	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = offset
	}

	users, total, err := h.service.ListUsers(r.Context(), tenantOf(r), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.List(w, users, total, filter.Limit, filter.Offset)
}

// GetUser handles GET /users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// UpdateProfile handles PUT /users/{id}.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	caller, ok := callerOf(w, r)
	if !ok {
		return
	}

	user, err := h.service.UpdateProfileAs(r.Context(), caller, chi.URLParam(r, "id"), domain.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// ChangeRole handles PUT /users/{id}/role.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req ChangeRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	caller, ok := callerOf(w, r)
	if !ok {
		return
	}

	user, err := h.service.ChangeRoleAs(r.Context(), caller, chi.URLParam(r, "id"), domain.Role(req.Role))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// Deactivate handles POST /users/{id}/deactivate.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOf(w, r)
	if !ok {
		return
	}

	user, err := h.service.DeactivateAs(r.Context(), caller, chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// Activate handles POST /users/{id}/activate.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Activate(r.Context(), tenantOf(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.Success(w, http.StatusOK, user)
}

// Authorize handles POST /authorize.
// A user that exists but fails the check yields authorized=false, not an error.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	var req AuthorizeRequest
	if !h.decode(w, r, &req) {
		return
	}

	allowed, err := domain.ParseRoleSet(req.Roles)
	if err != nil {
		httputil.ValidationError(w, err)
		return
	}

	_, err = h.service.Authorize(r.Context(), tenantOf(r), req.UserID, allowed)
	switch {
	case err == nil:
		httputil.Success(w, http.StatusOK, AuthorizeResponse{UserID: req.UserID, Authorized: true})
	case errors.Is(err, domain.ErrNotAuthorized):
		httputil.Success(w, http.StatusOK, AuthorizeResponse{UserID: req.UserID, Authorized: false})
	default:
		httputil.HandleError(r.Context(), w, err, errorMappings)
	}
}

// decode reads and validates a JSON body. It writes the error response and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httputil.ValidationError(w, err)
		return false
	}
	return true
}

// callerOf returns the user loaded by RequireRoles.
func callerOf(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user := httputil.GetUser(r.Context())
	if user == nil {
		httputil.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return user, true
}

// tenantOf returns the caller's tenant. Routes never accept a tenant from the client.
func tenantOf(r *http.Request) string {
	if user := httputil.GetUser(r.Context()); user != nil {
		return user.TenantID
	}
	p, _ := httputil.GetPrincipal(r.Context())
	return p.TenantID
}
