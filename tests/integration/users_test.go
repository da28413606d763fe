//go:build integration

package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/bissquit/pos-identity/internal/domain"
	"github.com/bissquit/pos-identity/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_ProvisionAndGet(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	client := clientAs(t, admin)

	created := createUser(t, client, "alice", domain.RoleManager)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, tenant, created.TenantID)
	assert.True(t, created.IsActive)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	resp, err := client.GET("/api/v1/users/" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fetched := decodeUser(t, resp)
	assert.Equal(t, created.Username, fetched.Username)
	assert.Equal(t, domain.RoleManager, fetched.Role)
	assert.True(t, created.CreatedAt.Equal(fetched.CreatedAt))
}

func TestUsers_Me(t *testing.T) {
	tenant := newTenant()
	waiter := seedUser(t, tenant, "wes", domain.RoleWaiter)

	resp, err := clientAs(t, waiter).GET("/api/v1/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	me := decodeUser(t, resp)
	assert.Equal(t, waiter.ID, me.ID)
	assert.Equal(t, domain.RoleWaiter, me.Role)
}

func TestUsers_Authentication(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)

	t.Run("missing token", func(t *testing.T) {
		resp, err := newTestClient(t).GET("/api/v1/me")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged := testutil.TokenSigner{Secret: "other", Issuer: testIssuer, Audience: testAudience}
		resp, err := newTestClient(t).As(t, forged.Sign(t, admin.ID, tenant)).GET("/api/v1/me")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("user from another tenant", func(t *testing.T) {
		resp, err := newTestClient(t).As(t, testSigner.Sign(t, admin.ID, newTenant())).GET("/api/v1/me")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestUsers_RoleGates(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	manager := seedUser(t, tenant, "mara", domain.RoleManager)
	cashier := seedUser(t, tenant, "cass", domain.RoleCashier)

	target := createUser(t, clientAs(t, admin), "kit", domain.RoleKitchen)

	tests := []struct {
		name   string
		caller *domain.User
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"manager lists users", manager, http.MethodGet, "/api/v1/users", nil, http.StatusOK},
		{"cashier cannot list users", cashier, http.MethodGet, "/api/v1/users", nil, http.StatusForbidden},
		{"manager cannot change roles", manager, http.MethodPut, "/api/v1/users/" + target.ID + "/role", map[string]string{"role": "admin"}, http.StatusForbidden},
		{"manager cannot deactivate", manager, http.MethodPost, "/api/v1/users/" + target.ID + "/deactivate", nil, http.StatusForbidden},
		{"admin changes role", admin, http.MethodPut, "/api/v1/users/" + target.ID + "/role", map[string]string{"role": "cashier"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := clientAs(t, tt.caller)

			var resp *http.Response
			var err error
			switch tt.method {
			case http.MethodGet:
				resp, err = client.GET(tt.path)
			case http.MethodPut:
				resp, err = client.PUT(tt.path, tt.body)
			default:
				resp, err = client.POST(tt.path, tt.body)
			}
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestUsers_Uniqueness(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	client := clientAs(t, admin)

	createUser(t, client, "alice", domain.RoleWaiter)

	t.Run("username differs only in case", func(t *testing.T) {
		resp, err := client.POST("/api/v1/users", map[string]string{
			"username":  "ALICE",
			"email":     "other@pos.example.com",
			"full_name": "Other Alice",
			"role":      "waiter",
		})
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("email taken", func(t *testing.T) {
		resp, err := client.POST("/api/v1/users", map[string]string{
			"username":  "alicia",
			"email":     "alice@pos.example.com",
			"full_name": "Alicia",
			"role":      "waiter",
		})
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("same username in another tenant", func(t *testing.T) {
		otherAdmin := seedUser(t, newTenant(), "root", domain.RoleAdmin)
		created := createUser(t, clientAs(t, otherAdmin), "alice", domain.RoleWaiter)
		assert.Equal(t, otherAdmin.TenantID, created.TenantID)
	})
}

func TestUsers_Validation(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	client := newTestClientWithoutValidation().As(t, testSigner.Sign(t, admin.ID, tenant))

	resp, err := client.POST("/api/v1/users", map[string]string{
		"username":  "bob",
		"email":     "bob@pos.example.com",
		"full_name": "Bob",
		"role":      "owner",
	})
	require.NoError(t, err)
	body := testutil.ReadBody(t, resp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.True(t, strings.Contains(body, `"role"`), body)
}

func TestUsers_ListFilters(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	client := clientAs(t, admin)

	createUser(t, client, "w1", domain.RoleWaiter)
	w2 := createUser(t, client, "w2", domain.RoleWaiter)
	createUser(t, client, "k1", domain.RoleKitchen)

	resp, err := client.POST("/api/v1/users/"+w2.ID+"/deactivate", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	var page struct {
		Data []domain.User `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}

	resp, err = client.GET("/api/v1/users?role=waiter&active=true")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &page)

	require.Len(t, page.Data, 1)
	assert.Equal(t, "w1", page.Data[0].Username)
	assert.Equal(t, 1, page.Meta.Total)

	resp, err = client.GET("/api/v1/users?limit=2")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &page)

	assert.Len(t, page.Data, 2)
	assert.Equal(t, 4, page.Meta.Total)
	assert.Equal(t, "k1", page.Data[0].Username)
}

func TestUsers_UpdateProfile(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	manager := seedUser(t, tenant, "mara", domain.RoleManager)
	target := createUser(t, clientAs(t, admin), "bob", domain.RoleCashier)

	resp, err := clientAs(t, manager).PUT("/api/v1/users/"+target.ID, map[string]string{
		"username":  "robert",
		"email":     "robert@pos.example.com",
		"full_name": "Robert B",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decodeUser(t, resp)
	assert.Equal(t, "robert", updated.Username)
	assert.Equal(t, domain.RoleCashier, updated.Role)
	assert.True(t, updated.UpdatedAt.After(target.UpdatedAt))
	assert.True(t, updated.CreatedAt.Equal(target.CreatedAt))

	// Old username is free again.
	createUser(t, clientAs(t, admin), "bob", domain.RoleCashier)
}

func TestUsers_DeactivateIsIdempotent(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	client := clientAs(t, admin)
	target := createUser(t, client, "wes", domain.RoleWaiter)

	for i := 0; i < 2; i++ {
		resp, err := client.POST("/api/v1/users/"+target.ID+"/deactivate", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, decodeUser(t, resp).IsActive)
	}

	resp, err := client.POST("/api/v1/users/"+target.ID+"/activate", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeUser(t, resp).IsActive)
}

func TestUsers_DeactivatedCallerIsForbidden(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	manager := seedUser(t, tenant, "mara", domain.RoleManager)

	resp, err := clientAs(t, admin).POST("/api/v1/users/"+manager.ID+"/deactivate", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Same token as before deactivation.
	resp, err = clientAs(t, manager).GET("/api/v1/users")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUsers_CrossTenantIsNotFound(t *testing.T) {
	tenantA := newTenant()
	adminA := seedUser(t, tenantA, "root", domain.RoleAdmin)
	adminB := seedUser(t, newTenant(), "root", domain.RoleAdmin)
	victim := createUser(t, clientAs(t, adminA), "alice", domain.RoleWaiter)

	client := clientAs(t, adminB)

	resp, err := client.GET("/api/v1/users/" + victim.ID)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = client.POST("/api/v1/users/"+victim.ID+"/deactivate", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	got, err := newRepository().GetUser(t.Context(), tenantA, victim.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestUsers_OnlyAdminsManageAdmins(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	manager := seedUser(t, tenant, "mara", domain.RoleManager)
	client := clientAs(t, manager)

	resp, err := client.POST("/api/v1/users", map[string]string{
		"username":  "mallory",
		"email":     "mallory@pos.example.com",
		"full_name": "Mallory",
		"role":      "admin",
	})
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err = client.PUT("/api/v1/users/"+admin.ID, map[string]string{
		"username":  "root",
		"email":     "mallory@pos.example.com",
		"full_name": "Root",
	})
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	got, err := newRepository().GetUser(t.Context(), tenant, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.Email, got.Email)
}

func TestUsers_AdminCannotLockThemselvesOut(t *testing.T) {
	tenant := newTenant()
	admin := seedUser(t, tenant, "root", domain.RoleAdmin)
	client := clientAs(t, admin)

	resp, err := client.PUT("/api/v1/users/"+admin.ID+"/role", map[string]string{"role": "manager"})
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = client.POST("/api/v1/users/"+admin.ID+"/deactivate", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	got, err := newRepository().GetUser(t.Context(), tenant, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.True(t, got.IsActive)
}
