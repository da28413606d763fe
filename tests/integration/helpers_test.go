//go:build integration

package integration

import (
	"context"
	"net/http"
	"testing"

	"github.com/bissquit/pos-identity/internal/domain"
	"github.com/bissquit/pos-identity/internal/identity"
	identitypostgres "github.com/bissquit/pos-identity/internal/identity/postgres"
	"github.com/bissquit/pos-identity/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newTenant returns a tenant id no other test uses.
func newTenant() string {
	return "tenant-" + uuid.NewString()[:8]
}

func newRepository() *identitypostgres.Repository {
	return identitypostgres.NewRepository(testDB)
}

// seedUser provisions a user directly through the service, bypassing HTTP.
// The first admin of a tenant has to come from somewhere.
func seedUser(t *testing.T, tenantID, username string, role domain.Role) *domain.User {
	t.Helper()

	svc := identity.NewService(newRepository())
	user, err := svc.Provision(context.Background(), identity.ProvisionInput{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Username: username,
		Email:    username + "@pos.example.com",
		FullName: "Seeded " + username,
		Role:     role,
	})
	require.NoError(t, err)
	return user
}

// clientAs returns a validating client that carries a token for user.
func clientAs(t *testing.T, user *domain.User) *testutil.Client {
	t.Helper()
	return newTestClient(t).As(t, testSigner.Sign(t, user.ID, user.TenantID))
}

// createUser provisions a user over HTTP and returns it.
func createUser(t *testing.T, client *testutil.Client, username string, role domain.Role) domain.User {
	t.Helper()

	resp, err := client.POST("/api/v1/users", map[string]string{
		"username":  username,
		"email":     username + "@pos.example.com",
		"full_name": "User " + username,
		"role":      string(role),
	})
	require.NoError(t, err)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create user %s: status=%d body=%s", username, resp.StatusCode, testutil.ReadBody(t, resp))
	}

	return decodeUser(t, resp)
}

func decodeUser(t *testing.T, resp *http.Response) domain.User {
	t.Helper()
	var result struct {
		Data domain.User `json:"data"`
	}
	testutil.DecodeJSON(t, resp, &result)
	return result.Data
}
