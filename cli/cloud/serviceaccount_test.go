package cloud

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/cloudresourcemanager/v1"
)

func newTestServiceAccountClient(t *testing.T,
	handler http.Handler) *ServiceAccountClient {
	t.Helper()

	client, err := NewServiceAccountClient(context.Background(),
		newAPIServer(t, handler)...)
	require.NoError(t, err)

	return client
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "mysite@sunny-park-123456.iam.gserviceaccount.com",
		Email("sunny-park-123456", "mysite"))
}

func TestCreateServiceAccount(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/projects/sunny-park-123456/serviceAccounts",
			r.URL.Path)
		w.Write([]byte(`{
			"email": "mysite@sunny-park-123456.iam.gserviceaccount.com"
		}`))
	})
	client := newTestServiceAccountClient(t, handler)

	email, err := client.CreateServiceAccount(context.Background(),
		"sunny-park-123456", "mysite", "Django service account")
	require.NoError(t, err)
	assert.Equal(t, "mysite@sunny-park-123456.iam.gserviceaccount.com", email)
}

func TestCreateServiceAccountExisting(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	client := newTestServiceAccountClient(t, handler)

	email, err := client.CreateServiceAccount(context.Background(),
		"sunny-park-123456", "mysite", "Django service account")
	require.NoError(t, err)
	assert.Equal(t, "mysite@sunny-park-123456.iam.gserviceaccount.com", email)
}

func TestCreateKey(t *testing.T) {
	keyFile := `{"type": "service_account", "project_id": "sunny-park-123456"}`
	email := "mysite@sunny-park-123456.iam.gserviceaccount.com"

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t,
			"/v1/projects/-/serviceAccounts/"+email+"/keys", r.URL.Path)

		response := map[string]string{
			"privateKeyData": base64.StdEncoding.EncodeToString(
				[]byte(keyFile)),
		}
		require.NoError(t, json.NewEncoder(w).Encode(response))
	})
	client := newTestServiceAccountClient(t, handler)

	key, err := client.CreateKey(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, keyFile, string(key))
}

func TestAddProjectRoles(t *testing.T) {
	email := "mysite@sunny-park-123456.iam.gserviceaccount.com"

	var updated *cloudresourcemanager.Policy
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/projects/sunny-park-123456:getIamPolicy":
			w.Write([]byte(`{
				"bindings": [
					{"role": "roles/owner",
					 "members": ["user:someone@example.com"]},
					{"role": "roles/cloudsql.client",
					 "members": ["serviceAccount:` + email + `"]}
				]
			}`))
		case "/v1/projects/sunny-park-123456:setIamPolicy":
			var request cloudresourcemanager.SetIamPolicyRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			updated = request.Policy
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	client := newTestServiceAccountClient(t, handler)

	err := client.AddProjectRoles(context.Background(), "sunny-park-123456",
		email, []string{"roles/cloudsql.client", "roles/storage.admin"})
	require.NoError(t, err)

	require.NotNil(t, updated)
	require.Len(t, updated.Bindings, 3)

	// Bindings of other members stay untouched.
	assert.Equal(t, []string{"user:someone@example.com"},
		updated.Bindings[0].Members)
	// An already granted role is not granted twice.
	assert.Equal(t, []string{"serviceAccount:" + email},
		updated.Bindings[1].Members)
	// The missing role is appended as a new binding.
	assert.Equal(t, "roles/storage.admin", updated.Bindings[2].Role)
	assert.Equal(t, []string{"serviceAccount:" + email},
		updated.Bindings[2].Members)
}

func TestAddProjectRolesNoRoles(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})
	client := newTestServiceAccountClient(t, handler)

	require.NoError(t, client.AddProjectRoles(context.Background(),
		"sunny-park-123456", "mysite@example.iam.gserviceaccount.com", nil))
}
