package cloud

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/sqladmin/v1beta4"
)

func newTestSQLClient(t *testing.T, handler http.Handler) *SQLClient {
	t.Helper()

	client, err := NewSQLClient(context.Background(),
		newAPIServer(t, handler)...)
	require.NoError(t, err)
	client.operationAttempts = 5
	client.operationInterval = time.Millisecond

	return client
}

func TestCreateInstance(t *testing.T) {
	var polls int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sql/v1beta4/projects/sunny-park-123456/instances":
			var instance sqladmin.DatabaseInstance
			require.NoError(t, json.NewDecoder(r.Body).Decode(&instance))
			assert.Equal(t, "mysite-instance", instance.Name)
			assert.Equal(t, "us-west1", instance.Region)
			assert.Equal(t, "POSTGRES_9_6", instance.DatabaseVersion)
			assert.Equal(t, "db-f1-micro", instance.Settings.Tier)

			w.Write([]byte(`{"name": "op-create-instance"}`))
		case "/sql/v1beta4/projects/sunny-park-123456/operations/op-create-instance":
			if atomic.AddInt32(&polls, 1) < 3 {
				w.Write([]byte(
					`{"name": "op-create-instance", "status": "RUNNING"}`))
				return
			}
			w.Write([]byte(
				`{"name": "op-create-instance", "status": "DONE"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	client := newTestSQLClient(t, handler)

	err := client.CreateInstance(context.Background(), "sunny-park-123456",
		"mysite-instance", "us-west1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&polls))
}

func TestCreateInstanceExisting(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	client := newTestSQLClient(t, handler)

	require.NoError(t, client.CreateInstance(context.Background(),
		"sunny-park-123456", "mysite-instance", "us-west1"))
}

func TestConnectionName(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t,
			"/sql/v1beta4/projects/sunny-park-123456/instances/mysite-instance",
			r.URL.Path)
		w.Write([]byte(`{
			"name": "mysite-instance",
			"connectionName": "sunny-park-123456:us-west1:mysite-instance"
		}`))
	})
	client := newTestSQLClient(t, handler)

	name, err := client.ConnectionName(context.Background(),
		"sunny-park-123456", "mysite-instance")
	require.NoError(t, err)
	assert.Equal(t, "sunny-park-123456:us-west1:mysite-instance", name)
}

func TestCreateDatabase(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sql/v1beta4/projects/sunny-park-123456/instances/mysite-instance/databases":
			var database sqladmin.Database
			require.NoError(t, json.NewDecoder(r.Body).Decode(&database))
			assert.Equal(t, "mysite-db", database.Name)

			w.Write([]byte(`{"name": "op-create-db"}`))
		case "/sql/v1beta4/projects/sunny-park-123456/operations/op-create-db":
			w.Write([]byte(`{"name": "op-create-db", "status": "DONE"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	client := newTestSQLClient(t, handler)

	require.NoError(t, client.CreateDatabase(context.Background(),
		"sunny-park-123456", "mysite-instance", "mysite-db"))
}

func TestSetUserPassword(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sql/v1beta4/projects/sunny-park-123456/instances/mysite-instance/users":
			require.Equal(t, http.MethodPut, r.Method)
			require.Equal(t, "postgres", r.URL.Query().Get("name"))

			var user sqladmin.User
			require.NoError(t, json.NewDecoder(r.Body).Decode(&user))
			assert.Equal(t, "postgres", user.Name)
			assert.Equal(t, "hunter22", user.Password)

			w.Write([]byte(`{"name": "op-user"}`))
		case "/sql/v1beta4/projects/sunny-park-123456/operations/op-user":
			w.Write([]byte(`{"name": "op-user", "status": "DONE"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	client := newTestSQLClient(t, handler)

	require.NoError(t, client.SetUserPassword(context.Background(),
		"sunny-park-123456", "mysite-instance", DatabaseUser, "hunter22"))
}

func TestSQLOperationFails(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sql/v1beta4/projects/sunny-park-123456/instances" {
			w.Write([]byte(`{"name": "op-create-instance"}`))
			return
		}
		w.Write([]byte(`{
			"name": "op-create-instance",
			"status": "DONE",
			"error": {"errors": [{"message": "quota exceeded"}]}
		}`))
	})
	client := newTestSQLClient(t, handler)

	err := client.CreateInstance(context.Background(), "sunny-park-123456",
		"mysite-instance", "us-west1")
	assert.ErrorContains(t, err, "sql operation failed: quota exceeded")
}
