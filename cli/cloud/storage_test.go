package cloud

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorageClient(t *testing.T, handler http.Handler) *StorageClient {
	t.Helper()

	client, err := NewStorageClient(context.Background(),
		newAPIServer(t, handler)...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func TestEnsureBucketExisting(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected %s request to %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"name": "assets"}`))
	})
	client := newTestStorageClient(t, handler)

	require.NoError(t, client.EnsureBucket(context.Background(),
		"sunny-park-123456", "assets"))
}

func TestEnsureBucketCreates(t *testing.T) {
	var created bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "sunny-park-123456", r.URL.Query().Get("project"))
		created = true
		w.Write([]byte(`{"name": "assets"}`))
	})
	client := newTestStorageClient(t, handler)

	require.NoError(t, client.EnsureBucket(context.Background(),
		"sunny-park-123456", "assets"))
	assert.True(t, created)
}

func TestMakePublic(t *testing.T) {
	var update string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/b/assets/iam"),
			"unexpected path %s", r.URL.Path)

		if r.Method == http.MethodGet {
			w.Write([]byte(`{
				"bindings": [
					{"role": "roles/storage.admin",
					 "members": ["projectEditor:sunny-park-123456"]}
				]
			}`))
			return
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		update = string(body)
		w.Write([]byte(`{}`))
	})
	client := newTestStorageClient(t, handler)

	require.NoError(t, client.MakePublic(context.Background(), "assets"))
	assert.Contains(t, update, "allUsers")
	assert.Contains(t, update, "roles/storage.objectViewer")
	assert.Contains(t, update, "roles/storage.admin")
}

func TestUploadObject(t *testing.T) {
	var body string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload/storage/v1/b/assets/o", r.URL.Path)

		content, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body = string(content)
		w.Write([]byte(`{"name": "static/site.css"}`))
	})
	client := newTestStorageClient(t, handler)

	err := client.UploadObject(context.Background(), "assets",
		"static/site.css", strings.NewReader("body { margin: 0; }"))
	require.NoError(t, err)

	// The multipart body carries the object name and the content.
	assert.Contains(t, body, `"name":"static/site.css"`)
	assert.Contains(t, body, "body { margin: 0; }")
}

func TestUploadDirectory(t *testing.T) {
	staticDir := t.TempDir()
	require.NoError(t,
		os.MkdirAll(filepath.Join(staticDir, "css"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "css",
		"site.css"), []byte("body {}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "robots.txt"),
		[]byte("User-agent: *"), 0644))

	var uploads []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload/storage/v1/b/assets/o", r.URL.Path)

		content, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		uploads = append(uploads, string(content))
		w.Write([]byte(`{}`))
	})
	client := newTestStorageClient(t, handler)

	err := client.UploadDirectory(context.Background(), "assets", "static",
		staticDir)
	require.NoError(t, err)

	require.Len(t, uploads, 2)
	all := strings.Join(uploads, "\n")
	assert.Contains(t, all, `"name":"static/css/site.css"`)
	assert.Contains(t, all, `"name":"static/robots.txt"`)
}
