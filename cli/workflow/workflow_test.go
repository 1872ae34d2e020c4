package workflow

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/django-cloud/dcd/cli/config"
	"github.com/django-cloud/dcd/cli/console"
	"github.com/django-cloud/dcd/cli/dcdlog"
	"github.com/django-cloud/dcd/cli/deploy"
)

const testKeyFile = `{"type": "service_account", "project_id": "sunny-park-123456"}`

type silentReader struct{}

func (silentReader) ReadLine() (string, error)     { return "", io.EOF }
func (silentReader) ReadPassword() (string, error) { return "", io.EOF }

func newFlowConsole() (*console.Console, *bytes.Buffer) {
	var out bytes.Buffer
	return console.New(silentReader{}, &out, &out), &out
}

// apiRecorder implements every Google API endpoint a deployment flow talks
// to and records what was provisioned.
type apiRecorder struct {
	// projectExists makes the project visible before creation.
	projectExists bool
	// billingEnabled reports billing as already enabled.
	billingEnabled bool

	projectCreated  bool
	billingLinked   bool
	enabledServices []string
	instanceName    string
	databaseName    string
	userPassword    string
	accountIDs      []string
	boundRoles      []string
	mintedKeys      int
	uploads         []string
}

func (rec *apiRecorder) handler(t *testing.T) http.HandlerFunc {
	keyData := base64.StdEncoding.EncodeToString([]byte(testKeyFile))

	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch {
		// Resource manager.
		case r.Method == http.MethodPost && path == "/v1/projects":
			rec.projectCreated = true
			w.Write([]byte(`{"name": "operations/cp.1"}`))
		case r.Method == http.MethodGet &&
			path == "/v1/projects/sunny-park-123456":
			if !rec.projectExists && !rec.projectCreated {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write([]byte(`{"projectId": "sunny-park-123456"}`))

		// Billing.
		case path == "/v1/projects/sunny-park-123456/billingInfo":
			if r.Method == http.MethodPut {
				rec.billingLinked = true
				w.Write([]byte(`{"billingEnabled": true}`))
				return
			}
			fmt.Fprintf(w, `{"billingEnabled": %t}`, rec.billingEnabled)

		// Service usage.
		case path == "/v1/projects/sunny-park-123456/services:batchEnable":
			var request struct {
				ServiceIds []string `json:"serviceIds"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			rec.enabledServices = request.ServiceIds
			w.Write([]byte(`{"name": "operations/enable.1"}`))
		case path == "/v1/operations/enable.1":
			w.Write([]byte(`{"name": "operations/enable.1", "done": true}`))

		// IAM.
		case r.Method == http.MethodPost &&
			path == "/v1/projects/sunny-park-123456/serviceAccounts":
			var request struct {
				AccountId string `json:"accountId"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			rec.accountIDs = append(rec.accountIDs, request.AccountId)
			fmt.Fprintf(w,
				`{"email": "%s@sunny-park-123456.iam.gserviceaccount.com"}`,
				request.AccountId)
		case strings.HasSuffix(path, "/keys"):
			rec.mintedKeys++
			fmt.Fprintf(w, `{"privateKeyData": "%s"}`, keyData)
		case path == "/v1/projects/sunny-park-123456:getIamPolicy":
			w.Write([]byte(`{"bindings": []}`))
		case path == "/v1/projects/sunny-park-123456:setIamPolicy":
			var request struct {
				Policy struct {
					Bindings []struct {
						Role string `json:"role"`
					} `json:"bindings"`
				} `json:"policy"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			for _, binding := range request.Policy.Bindings {
				rec.boundRoles = append(rec.boundRoles, binding.Role)
			}
			w.Write([]byte(`{}`))

		// Cloud SQL.
		case r.Method == http.MethodPost &&
			path == "/sql/v1beta4/projects/sunny-park-123456/instances":
			var request struct {
				Name string `json:"name"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			rec.instanceName = request.Name
			w.Write([]byte(`{"name": "op-sql"}`))
		case strings.HasSuffix(path, "/databases"):
			var request struct {
				Name string `json:"name"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			rec.databaseName = request.Name
			w.Write([]byte(`{"name": "op-sql"}`))
		case strings.HasSuffix(path, "/users"):
			var request struct {
				Password string `json:"password"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
			rec.userPassword = request.Password
			w.Write([]byte(`{"name": "op-sql"}`))
		case path == "/sql/v1beta4/projects/sunny-park-123456/operations/op-sql":
			w.Write([]byte(`{"name": "op-sql", "status": "DONE"}`))
		case strings.HasSuffix(path, "/instances/guest-book-instance"):
			w.Write([]byte(`{"connectionName": ` +
				`"sunny-park-123456:us-west1:guest-book-instance"}`))

		// Storage.
		case strings.Contains(path, "/upload/storage/"):
			content, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			rec.uploads = append(rec.uploads, string(content))
			w.Write([]byte(`{}`))
		case strings.HasSuffix(path, "/b/sunny-park-123456"):
			w.Write([]byte(`{"name": "sunny-park-123456"}`))
		case strings.HasSuffix(path, "/b/sunny-park-123456/iam"):
			w.Write([]byte(`{"bindings": []}`))

		default:
			t.Errorf("unexpected %s request to %s", r.Method, path)
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func newTestClients(t *testing.T, handler http.Handler) *Clients {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	clients, err := NewClients(context.Background(),
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { clients.Storage.Close() })

	return clients
}

type fakeProxy struct {
	port           int
	connectionName string
	stops          int
}

func (p *fakeProxy) start(connectionName string) (int, func(), error) {
	p.connectionName = connectionName
	return p.port, func() { p.stops++ }, nil
}

type manageConfig struct {
	projectDir  string
	projectName string
	password    string
	port        int
}

// fakeManage stands in for manage.py invocations. CollectStatic drops a
// file into the static directory the way collectstatic would.
type fakeManage struct {
	staticDir string
	configs   []manageConfig
	calls     []string
	superuser []string
}

func (f *fakeManage) Migrate(showOutput bool) error {
	f.calls = append(f.calls, "migrate")
	return nil
}

func (f *fakeManage) CollectStatic(showOutput bool) error {
	f.calls = append(f.calls, "collectstatic")
	if err := os.MkdirAll(filepath.Join(f.staticDir, "css"), 0755); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(f.staticDir, "css", "site.css"),
		[]byte("body {}"), 0644)
}

func (f *fakeManage) CreateSuperuser(username string, email string,
	password string) error {
	f.calls = append(f.calls, "superuser")
	f.superuser = []string{username, email, password}

	return nil
}

type fakeGKEDeployer struct {
	url   string
	calls []string
	opts  deploy.Options
}

func (d *fakeGKEDeployer) DeployNewApp(opts deploy.Options) (string, error) {
	d.calls = append(d.calls, "deploy")
	d.opts = opts

	return d.url, nil
}

func (d *fakeGKEDeployer) UpdateApp(opts deploy.Options) (string, error) {
	d.calls = append(d.calls, "update")
	d.opts = opts

	return d.url, nil
}

type fakeGAEDeployer struct {
	url     string
	out     *bytes.Buffer
	calls   []string
	secrets deploy.Secrets
	// stagedAfterHeader records whether the deployment section header was
	// already printed when the secrets were staged.
	stagedAfterHeader bool
	opts              deploy.Options
}

func (d *fakeGAEDeployer) StageSecrets(ctx context.Context, projectID string,
	secrets deploy.Secrets) error {
	d.calls = append(d.calls, "stage")
	d.secrets = secrets
	if d.out != nil {
		d.stagedAfterHeader = strings.Contains(d.out.String(), "**Step 8")
	}

	return nil
}

func (d *fakeGAEDeployer) Deploy(opts deploy.Options) (string, error) {
	d.calls = append(d.calls, "deploy")
	d.opts = opts

	return d.url, nil
}

// newTestManager wires a Manager with fake subprocess seams over the given
// API recorder.
func newTestManager(t *testing.T, backend string,
	rec *apiRecorder) (*Manager, *bytes.Buffer, *fakeProxy, *fakeManage) {
	t.Helper()

	out := &bytes.Buffer{}
	userConsole := console.New(silentReader{}, out, out)

	m := NewManager(ManagerOpts{
		Console: userConsole,
		Clients: newTestClients(t, rec.handler(t)),
		Backend: backend,
	})

	proxy := &fakeProxy{port: 5432}
	m.startProxy = proxy.start

	manage := &fakeManage{}
	m.newManage = func(projectDir string, projectName string,
		password string, port int) manageRunner {
		manage.staticDir = filepath.Join(projectDir, staticDirName)
		manage.configs = append(manage.configs, manageConfig{
			projectDir:  projectDir,
			projectName: projectName,
			password:    password,
			port:        port,
		})

		return manage
	}

	m.accessToken = func(context.Context) (string, error) {
		return "ya29.test-token", nil
	}

	return m, out, proxy, manage
}

func assertInOrder(t *testing.T, output string, parts ...string) {
	t.Helper()

	last := -1
	for _, part := range parts {
		index := strings.Index(output, part)
		require.NotEqual(t, -1, index, "missing %q in output", part)
		require.Greater(t, index, last, "%q printed out of order", part)
		last = index
	}
}

func newDeployOpts(projectDir string) DeployOpts {
	return DeployOpts{
		ProjectID:         "sunny-park-123456",
		ProjectName:       "Sunny Park",
		BillingAccount:    "billingAccounts/B1",
		DatabasePassword:  "hunter22",
		DjangoProjectName: "guest_book",
		DjangoAppName:     "home",
		SuperuserLogin:    "admin",
		SuperuserEmail:    "admin@example.com",
		SuperuserPassword: "swordfish1",
		ProjectDir:        projectDir,
	}
}

func TestDeriveNames(t *testing.T) {
	names := deriveNames("sunny-park-123456", "Guest_Book")

	assert.Equal(t, "guest-book", names.cluster)
	assert.Equal(t, "guest-book-db", names.database)
	assert.Equal(t, "guest-book-instance", names.instance)
	assert.Equal(t, "gcr.io/sunny-park-123456/guest-book", names.image)
}

func TestSecretNames(t *testing.T) {
	cloudSQL, django := secretNames(map[string][]config.ServiceAccount{
		"cloud_sql": {{ID: "cloudsql-oauth-credentials"}},
		"django":    {{ID: "storage-writer"}, {ID: "mail-sender"}},
	})

	assert.Equal(t, []string{"cloudsql-oauth-credentials"}, cloudSQL)
	assert.Equal(t, []string{"storage-writer", "mail-sender"}, django)
}

func TestCreateAndDeployNewProjectGKE(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "guestbook")
	rec := &apiRecorder{}
	m, out, proxy, manage := newTestManager(t, BackendGKE, rec)

	var transcript bytes.Buffer
	m.transcript = dcdlog.NewCustomLogger(&transcript, "", 0)

	gke := &fakeGKEDeployer{url: "http://35.0.0.1/"}
	m.gke = gke

	var opened string
	m.openBrowser = func(url string) error {
		opened = url
		return nil
	}

	appURL, err := m.CreateAndDeployNewProject(context.Background(),
		newDeployOpts(projectDir))
	require.NoError(t, err)
	assert.Equal(t, "http://35.0.0.1/", appURL)

	assertInOrder(t, out.String(),
		"**Step 1 of 8: Create GCP Project**",
		"**Step 2 of 8: Billing Set Up**",
		"**Step 3 of 8: Django Source Generation**",
		"**Step 4 of 8: Database Set Up (Take Up To 5 Minutes)**",
		"**Step 5 of 8: Enable Services**",
		"**Step 6 of 8: Static Content Serve Set Up (Take Up To 5 Minutes)**",
		"**Step 7 of 8: Create Service Account Necessary For Deployment**",
		"**Step 8 of 8: Deployment (Take Up To 20 Minutes)**",
		"Your app is running at http://35.0.0.1/.")
	assert.Contains(t, transcript.String(),
		"Step 1 of 8: Create GCP Project")

	// The project was created and linked to the billing account.
	assert.True(t, rec.projectCreated)
	assert.True(t, rec.billingLinked)

	// The sources were generated and moved into the target directory.
	assert.FileExists(t, filepath.Join(projectDir, "manage.py"))
	assert.FileExists(t, filepath.Join(projectDir, "guest_book.yaml"))
	assert.FileExists(t, filepath.Join(projectDir, "Dockerfile"))

	// The database was provisioned and initialized through the proxy.
	assert.Equal(t, "guest-book-instance", rec.instanceName)
	assert.Equal(t, "guest-book-db", rec.databaseName)
	assert.Equal(t, "hunter22", rec.userPassword)
	assert.Equal(t, "sunny-park-123456:us-west1:guest-book-instance",
		proxy.connectionName)
	assert.Equal(t, 1, proxy.stops)
	assert.Equal(t, []string{"migrate", "superuser", "collectstatic"},
		manage.calls)
	assert.Equal(t, []string{"admin", "admin@example.com", "swordfish1"},
		manage.superuser)
	require.Len(t, manage.configs, 2)
	assert.Equal(t, 5432, manage.configs[0].port)
	assert.Equal(t, "guest_book", manage.configs[0].projectName)
	assert.Equal(t, 0, manage.configs[1].port)

	// The gke service set was enabled.
	assert.Contains(t, rec.enabledServices, "container.googleapis.com")
	assert.Contains(t, rec.enabledServices, "sqladmin.googleapis.com")
	assert.NotContains(t, rec.enabledServices, "appengine.googleapis.com")

	// The collected static files were uploaded.
	require.Len(t, rec.uploads, 1)
	assert.Contains(t, rec.uploads[0], `"name":"static/css/site.css"`)

	// The deployment service account exists with its role and key.
	assert.Equal(t, []string{"cloudsql-oauth-credentials"}, rec.accountIDs)
	assert.Contains(t, rec.boundRoles, "roles/cloudsql.client")
	assert.Equal(t, 1, rec.mintedKeys)

	assert.Equal(t, []string{"deploy"}, gke.calls)
	assert.Equal(t, "sunny-park-123456", gke.opts.ProjectID)
	assert.Equal(t, "guest-book", gke.opts.ClusterName)
	assert.Equal(t, "us-west1-a", gke.opts.Zone)
	assert.Equal(t, "gcr.io/sunny-park-123456/guest-book", gke.opts.ImageTag)
	assert.Equal(t, "guest_book", gke.opts.ProjectName)
	assert.Equal(t, "ya29.test-token", gke.opts.AccessToken)
	assert.Contains(t, gke.opts.SecretsDir, "dcd-secrets-sunny-park-123456")
	assert.Equal(t, "postgres", string(gke.opts.Secrets["cloudsql"]["username"]))
	assert.Equal(t, "hunter22", string(gke.opts.Secrets["cloudsql"]["password"]))
	assert.Equal(t, testKeyFile, string(
		gke.opts.Secrets["cloudsql-oauth-credentials"]["credentials.json"]))

	// The configuration of the update command was written.
	saved, err := config.GetProjectConfig(projectDir)
	require.NoError(t, err)
	assert.Equal(t, "sunny-park-123456", saved.ProjectID)
	assert.Equal(t, "guest_book", saved.DjangoProjectName)
	assert.Equal(t, BackendGKE, saved.Backend)

	// The summary table names the provisioned resources.
	assert.Contains(t, out.String(), "guest-book-instance")
	assert.Contains(t, out.String(), "Static content bucket")

	assert.Equal(t, "http://35.0.0.1/", opened)
}

func TestCreateAndDeployNewProjectGAE(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "guestbook")
	rec := &apiRecorder{projectExists: true, billingEnabled: true}
	m, out, _, _ := newTestManager(t, BackendGAE, rec)

	gae := &fakeGAEDeployer{
		url: "https://sunny-park-123456.appspot.com",
		out: out,
	}
	m.gae = gae

	opts := newDeployOpts(projectDir)
	opts.UseExistingProject = true

	appURL, err := m.CreateAndDeployNewProject(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "https://sunny-park-123456.appspot.com", appURL)

	// An existing project with billing enabled is reused as is.
	assert.False(t, rec.projectCreated)
	assert.False(t, rec.billingLinked)

	assert.Contains(t, out.String(),
		"**Step 8 of 8: Deployment (Take Up To 5 Minutes)**")

	// Secrets are staged to the bucket before the deployment section
	// starts.
	assert.Equal(t, []string{"stage", "deploy"}, gae.calls)
	assert.False(t, gae.stagedAfterHeader)
	assert.Equal(t, "postgres", string(gae.secrets["cloudsql"]["username"]))

	// The gae service set swaps the cluster API for App Engine.
	assert.Contains(t, rec.enabledServices, "appengine.googleapis.com")
	assert.NotContains(t, rec.enabledServices, "container.googleapis.com")

	saved, err := config.GetProjectConfig(projectDir)
	require.NoError(t, err)
	assert.Equal(t, BackendGAE, saved.Backend)

	assert.Contains(t, out.String(), "App Engine")
}

func TestCreateAndDeployExistingProjectMissing(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "guestbook")
	rec := &apiRecorder{}
	m, _, _, _ := newTestManager(t, BackendGKE, rec)
	m.gke = &fakeGKEDeployer{}

	opts := newDeployOpts(projectDir)
	opts.UseExistingProject = true

	_, err := m.CreateAndDeployNewProject(context.Background(), opts)
	assert.ErrorContains(t, err, `project "sunny-park-123456" does not exist`)
	assert.False(t, rec.projectCreated)
}

func TestUpdateProject(t *testing.T) {
	projectDir := t.TempDir()
	require.NoError(t, config.SaveProjectConfig(projectDir,
		&config.ProjectOpts{
			ProjectID:         "sunny-park-123456",
			DjangoProjectName: "guest_book",
			Backend:           BackendGKE,
		}))

	rec := &apiRecorder{projectExists: true}
	m, out, proxy, manage := newTestManager(t, BackendGKE, rec)

	gke := &fakeGKEDeployer{url: "http://35.0.0.1/"}
	m.gke = gke

	appURL, err := m.UpdateProject(context.Background(), UpdateOpts{
		ProjectDir:       projectDir,
		DatabasePassword: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://35.0.0.1/", appURL)

	assertInOrder(t, out.String(),
		"**Step 1 of 3: Database Migration**",
		"**Step 2 of 3: Static Content Update**",
		"**Step 3 of 3: Update Deployment**",
		"Your app is running at http://35.0.0.1/.")

	assert.Equal(t, []string{"migrate", "collectstatic"}, manage.calls)
	require.Len(t, manage.configs, 2)
	assert.Equal(t, 5432, manage.configs[0].port)
	assert.Equal(t, 1, proxy.stops)

	// Static files go to the bucket named after the project.
	require.Len(t, rec.uploads, 1)
	assert.Contains(t, rec.uploads[0], `"name":"static/css/site.css"`)

	assert.Equal(t, []string{"update"}, gke.calls)
	assert.Equal(t, "guest-book", gke.opts.ClusterName)
	assert.Equal(t, "ya29.test-token", gke.opts.AccessToken)
}

func TestUpdateProjectGAEBackend(t *testing.T) {
	projectDir := t.TempDir()
	require.NoError(t, config.SaveProjectConfig(projectDir,
		&config.ProjectOpts{
			ProjectID:         "sunny-park-123456",
			DjangoProjectName: "guest_book",
			Backend:           BackendGAE,
		}))

	rec := &apiRecorder{projectExists: true}
	m, _, _, _ := newTestManager(t, BackendGAE, rec)

	gke := &fakeGKEDeployer{}
	m.gke = gke
	gae := &fakeGAEDeployer{url: "https://sunny-park-123456.appspot.com"}
	m.gae = gae

	appURL, err := m.UpdateProject(context.Background(), UpdateOpts{
		ProjectDir:       projectDir,
		DatabasePassword: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://sunny-park-123456.appspot.com", appURL)

	assert.Equal(t, []string{"deploy"}, gae.calls)
	assert.Empty(t, gke.calls)
}

func TestUpdateProjectInvalidConfig(t *testing.T) {
	m, _, _, _ := newTestManager(t, BackendGKE, &apiRecorder{})

	projectDir := t.TempDir()
	_, err := m.UpdateProject(context.Background(),
		UpdateOpts{ProjectDir: projectDir})

	var confErr InvalidConfigError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, fmt.Sprintf("Configuration file in [%s] does not "+
		"contain enough information to update a Django project.", projectDir),
		confErr.Error())
}

func TestUpdateProjectIncompleteConfig(t *testing.T) {
	m, _, _, _ := newTestManager(t, BackendGKE, &apiRecorder{})

	projectDir := t.TempDir()
	require.NoError(t, config.SaveProjectConfig(projectDir,
		&config.ProjectOpts{ProjectID: "sunny-park-123456"}))

	_, err := m.UpdateProject(context.Background(),
		UpdateOpts{ProjectDir: projectDir})

	var confErr InvalidConfigError
	assert.ErrorAs(t, err, &confErr)
}
