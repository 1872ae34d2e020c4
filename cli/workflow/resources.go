package workflow

import (
	_ "embed"
	"fmt"

	"github.com/django-cloud/dcd/cli/config"
)

//go:embed resources/services_gke.yaml
var servicesGKE []byte

//go:embed resources/services_gae.yaml
var servicesGAE []byte

//go:embed resources/service_accounts.yaml
var serviceAccounts []byte

// DefaultServices returns the services a deployment of the given backend
// needs enabled on the project.
func DefaultServices(backend string) ([]config.Service, error) {
	switch backend {
	case BackendGKE:
		return config.LoadServices(servicesGKE)
	case BackendGAE:
		return config.LoadServices(servicesGAE)
	}

	return nil, fmt.Errorf("unknown backend %q", backend)
}

// DefaultServiceAccounts returns the service accounts the deployment
// containers need, grouped by container.
func DefaultServiceAccounts() (map[string][]config.ServiceAccount, error) {
	return config.LoadServiceAccounts(serviceAccounts)
}
