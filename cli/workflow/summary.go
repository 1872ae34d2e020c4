package workflow

import (
	"github.com/jedib0t/go-pretty/v6/table"
)

// printSummary prints the provisioned resources as a table.
func (m *Manager) printSummary(opts DeployOpts, names resourceNames,
	appURL string) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"RESOURCE", "NAME"})
	t.AppendRows([]table.Row{
		{"Project id", opts.ProjectID},
		{"Django project", opts.DjangoProjectName},
	})
	if m.backend == BackendGAE {
		t.AppendRow(table.Row{"App Engine service", "default"})
	} else {
		t.AppendRows([]table.Row{
			{"Cluster", names.cluster},
			{"Image", names.image},
		})
	}
	t.AppendRows([]table.Row{
		{"Database instance", names.instance},
		{"Database", names.database},
		{"Static content bucket", opts.BucketName},
	})
	t.SetStyle(table.StyleRounded)

	m.console.Println(t.Render())
}
