package templates

import (
	"io/fs"

	"github.com/django-cloud/dcd/cli/templates/internal/engines"
)

// TemplateEngine is an interface used for project template instantiation.
type TemplateEngine interface {
	// RenderFsFile applies data to the template read from srcPath of fsys.
	// Instantiated template is saved as dstPath with the given permissions.
	RenderFsFile(fsys fs.FS, srcPath, dstPath string, data interface{},
		perms fs.FileMode) error

	// RenderText applies data to the template text. Returns instantiated text.
	RenderText(in string, data interface{}) (string, error)
}

// NewDefaultEngine creates and returns default template engine.
func NewDefaultEngine() TemplateEngine {
	return engines.GoTextEngine{}
}
