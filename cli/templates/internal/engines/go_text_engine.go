package engines

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"text/template"
)

// GoTextEngine renders templates with the go text/template engine.
// Django template files in the skeleton keep their own {{ }} syntax,
// so only files marked as dcd templates ever pass through here.
type GoTextEngine struct{}

// RenderFsFile renders srcPath template from fsys to dstPath with the
// given permissions.
func (engine GoTextEngine) RenderFsFile(fsys fs.FS, srcPath, dstPath string,
	data interface{}, perms fs.FileMode,
) error {
	content, err := fs.ReadFile(fsys, srcPath)
	if err != nil {
		return fmt.Errorf("error reading template %s: %s", srcPath, err)
	}

	rendered, err := engine.RenderText(string(content), data)
	if err != nil {
		return fmt.Errorf("error rendering %s: %s", srcPath, err)
	}

	if err = os.WriteFile(dstPath, []byte(rendered), perms); err != nil {
		return fmt.Errorf("error creating %s: %s", dstPath, err)
	}
	return nil
}

// RenderText renders in text using go text/template engine.
func (GoTextEngine) RenderText(in string, data interface{}) (string, error) {
	parsedTemplate, err := template.New("file").Parse(in)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %s", in, err)
	}
	parsedTemplate.Option("missingkey=error") // Treat missing variable as error.

	var buffer bytes.Buffer
	if err = parsedTemplate.Execute(&buffer, &data); err != nil {
		return "", fmt.Errorf("template execution failed: %s", err)
	}

	return buffer.String(), nil
}
