package skeleton

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/django-cloud/dcd/cli/skeleton/builtin_templates"
	"github.com/django-cloud/dcd/cli/util"
)

// rewriteSuffixes maps template file suffixes to output suffixes. Only files
// carrying one of these suffixes are rendered, everything else is copied
// verbatim so that runtime Django templates keep their own {{ }} markup.
var rewriteSuffixes = [][2]string{
	{".py-tpl", ".py"},
	{".html-tpl", ".html"},
	{".css-tpl", ".css"},
	{".yaml-tpl", ".yaml"},
	{"-tpl", ""},
}

const defaultFileMode = 0o644

// rewriteName strips the template suffix from name. The second return value
// reports whether the file must be rendered.
func rewriteName(name string) (string, bool) {
	for _, pair := range rewriteSuffixes {
		if strings.HasSuffix(name, pair[0]) {
			return strings.TrimSuffix(name, pair[0]) + pair[1], true
		}
	}

	return name, false
}

// replaceSegments replaces path segments of relPath equal to a key of repl
// with the mapped value.
func replaceSegments(relPath string, repl map[string]string) string {
	if len(repl) == 0 || relPath == "" {
		return relPath
	}

	segments := strings.Split(relPath, "/")
	for i, segment := range segments {
		if replacement, ok := repl[segment]; ok {
			segments[i] = replacement
		}
	}

	return strings.Join(segments, "/")
}

// fileMode returns the mode an instantiated file must get, looked up by
// template set and set-relative source path. Embedded files lose their
// modes, the generated maps under builtin_templates/static keep them.
func fileMode(set string, relPath string) fs.FileMode {
	if modes, ok := builtin_templates.FileModes[set]; ok {
		if mode, ok := modes[relPath]; ok {
			return fs.FileMode(mode)
		}
	}

	return defaultFileMode
}

// instantiateFile renders or copies a single template file to dstPath.
func (g *Generator) instantiateFile(set string, relPath string, dstPath string,
	data map[string]interface{}) error {
	srcPath := path.Join("templates", set, relPath)
	mode := fileMode(set, relPath)

	if _, render := rewriteName(path.Base(relPath)); render {
		return g.engine.RenderFsFile(g.fsys, srcPath, dstPath, data, mode)
	}

	return util.FsCopyFileChangePerms(g.fsys, srcPath, dstPath, int(mode))
}

// instantiateDirectory instantiates every file of a template set into dstDir.
// Directory path segments equal to a key of pathRepl are replaced with the
// mapped value in the output tree.
func (g *Generator) instantiateDirectory(set string, dstDir string,
	pathRepl map[string]string, data map[string]interface{}) error {
	srcRoot := path.Join("templates", set)

	if err := os.MkdirAll(dstDir, defaultDirMode); err != nil {
		return fmt.Errorf("failed to create directory %q: %s", dstDir, err)
	}

	return fs.WalkDir(g.fsys, srcRoot,
		func(srcPath string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if srcPath == srcRoot {
				return nil
			}

			relPath := strings.TrimPrefix(srcPath, srcRoot+"/")
			if entry.IsDir() {
				outDir := filepath.Join(dstDir,
					filepath.FromSlash(replaceSegments(relPath, pathRepl)))
				return os.MkdirAll(outDir, defaultDirMode)
			}

			relDir := replaceSegments(path.Dir(relPath), pathRepl)
			outName, _ := rewriteName(path.Base(relPath))
			dstPath := filepath.Join(dstDir, filepath.FromSlash(relDir),
				outName)
			return g.instantiateFile(set, relPath, dstPath, data)
		})
}
