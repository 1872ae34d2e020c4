package main

import (
	"os"
	"path/filepath"

	"github.com/apex/log"
	"github.com/dave/jennifer/jen"
)

// templateSets lists the embedded template sets together with the prefix of
// the generated file-mode variable. embed.FS drops file modes, so they are
// recorded at generation time and applied after rendering.
var templateSets = []struct {
	Name      string
	VarPrefix string
}{
	{Name: "project_template", VarPrefix: "Project"},
	{Name: "app_template", VarPrefix: "App"},
	{Name: "admin_template", VarPrefix: "Admin"},
	{Name: "templates_template", VarPrefix: "Templates"},
	{Name: "static_template", VarPrefix: "Static"},
	{Name: "settings_template", VarPrefix: "Settings"},
	{Name: "deploy_template", VarPrefix: "Deploy"},
}

const (
	templatesDir = "cli/skeleton/builtin_templates/templates"
	staticDir    = "cli/skeleton/builtin_templates/static"
)

// generateFileModeFile generates
// var FileModes = map[string]int {
// "filename": filemode,
// }
func generateFileModeFile(path string, filename string, varNamePrefix string) error {
	goFile := jen.NewFile("static")
	goFile.Comment("This file is generated! DO NOT EDIT\n")

	fileModeMap, err := getFileModes(path)
	if err != nil {
		return err
	}

	varName := varNamePrefix + "FileModes"
	goFile.Var().Id(varName).Op("=").Map(jen.String()).Int().Values(jen.DictFunc(func(d jen.Dict) {
		for key, element := range fileModeMap {
			d[jen.Lit(key)] = jen.Lit(element).Commentf("/* %#o */", element)
		}
	}))

	return goFile.Save(filename)
}

// getFileModes return map with relative file names and modes.
func getFileModes(root string) (map[string]int, error) {
	fileModeMap := make(map[string]int)

	err := filepath.Walk(root, func(filePath string, fileInfo os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !fileInfo.IsDir() {
			rel, err := filepath.Rel(root, filePath)

			if err != nil {
				return err
			}

			fileModeMap[rel] = int(fileInfo.Mode())
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return fileModeMap, nil
}

func main() {
	for _, set := range templateSets {
		err := generateFileModeFile(
			filepath.Join(templatesDir, set.Name),
			filepath.Join(staticDir, set.Name+"_filemodes_gen.go"),
			set.VarPrefix,
		)
		if err != nil {
			log.Errorf("error while generating file modes for %s: %s", set.Name, err)
		}
	}
}
