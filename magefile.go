//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	goPackageName = "github.com/django-cloud/dcd/cli"

	asmflags = "all=-trimpath=${PWD}"
	gcflags  = "all=-trimpath=${PWD}"

	packagePath = "./cli"
)

var (
	ldflags = []string{
		"-X ${PACKAGE}/version.gitTag=${GIT_TAG}",
		"-X ${PACKAGE}/version.gitCommit=${GIT_COMMIT}",
		"-X ${PACKAGE}/version.versionLabel=${VERSION_LABEL}",
	}

	goExecutableName  = "go"
	dcdExecutableName = "dcd"

	generateModePath = filepath.Join(packagePath, "codegen", "generate_code.go")

	Aliases = map[string]any{
		"build": Build.Release,
		"unit":  Unit.Default,
	}
)

func init() {
	var err error

	if specifiedGoExe := os.Getenv("GOEXE"); specifiedGoExe != "" {
		goExecutableName = specifiedGoExe
	}

	if specifiedDcdExe := os.Getenv("DCDEXE"); specifiedDcdExe != "" {
		dcdExecutableName = specifiedDcdExe
	} else {
		if dcdExecutableName, err = filepath.Abs(dcdExecutableName); err != nil {
			panic(err)
		}
	}

	// We want to use Go 1.11 modules even if the source lives inside GOPATH.
	// The default is "auto".
	os.Setenv("GO111MODULE", "on")
}

type optsUpdater func([]string) ([]string, error)

// appendFlags appends flags passed in args.
func appendFlags(flags ...string) optsUpdater {
	return func(args []string) ([]string, error) {
		return append(args, flags...), nil
	}
}

// appendLdFlags appends linker flags.
func appendLdFlags(flags ...string) optsUpdater {
	return func(args []string) ([]string, error) {
		buildLdflags := make([]string, len(ldflags))
		copy(buildLdflags, ldflags)
		buildLdflags = append(buildLdflags, flags...)

		return append(append(args, "-ldflags"), strings.Join(buildLdflags, " ")), nil
	}
}

// Building dcd executable.
func buildDcd(argUpdaters ...optsUpdater) error {
	args := []string{"build", "-o", dcdExecutableName}
	var err error
	for _, updateArguments := range argUpdaters {
		if args, err = updateArguments(args); err != nil {
			return err
		}
	}
	args = append(args,
		"-asmflags", asmflags,
		"-gcflags", gcflags,
		packagePath)
	err = sh.RunWith(getBuildEnvironment(), goExecutableName, args...)
	if err != nil {
		return fmt.Errorf("Failed to build dcd executable: %s", err)
	}

	return nil
}

type Build mg.Namespace

// Building release dcd executable without debug info.
func (Build) Release() error {
	fmt.Println("Building release dcd...")

	return buildDcd(appendLdFlags("-s", "-w"))
}

// Building debug dcd executable.
func (Build) Debug() error {
	fmt.Println("Building debug dcd...")

	return buildDcd(appendLdFlags())
}

// Building dcd executable with coverage.
func (Build) Coverage() error {
	fmt.Println("Building release dcd with coverage...")

	err := buildDcd(appendFlags("-cover"), appendLdFlags("-s", "-w"))
	if err != nil {
		return err
	}
	fmt.Println(`Set coverage data destination directory (must exist) and run dcd:
	GOCOVERDIR=./<coverage_dest_dir> dcd <opts>`)
	return nil
}

// Regenerate the file-mode maps of the embedded templates.
// embed.FS drops file modes, so they are recorded in generated Go files
// next to the templates and applied after rendering.
func Codegen() error {
	fmt.Println("Generating template file modes...")

	return sh.RunV(goExecutableName, "run", generateModePath)
}

// Run golang linters.
func Lint() error {
	fmt.Println("Running golangci-lint...")

	return sh.RunV("golangci-lint", "run")
}

type Unit mg.Namespace

func runUnitTests(flags []string) error {
	args := []string{"test"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "./...")
	args = append(args, flags...)

	return sh.RunV(goExecutableName, args...)
}

// Run unit tests.
func (Unit) Default() error {
	fmt.Println("Running unit tests...")

	return runUnitTests([]string{})
}

// Run unit tests with code coverage.
func (Unit) Coverage() error {
	fmt.Println("Running unit tests with code coverage...")

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	coverDir := filepath.Join(cwd, "coverage", "unit")
	if err := os.MkdirAll(coverDir, 0o750); err != nil {
		return err
	}

	err = runUnitTests([]string{
		"-cover",
		"-args", fmt.Sprintf(`-test.gocoverdir=%s`, coverDir),
	})
	if err != nil {
		return err
	}
	relCoverDir, err := filepath.Rel(cwd, coverDir)
	if err != nil {
		relCoverDir = coverDir
	}
	fmt.Printf("Coverage data is saved to %q\n", relCoverDir)
	fmt.Printf(`Example command for analysis:
	go tool covdata func -i %q
`, relCoverDir)

	return nil
}

// Run codespell checks.
func Codespell() error {
	fmt.Println("Running codespell tests...")

	return sh.RunV("codespell", "cli")
}

// Run all tests together.
func Test() {
	mg.SerialDeps(Lint, Unit.Default)
}

// Cleanup directory.
func Clean() {
	fmt.Println("Cleaning directory...")

	os.Remove(dcdExecutableName)
}

// getBuildEnvironment return map with build environment variables.
func getBuildEnvironment() map[string]string {
	var err error

	var currentDir string
	var gitTag string
	var gitCommit string

	if currentDir, err = os.Getwd(); err != nil {
		log.Warnf("Failed to get current directory: %s", err)
	}

	if _, err := exec.LookPath("git"); err == nil {
		gitTag, _ = sh.Output("git", "describe", "--tags")
		gitCommit, _ = sh.Output("git", "rev-parse", "--short", "HEAD")
	}

	return map[string]string{
		"PACKAGE":       goPackageName,
		"GIT_TAG":       gitTag,
		"GIT_COMMIT":    gitCommit,
		"VERSION_LABEL": os.Getenv("VERSION_LABEL"),
		"PWD":           currentDir,
		"CGO_ENABLED":   "0",
	}
}
