package util

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strings"

	"github.com/apex/log"
	"github.com/spf13/cobra"
	"golang.org/x/exp/constraints"
	"gopkg.in/yaml.v2"
)

// ArgError represents command line arguments error.
type ArgError struct {
	msg string
}

// Error returns error message.
func (e ArgError) Error() string {
	return e.msg
}

// NewArgError creates and returns new argument error.
func NewArgError(text string) error {
	return &ArgError{text}
}

// VersionFunc is a type of function that return
// string with current Django Cloud CLI version.
type VersionFunc func(bool, bool) string

// GetFileContentBytes returns file content as a bytes slice.
func GetFileContentBytes(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	fileContent, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return fileContent, nil
}

// GetFileContent returns file content as a string.
func GetFileContent(path string) (string, error) {
	fileContentBytes, err := GetFileContentBytes(path)
	if err != nil {
		return "", err
	}

	return string(fileContentBytes), nil
}

// InternalError shows error information, version of dcd and call stack.
func InternalError(format string, f VersionFunc, err ...interface{}) error {
	errorFmt := `whoops! It looks like something is wrong with this version of Django Cloud CLI.
Error: %s
Version: %s
Stacktrace:
%s`
	version := f(false, false)

	return fmt.Errorf(errorFmt, fmt.Sprintf(format, err...), version, debug.Stack())
}

// ParseYAML parse yaml file at specified path.
func ParseYAML(path string) (map[string]interface{}, error) {
	fileContent, err := GetFileContentBytes(path)
	if err != nil {
		return nil, fmt.Errorf(`failed to read "%s" file: %s`, path, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(fileContent, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %s", err)
	}

	return raw, nil
}

// GetHomeDir returns current home directory.
func GetHomeDir() (string, error) {
	return os.UserHomeDir()
}

// ExpandUser replaces a leading ~ in the path with the current user home directory.
func ExpandUser(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := GetHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}

	return path, nil
}

// FindNamedMatches processes regexp with named capture groups
// and transforms output to a map. If capture group is optional
// and was not found, map value is empty string.
func FindNamedMatches(re *regexp.Regexp, str string) map[string]string {
	match := re.FindStringSubmatch(str)
	res := map[string]string{}

	for i, value := range match {
		if i == 0 { // Skip input string.
			continue
		}

		res[re.SubexpNames()[i]] = value
	}

	return res
}

// getMissedBinaries returns list of binaries not found in PATH.
func getMissedBinaries(binaries ...string) []string {
	var missedBinaries []string

	for _, binary := range binaries {
		if _, err := exec.LookPath(binary); err != nil {
			missedBinaries = append(missedBinaries, binary)
		}
	}

	return missedBinaries
}

// CheckRecommendedBinaries warns if some binaries not found in PATH.
func CheckRecommendedBinaries(binaries ...string) {
	missedBinaries := getMissedBinaries(binaries...)

	if len(missedBinaries) > 0 {
		log.Warnf("Missed recommended binaries %s", strings.Join(missedBinaries, ", "))
	}
}

// CheckRequiredBinaries returns an error if some binaries not found in PATH.
func CheckRequiredBinaries(binaries ...string) error {
	missedBinaries := getMissedBinaries(binaries...)

	if len(missedBinaries) > 0 {
		return fmt.Errorf("missed required binaries %s", strings.Join(missedBinaries, ", "))
	}

	return nil
}

// IsDir checks if filePath is a directory. Returns true if the directory exists.
func IsDir(filePath string) bool {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return false
	}

	return fileInfo.IsDir()
}

// IsRegularFile checks if filePath is a regular file. Returns true if the file exists
// and it is a regular file.
func IsRegularFile(filePath string) bool {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return false
	}

	return fileInfo.Mode().IsRegular()
}

// FsCopyFileChangePerms copies file from the certain FS with changing perms.
func FsCopyFileChangePerms(fsys fs.FS, src, dst string, perms int) error {
	// Read data from src.
	data, err := fs.ReadFile(fsys, src)
	if err != nil {
		return err
	}
	// Write data to dst.
	return os.WriteFile(dst, data, fs.FileMode(perms))
}

// RunCommandAndGetOutput returns output of command.
func RunCommandAndGetOutput(program string, args ...string) (string, error) {
	out, err := exec.Command(program, args...).Output()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(out)), nil
}

// CreateDirectory create a directory with existence and error checks.
func CreateDirectory(dirName string, fileMode os.FileMode) error {
	stat, err := os.Stat(dirName)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	} else {
		if !stat.IsDir() {
			return fmt.Errorf("'%s' already exists and is not a directory", dirName)
		}
		return nil
	}
	if err = os.MkdirAll(dirName, fileMode); err != nil {
		return err
	}
	return nil
}

// WriteYaml writes YAML encoding of object o to fileName.
func WriteYaml(fileName string, o interface{}) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Warnf("Failed to close a file '%s': %s", file.Name(), err)
		}
	}()

	if err = yaml.NewEncoder(file).Encode(o); err != nil {
		return err
	}
	return nil
}

// GetYamlFileName searches for file with .yaml or .yml extension, based on the file name provided.
// If mustExist flag is set and no yaml files are found, ErrNotExists error is returned,
// passed fileName is returned otherwise.
func GetYamlFileName(fileName string, mustExist bool) (string, error) {
	fileBaseName := fileName
	switch filepath.Ext(fileName) {
	case ".yaml":
		fileBaseName = strings.TrimSuffix(fileName, ".yaml")
	case ".yml":
		fileBaseName = strings.TrimSuffix(fileName, ".yml")
	case ".":
		fileBaseName = strings.TrimSuffix(fileName, ".")
	case "":
		fileBaseName = fileName
	default:
		return "", fmt.Errorf("provided file '%s' has no .yaml/.yml extension", fileName)
	}
	foundYamlFiles := []string{}
	if foundFiles, err := filepath.Glob(fmt.Sprintf("%s.y*ml", fileBaseName)); err == nil {
		for _, fileName := range foundFiles {
			switch filepath.Ext(fileName) {
			case ".yaml", ".yml":
				foundYamlFiles = append(foundYamlFiles, fileName)
			}
		}
	} else {
		return "", err
	}
	yamlFilesCount := len(foundYamlFiles)
	if yamlFilesCount > 1 {
		return "", fmt.Errorf("more than one YAML files are found:\n%s\nAmbiguous selection",
			strings.Join(foundYamlFiles, ", "))
	} else if yamlFilesCount == 1 {
		return foundYamlFiles[0], nil
	} else if !mustExist {
		return "", nil
	}

	return "", os.ErrNotExist
}

// Min returns minimal of two values.
func Min[T constraints.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// HandleCmdErr handles an error returned by command implementation.
// If received error is of an ArgError type, usage help is printed.
func HandleCmdErr(cmd *cobra.Command, err error) {
	if err != nil {
		var argError *ArgError
		if errors.As(err, &argError) {
			log.Error(argError.Error())
			cmd.Usage()
			os.Exit(1)
		}
		if errors.Is(err, ErrCmdAbort) {
			os.Exit(1)
		}
		log.Fatalf(err.Error())
	}
}
