package util

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/briandowns/spinner"

	"github.com/apex/log"
)

type emptyStruct struct{}

// readyChan is a channel used to signal completion of command execution.
type readyChan chan emptyStruct

var (
	spinnerPicture    = spinner.CharSets[9]
	spinnerUpdateTime = 100 * time.Millisecond

	ready = emptyStruct{}
)

// sendReady sends ready to channel.
func sendReady(readyChannel readyChan) {
	readyChannel <- ready
}

// startAndWaitCommand executes a command.
// and sends `ready` flag to the channel before return.
func startAndWaitCommand(cmd *exec.Cmd, readyChannel readyChan,
	workGroup *sync.WaitGroup, err *error,
) {
	defer workGroup.Done()
	defer sendReady(readyChannel)

	if *err = cmd.Start(); *err != nil {
		return
	}

	if *err = cmd.Wait(); *err != nil {
		return
	}
}

// StartCommandSpinner starts running spinner.
// until `ready` flag is received from the channel.
func StartCommandSpinner(readyChannel readyChan, wg *sync.WaitGroup, prefix string) {
	defer wg.Done()

	spinner := spinner.New(spinnerPicture, spinnerUpdateTime)
	if prefix != "" {
		spinner.Prefix = fmt.Sprintf("%s ", strings.TrimSpace(prefix))
	}

	spinner.Start()

	// Wait for the command to complete.
	<-readyChannel

	spinner.Stop()
}

// RunCommand runs specified command and returns an error.
// If showOutput is set to true, command output is shown.
// Else spinner is shown while command is running.
func RunCommand(cmd *exec.Cmd, workingDir string, showOutput bool) error {
	var err error
	var workGroup sync.WaitGroup
	readyChannel := make(readyChan, 1)

	var outputBuf *os.File

	cmd.Dir = workingDir
	if showOutput {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		if outputBuf, err = os.CreateTemp("", "out"); err != nil {
			log.Warnf("Failed to create tmp file to store command output: %s", err)
		}
		cmd.Stdout = outputBuf
		cmd.Stderr = outputBuf
		defer outputBuf.Close()
		defer os.Remove(outputBuf.Name())

		if isatty.IsTerminal(os.Stdout.Fd()) {
			workGroup.Add(1)
			go StartCommandSpinner(readyChannel, &workGroup, "")
		}
	}

	workGroup.Add(1)
	go startAndWaitCommand(cmd, readyChannel, &workGroup, &err)

	workGroup.Wait()

	if err != nil {
		if outputBuf != nil {
			if err := PrintFromStart(outputBuf); err != nil {
				log.Warnf("Failed to show command output: %s", err)
			}
		}

		return fmt.Errorf(
			"Failed to run \n%s\n\n%s", cmd.String(), err,
		)
	}

	return err
}

// PrintFromStart prints the file content to stdout from the beginning.
func PrintFromStart(file *os.File) error {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("Failed to seek file begin: %s", err)
	}
	if _, err := io.Copy(os.Stdout, file); err != nil {
		log.Warnf("Failed to print file content: %s", err)
	}

	return nil
}

// ExecuteCommandGetOutput runs the command in workDir,
// sends stdinData to its stdin pipe and returns the combined output.
func ExecuteCommandGetOutput(cmd *exec.Cmd, workDir string,
	stdinData []byte,
) ([]byte, error) {
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if workDir == "" {
		var err error
		if workDir, err = os.Getwd(); err != nil {
			return out.Bytes(), err
		}
	}
	cmd.Dir = workDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return out.Bytes(), err
	}

	err = cmd.Start()
	if err != nil {
		return out.Bytes(), err
	}

	stdin.Write(stdinData)
	stdin.Close()

	err = cmd.Wait()
	return out.Bytes(), err
}
