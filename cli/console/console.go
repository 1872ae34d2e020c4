// Package console implements user dialogue primitives for interactive
// commands: questions, hidden input, confirmations and selection lists.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Reader reads user console input.
type Reader interface {
	// ReadLine reads one line of input without the trailing newline.
	ReadLine() (string, error)
	// ReadPassword reads one line of input with terminal echo disabled.
	ReadPassword() (string, error)
}

// stdinReader implements reading from the process stdin.
type stdinReader struct {
	reader *bufio.Reader
}

// NewStdinReader creates a Reader over the process stdin.
func NewStdinReader() Reader {
	return &stdinReader{reader: bufio.NewReader(os.Stdin)}
}

// ReadLine reads one line from stdin.
func (reader *stdinReader) ReadLine() (string, error) {
	line, err := reader.reader.ReadString('\n')
	if err != nil {
		if err != io.EOF || line == "" {
			return "", err
		}
	}

	return strings.TrimSuffix(line, "\n"), nil
}

// ReadPassword reads a line from stdin with echo disabled. If stdin is
// not a terminal, input is read as a plain line.
func (reader *stdinReader) ReadPassword() (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return reader.ReadLine()
	}

	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}

	return string(password), nil
}

// Console couples an input reader with output writers and implements
// the dialogue used by interactive prompts.
type Console struct {
	reader Reader
	out    io.Writer
	errOut io.Writer
	// selectViaMenu enables arrow-key selection lists. It is set only
	// when the console talks to a real terminal.
	selectViaMenu bool
}

// New creates a console over the given reader and writers.
func New(reader Reader, out, errOut io.Writer) *Console {
	return &Console{
		reader: reader,
		out:    out,
		errOut: errOut,
	}
}

// Default creates a console over the process stdin/stdout/stderr.
func Default() *Console {
	return &Console{
		reader:        NewStdinReader(),
		out:           os.Stdout,
		errOut:        os.Stderr,
		selectViaMenu: isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// Printf prints formatted text to the console output.
func (console *Console) Printf(format string, args ...interface{}) {
	fmt.Fprintf(console.out, format, args...)
}

// Println prints a line to the console output.
func (console *Console) Println(args ...interface{}) {
	fmt.Fprintln(console.out, args...)
}

// Errorf prints formatted text to the console error output.
func (console *Console) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(console.errOut, format, args...)
}

// Ask prints the question and reads one line of input.
// Surrounding whitespace is trimmed from the answer.
func (console *Console) Ask(question string) (string, error) {
	fmt.Fprint(console.out, question)

	answer, err := console.reader.ReadLine()
	if err != nil {
		return "", fmt.Errorf("failed to read user input: %w", err)
	}

	return strings.TrimSpace(answer), nil
}

// AskHidden prints the question and reads one line of input with echo
// disabled. The answer is not trimmed.
func (console *Console) AskHidden(question string) (string, error) {
	fmt.Fprint(console.out, question)

	answer, err := console.reader.ReadPassword()
	// Terminal echo is off, so the entered newline is ours to print.
	fmt.Fprintln(console.out)
	if err != nil {
		return "", fmt.Errorf("failed to read user input: %w", err)
	}

	return answer, nil
}

// Confirm asks a yes/no question. An empty answer takes defaultYes.
// Any other answer except y/yes/n/no makes the question asked again.
func (console *Console) Confirm(question string, defaultYes bool) (bool, error) {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	for {
		answer, err := console.Ask(fmt.Sprintf("%s %s: ", question, suffix))
		if err != nil {
			return false, err
		}

		switch strings.ToLower(answer) {
		case "":
			return defaultYes, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

// Choose asks the user to pick one of the items and returns its index.
// On a terminal an arrow-key selection list is shown. Otherwise items
// are printed as a numbered list and a number is read.
func (console *Console) Choose(label string, items []string) (int, error) {
	if console.selectViaMenu {
		itemSelect := promptui.Select{
			Label: label,
			Items: items,
			Size:  len(items),
		}

		index, _, err := itemSelect.Run()
		if err != nil {
			return 0, err
		}

		return index, nil
	}

	console.Println(label)
	for i, item := range items {
		console.Printf("%d. %s\n", i+1, item)
	}

	for {
		answer, err := console.Ask(fmt.Sprintf("Enter a value between 1 and %d: ", len(items)))
		if err != nil {
			return 0, err
		}

		choice, err := strconv.Atoi(answer)
		if err != nil || choice < 1 || choice > len(items) {
			console.Errorf("Please enter a numeric value between 1 and %d\n", len(items))
			continue
		}

		return choice - 1, nil
	}
}
