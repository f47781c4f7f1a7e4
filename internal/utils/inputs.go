package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when a hidden prompt is requested without a TTY.
var ErrNoTerminal = errors.New("password prompt requires a terminal; use --password-stdin")

// PromptYesNoWithReader prompts for yes/no with custom reader/writer for testing.
func PromptYesNoWithReader(prompt string, reader io.Reader, writer io.Writer) bool {
	scanner := bufio.NewScanner(reader)

	for {
		_, _ = fmt.Fprintf(writer, "%s (y/n): ", prompt)
		if !scanner.Scan() {
			return false
		}

		switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
	}
}

// PromptLine prints prompt and returns one trimmed line from reader.
func PromptLine(prompt string, reader *bufio.Reader, writer io.Writer) (string, error) {
	_, _ = fmt.Fprint(writer, prompt)
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// PromptPassword reads a password from the terminal without echo.
func PromptPassword(prompt string, writer io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}
	_, _ = fmt.Fprint(writer, prompt)
	b, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(writer)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
