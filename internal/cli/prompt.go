package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errConfirmationDeclined = errors.New("cancelled")

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// ConfirmDestructiveAction asks before deleting something. --yes skips the
// prompt; without a terminal the action is refused.
func (a *app) ConfirmDestructiveAction(resourceType, id, impact string) error {
	if assumeYes {
		return nil
	}
	if IsNonInteractive() || !hasTTY() {
		return &PreflightError{
			Message:  fmt.Sprintf("refusing to delete %s %s without confirmation", resourceType, id),
			Hint:     "Pass --yes to confirm non-interactively",
			NextStep: "approvalctl --yes ...",
		}
	}

	fmt.Fprintf(a.errOut, "Delete %s %s?\n", resourceType, id)
	if impact != "" {
		fmt.Fprintf(a.errOut, "  %s\n", impact)
	}
	fmt.Fprint(a.errOut, "Type 'yes' to confirm: ")

	answer, err := a.readLine()
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "yes") && !strings.EqualFold(answer, "y") {
		return errConfirmationDeclined
	}
	return nil
}

// promptLine reads one line of input after label.
func (a *app) promptLine(label string) (string, error) {
	if IsNonInteractive() {
		return "", &PreflightError{
			Message: fmt.Sprintf("%s is required", strings.ToLower(label)),
			Hint:    "Pass it as a flag when running non-interactively",
		}
	}
	fmt.Fprintf(a.errOut, "%s: ", label)
	return a.readLine()
}

// promptSecret reads a password without echo when stdin is a terminal.
func (a *app) promptSecret(label string) (string, error) {
	if IsNonInteractive() {
		return "", &PreflightError{
			Message: "password is required",
			Hint:    "Use --password-stdin when running non-interactively",
		}
	}
	fmt.Fprintf(a.errOut, "%s: ", label)
	if file, ok := a.in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		secret, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(secret), nil
	}
	return a.readLine()
}

// readLine reads one line from the app's input, sharing one buffer across
// prompts.
func (a *app) readLine() (string, error) {
	if a.reader == nil {
		a.reader = bufio.NewReader(a.in)
	}
	line, err := a.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
