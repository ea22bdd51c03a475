package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/models"
)

const (
	ExitCodeFailure       = 1
	ExitCodeLoginRequired = 2
	ExitCodeInvalidInput  = 3
)

// ExitError carries a process exit code. Printed is set when the command
// already reported the error itself.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// PreflightError is a user-facing failure with a hint and a next step.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
	Err      error
}

func (e *PreflightError) Error() string {
	return e.Message
}

func (e *PreflightError) Unwrap() error {
	return e.Err
}

// ErrLoginRequired is returned by every gated command that refuses the
// stored session. The reason is logged, never shown.
var ErrLoginRequired = errors.New("login required")

func loginRequired() error {
	return &ExitError{
		Code: ExitCodeLoginRequired,
		Err: &PreflightError{
			Message:  ErrLoginRequired.Error(),
			Hint:     "Sign in with an active account that can open this screen",
			NextStep: "approvalctl login",
			Err:      ErrLoginRequired,
		},
	}
}

func invalidInput(err error) error {
	return &ExitError{Code: ExitCodeInvalidInput, Err: err}
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var validation *models.ValidationErrors
	if errors.As(err, &validation) {
		return ExitCodeInvalidInput
	}
	return ExitCodeFailure
}

// FormatError renders err for the terminal, including hints.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Error: ")

	var preflight *PreflightError
	var apiErr *api.APIError
	var validation *models.ValidationErrors
	switch {
	case errors.As(err, &preflight):
		writePreflight(&b, preflight)
	case errors.As(err, &validation):
		b.WriteString("invalid input\n")
		for _, item := range validation.Errors {
			fmt.Fprintf(&b, "  %s\n", item.Error())
		}
	case errors.As(err, &apiErr):
		// The backend message is shown as-is.
		message := apiErr.Message
		if message == "" {
			message = fmt.Sprintf("request failed with status %d", apiErr.Status)
		}
		b.WriteString(message)
		b.WriteString("\n")
	default:
		b.WriteString(err.Error())
		b.WriteString("\n")
	}
	return b.String()
}

func writePreflight(b *strings.Builder, e *PreflightError) {
	b.WriteString(e.Message)
	b.WriteString("\n")
	if e.Hint != "" {
		fmt.Fprintf(b, "Hint: %s\n", e.Hint)
	}
	if e.NextStep != "" {
		fmt.Fprintf(b, "Next: %s\n", e.NextStep)
	}
}
