package cli

import (
	"fmt"
	"io"

	"github.com/tOgg1/approvalctl/internal/access"
	"github.com/tOgg1/approvalctl/internal/models"
)

// HintContext provides context for generating relevant next steps.
type HintContext struct {
	// Action is the command that was executed (e.g., "login", "submit").
	Action string

	// Role is the signed-in role, when known.
	Role models.Role

	// RequestID is the request involved (if any).
	RequestID int64

	// WorkflowID is the workflow involved (if any).
	WorkflowID int64
}

// PrintNextSteps prints contextual next steps after a successful command.
// Does nothing if JSON or quiet output is enabled.
func PrintNextSteps(w io.Writer, ctx HintContext) {
	if IsJSONOutput() || IsQuiet() {
		return
	}

	hints := generateHints(ctx)
	if len(hints) == 0 {
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	for _, hint := range hints {
		fmt.Fprintf(w, "  %s\n", hint)
	}
}

func generateHints(ctx HintContext) []string {
	switch ctx.Action {
	case "login":
		return []string{
			homeCommand(ctx.Role) + "  # your dashboard",
			"approvalctl ui  # interactive dashboard",
		}
	case "signup":
		return []string{"approvalctl login  # once an administrator activates the account"}
	case "workflow_create", "workflow_update":
		return []string{
			fmt.Sprintf("approvalctl workflows show %d", ctx.WorkflowID),
			fmt.Sprintf("approvalctl workflows export %d -o workflow.yaml", ctx.WorkflowID),
		}
	case "submit":
		return []string{
			"approvalctl requests list",
			fmt.Sprintf("approvalctl requests delete %d  # withdraw it", ctx.RequestID),
		}
	case "approve", "reject":
		return []string{"approvalctl queue list"}
	default:
		return nil
	}
}

// homeCommand maps a role's dashboard route to the command that lists it.
func homeCommand(role models.Role) string {
	switch access.HomeRoute(role) {
	case "/admin":
		return "approvalctl workflows list"
	case "/initiator":
		return "approvalctl requests list"
	case "/manager", "/finance":
		return "approvalctl queue list"
	case "/auditor":
		return "approvalctl audit summary"
	default:
		return "approvalctl login"
	}
}
