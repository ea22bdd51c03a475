package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/approvalctl/internal/access"
	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/events"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/session"
)

var (
	loginEmail         string
	loginPasswordStdin bool

	signupName          string
	signupEmail         string
	signupRole          string
	signupPasswordStdin bool
)

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")

	signupCmd.Flags().StringVar(&signupName, "name", "", "display name")
	signupCmd.Flags().StringVarP(&signupEmail, "email", "e", "", "account email")
	signupCmd.Flags().StringVar(&signupRole, "role", "", "requested role (INITIATOR, MANAGER, FINANCE, AUDITOR)")
	signupCmd.Flags().BoolVar(&signupPasswordStdin, "password-stdin", false, "read the password from stdin")
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in",
	Long:  "Sign in with email and password. Only ACTIVE accounts get a session.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			creds, err := a.readCredentials(loginEmail, loginPasswordStdin)
			if err != nil {
				return err
			}
			_, err = runLogin(ctx, a, creds)
			return err
		})
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Request a new account",
	Long: `Request a new account. The account stays PENDING until an
administrator activates it; ADMIN cannot be requested.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			creds, err := a.readCredentials(signupEmail, signupPasswordStdin)
			if err != nil {
				return err
			}
			name := signupName
			if strings.TrimSpace(name) == "" && !IsNonInteractive() {
				if name, err = a.promptLine("Name"); err != nil {
					return err
				}
			}
			return runSignup(ctx, a, models.Signup{
				Name:     strings.TrimSpace(name),
				Email:    creds.Email,
				Password: creds.Password,
				Role:     models.Role(strings.ToUpper(strings.TrimSpace(signupRole))),
			})
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runLogout(ctx, a)
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runWhoami(ctx, a)
		})
	},
}

func (a *app) readCredentials(email string, passwordStdin bool) (api.Credentials, error) {
	var err error
	if strings.TrimSpace(email) == "" {
		if email, err = a.promptLine("Email"); err != nil {
			return api.Credentials{}, err
		}
	}

	var password string
	if passwordStdin {
		password, err = a.readLine()
	} else {
		password, err = a.promptSecret("Password")
	}
	if err != nil {
		return api.Credentials{}, err
	}
	return api.Credentials{Email: strings.TrimSpace(email), Password: password}, nil
}

type loginResult struct {
	Identity models.Identity `json:"identity"`
	Home     string          `json:"home"`
}

func runLogin(ctx context.Context, a *app, creds api.Credentials) (*session.Session, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, invalidInput(fmt.Errorf("email and password are required"))
	}

	identity, err := a.client.Login(ctx, creds)
	if err != nil {
		return nil, a.fail(ctx, "login", err)
	}
	if !identity.IsActive() {
		logger.Debug().Int64("user_id", identity.ID).Str("status", string(identity.Status)).Msg("login refused for inactive account")
		return nil, &PreflightError{
			Message: fmt.Sprintf("account is not active (status %s)", identity.Status),
			Hint:    "An administrator has to activate the account first",
			Err:     models.ErrIdentityInactive,
		}
	}

	s, err := session.New(identity)
	if err != nil {
		return nil, err
	}
	// Replacing the stored session drops any previous identity.
	if err := a.sessions.Clear(ctx); err != nil {
		return nil, err
	}
	if err := a.sessions.Save(ctx, s); err != nil {
		return nil, err
	}
	a.publish(ctx, events.SessionStarted(s.Identity()))

	if IsJSONOutput() {
		return s, WriteOutput(a.out, loginResult{Identity: s.Identity(), Home: access.HomeRoute(s.Role())})
	}
	printf(a.out, "Signed in as %s (%s)\n", s.Name(), s.Role())
	PrintNextSteps(a.out, HintContext{Action: "login", Role: s.Role()})
	return s, nil
}

func runSignup(ctx context.Context, a *app, signup models.Signup) error {
	if err := signup.Validate(); err != nil {
		return err
	}
	message, err := a.client.Signup(ctx, signup)
	if err != nil {
		return a.fail(ctx, "signup", err)
	}

	if IsJSONOutput() {
		return WriteOutput(a.out, map[string]string{"message": message})
	}
	printf(a.out, "%s\n", message)
	PrintNextSteps(a.out, HintContext{Action: "signup"})
	return nil
}

func runLogout(ctx context.Context, a *app) error {
	s := a.currentSession(ctx)

	if err := a.client.Logout(ctx); err != nil {
		logger.Warn().Err(err).Msg("remote logout failed")
	}
	if err := a.sessions.Clear(ctx); err != nil {
		return err
	}
	if err := a.contexts.Clear(); err != nil {
		logger.Debug().Err(err).Msg("failed to clear context")
	}

	if s != nil {
		a.publish(ctx, events.SessionEnded(s.UserID()))
	}
	printf(a.out, "Signed out\n")
	return nil
}

func runWhoami(ctx context.Context, a *app) error {
	s := a.currentSession(ctx)
	if s == nil {
		return loginRequired()
	}

	if IsJSONOutput() {
		return WriteOutput(a.out, loginResult{Identity: s.Identity(), Home: access.HomeRoute(s.Role())})
	}
	fmt.Fprintf(a.out, "%s <%s>\n", s.Name(), orDash(s.Email()))
	fmt.Fprintf(a.out, "  id:     %d\n", s.UserID())
	fmt.Fprintf(a.out, "  role:   %s\n", s.Role())
	fmt.Fprintf(a.out, "  status: %s\n", s.Status())
	return nil
}
