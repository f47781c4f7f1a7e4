package cmd_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"taskdash/backend"
	"taskdash/cmd/taskdash/cmd"
	"taskdash/internal/credentials"
	"taskdash/internal/testutil"
)

func seedAliceTasks(c *testutil.CLITest) []backend.Task {
	due := time.Now().AddDate(0, 0, 5)
	return c.API.Seed(
		backend.Task{Title: "Quarterly report", Description: "numbers for Q3", Status: backend.StatusOpen, Priority: backend.PriorityHigh, DueDate: &due, Owner: testutil.UserName},
		backend.Task{Title: "Water plants", Status: backend.StatusInProgress, Priority: backend.PriorityLow, Owner: testutil.UserName},
		backend.Task{Title: "Admin only", Status: backend.StatusOpen, Priority: backend.PriorityMedium, Owner: testutil.AdminName},
	)
}

// =============================================================================
// Root command
// =============================================================================

// TestHelpFlag verifies --help lists the subcommands
func TestHelpFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := cmd.Execute([]string{"--help"}, &stdout, &stderr, nil)

	testutil.AssertExitCode(t, exitCode, 0)
	out := stdout.String()
	for _, want := range []string{"Usage:", "taskdash", "login", "list", "stats"} {
		testutil.AssertContains(t, out, want)
	}
}

// TestVersionFlag verifies --version prints the build version
func TestVersionFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	exitCode := cmd.Execute([]string{"--version"}, &stdout, &stderr, nil)

	testutil.AssertExitCode(t, exitCode, 0)
	testutil.AssertContains(t, stdout.String(), cmd.Version)
}

// TestUnknownCommand verifies errors go to stderr with exit code 1
func TestUnknownCommand(t *testing.T) {
	c := testutil.NewCLITest(t)
	_, stderr := c.ExecuteAndFail("frobnicate")
	testutil.AssertContains(t, stderr, "Error:")
}

func TestConfigPath(t *testing.T) {
	c := testutil.NewCLITest(t)
	out := c.MustExecute("config", "path")
	testutil.AssertContains(t, out, c.ConfigPath())
}

// =============================================================================
// Session commands
// =============================================================================

func TestLoginAndWhoami(t *testing.T) {
	c := testutil.NewCLITest(t)

	stdout, _, code := c.ExecuteWithInput(testutil.TestPassword+"\n", "login", "-u", testutil.UserName, "--password-stdin")
	testutil.AssertExitCode(t, code, 0)
	testutil.AssertContains(t, stdout, "Logged in as "+testutil.UserFullName)

	out := c.MustExecute("whoami")
	testutil.AssertContains(t, out, testutil.UserFullName+" (AE)")
	testutil.AssertContains(t, out, "Username: alice")

	var resp struct {
		Username string   `json:"username"`
		Initials string   `json:"initials"`
		Roles    []string `json:"roles"`
		Theme    string   `json:"theme"`
	}
	if err := json.Unmarshal([]byte(c.MustExecute("whoami", "--json")), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Username != testutil.UserName || resp.Initials != "AE" || resp.Theme != "light" {
		t.Errorf("unexpected whoami response %+v", resp)
	}
	if len(resp.Roles) != 1 || resp.Roles[0] != "USER" {
		t.Errorf("expected roles [USER], got %v", resp.Roles)
	}
}

func TestLoginPromptsForUsername(t *testing.T) {
	c := testutil.NewCLITest(t)

	stdout, stderr, code := c.ExecuteWithInput("alice\n"+testutil.TestPassword+"\n", "login", "--password-stdin")
	testutil.AssertExitCode(t, code, 0)
	testutil.AssertContains(t, stderr, "Username: ")
	testutil.AssertContains(t, stdout, "Logged in as")
}

func TestLoginInvalidCredentials(t *testing.T) {
	c := testutil.NewCLITest(t)

	_, stderr, code := c.ExecuteWithInput("wrong-password\n", "login", "-u", testutil.UserName, "--password-stdin")
	testutil.AssertExitCode(t, code, 1)
	testutil.AssertContains(t, stderr, "Invalid credentials")
	testutil.AssertContains(t, stderr, "Verify your username and password")

	_, stderr = c.ExecuteAndFail("whoami")
	testutil.AssertContains(t, stderr, "not logged in")
}

func TestLogout(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.Login(testutil.UserName)

	testutil.AssertContains(t, c.MustExecute("logout"), "Logged out")
	testutil.AssertContains(t, c.MustExecute("logout"), "Not logged in")

	_, stderr := c.ExecuteAndFail("list")
	testutil.AssertContains(t, stderr, "Run 'taskdash login' first")
}

func TestSignup(t *testing.T) {
	c := testutil.NewCLITest(t)

	stdout, stderr, code := c.ExecuteWithInput("password1\npassword1\n",
		"signup", "--name", "Bob Builder", "--email", "bob@example.com", "-u", "bob", "--password-stdin")
	if code != 0 {
		t.Fatalf("signup failed: %s", stderr)
	}
	testutil.AssertContains(t, stdout, "Signed up and logged in as Bob Builder")
	testutil.AssertContains(t, c.MustExecute("whoami"), "Bob Builder (BB)")
}

func TestSignupPasswordMismatch(t *testing.T) {
	c := testutil.NewCLITest(t)

	_, stderr, code := c.ExecuteWithInput("password1\npassword2\n",
		"signup", "--name", "Bob Builder", "--email", "bob@example.com", "-u", "bob", "--password-stdin")
	testutil.AssertExitCode(t, code, 1)
	testutil.AssertContains(t, stderr, "passwords do not match")
	if n := c.API.CountRequests(http.MethodPost, "/auth/signup"); n != 0 {
		t.Errorf("expected no signup request, got %d", n)
	}
}

func TestSessionExpired(t *testing.T) {
	c := testutil.NewCLITest(t)
	seedAliceTasks(c)
	c.Login(testutil.UserName)
	c.API.RevokeAll()

	_, stderr := c.ExecuteAndFail("list")
	testutil.AssertContains(t, stderr, "Run 'taskdash login' to start a new session")
}

func TestTokenFromEnvironment(t *testing.T) {
	c := testutil.NewCLITest(t)
	seedAliceTasks(c)
	c.SetEnv(credentials.TokenEnvVar, c.API.IssueToken(testutil.UserName))

	out := c.MustExecute("list")
	testutil.AssertContains(t, out, "Quarterly report")
}

func TestThemeCommand(t *testing.T) {
	c := testutil.NewCLITest(t)

	testutil.AssertContains(t, c.MustExecute("theme"), "light")
	testutil.AssertContains(t, c.MustExecute("theme", "dark"), "Theme set to dark")
	testutil.AssertContains(t, c.MustExecute("theme"), "dark")

	_, stderr := c.ExecuteAndFail("theme", "blue")
	testutil.AssertContains(t, stderr, "invalid theme: blue")
}

// TestThemeSurvivesLogout checks the preference is kept when the session is cleared
func TestThemeSurvivesLogout(t *testing.T) {
	c := testutil.NewCLITest(t)
	c.Login(testutil.UserName)
	c.MustExecute("theme", "dark")
	c.MustExecute("logout")

	testutil.AssertContains(t, c.MustExecute("theme"), "dark")
}
