// Package testutil provides shared test utilities for CLI testing across packages.
// This enables co-located CLI tests while maintaining consistent test infrastructure.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"taskdash/cmd/taskdash/cmd"
	"taskdash/internal/credentials"
)

// testConfigTemplate keeps retries and timeouts short so failure paths finish quickly.
const testConfigTemplate = `api:
  base_url: %q
  timeout: "5s"
  max_retries: 1
  retry_base_delay: "10ms"
store:
  path: %q
logging:
  background_enabled: false
`

// CLITest provides a test helper for running CLI commands in isolation
// against a fake task API.
type CLITest struct {
	t          *testing.T
	cfg        *cmd.Config
	tmpDir     string
	configPath string
	env        map[string]string

	// API is the fake service the CLI talks to.
	API *APIServer
	// Keyring backs the credential manager when use_keyring or TASKDASH_TOKEN is in play.
	Keyring *credentials.MockKeyring
}

// NewCLITest creates a CLI test helper with its own config file, session
// store and API server.
func NewCLITest(t *testing.T) *CLITest {
	t.Helper()

	tmpDir := t.TempDir()
	// Keep the sample config, caches and logs out of the real home directory.
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmpDir, "data"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmpDir, "cache"))

	c := &CLITest{
		t:          t,
		tmpDir:     tmpDir,
		configPath: filepath.Join(tmpDir, "config.yaml"),
		env:        make(map[string]string),
		API:        NewAPIServer(t),
		Keyring:    credentials.NewMockKeyring(),
	}
	c.SetFullConfig(fmt.Sprintf(testConfigTemplate, c.API.URL, c.StorePath()))

	c.cfg = &cmd.Config{
		ConfigPath: c.configPath,
		Keyring:    c.Keyring,
		Getenv:     func(key string) string { return c.env[key] },
	}
	return c
}

// Config returns the test configuration.
func (c *CLITest) Config() *cmd.Config {
	return c.cfg
}

// TmpDir returns the temporary directory used by this test.
func (c *CLITest) TmpDir() string {
	return c.tmpDir
}

// StorePath returns the session store path written into the config.
func (c *CLITest) StorePath() string {
	return filepath.Join(c.tmpDir, "session.db")
}

// ConfigPath returns the path to the config file.
func (c *CLITest) ConfigPath() string {
	return c.configPath
}

// SetFullConfig replaces the config file.
func (c *CLITest) SetFullConfig(yamlContent string) {
	c.t.Helper()
	if err := os.WriteFile(c.configPath, []byte(yamlContent), 0644); err != nil {
		c.t.Fatalf("failed to write config file: %v", err)
	}
}

// AppendConfig adds YAML sections to the config file.
func (c *CLITest) AppendConfig(yamlContent string) {
	c.t.Helper()
	data, err := os.ReadFile(c.configPath)
	if err != nil {
		c.t.Fatalf("failed to read config file: %v", err)
	}
	c.SetFullConfig(string(data) + yamlContent)
}

// SetEnv sets a variable seen by the credential manager only.
func (c *CLITest) SetEnv(key, value string) {
	c.env[key] = value
}

// SetNow pins the CLI clock.
func (c *CLITest) SetNow(now time.Time) {
	c.cfg.Now = func() time.Time { return now }
}

// Execute runs a CLI command with the given arguments and returns stdout, stderr, and exit code.
func (c *CLITest) Execute(args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()
	return c.ExecuteWithInput("", args...)
}

// ExecuteWithInput is Execute with input fed to prompts and --password-stdin.
func (c *CLITest) ExecuteWithInput(input string, args ...string) (stdout, stderr string, exitCode int) {
	c.t.Helper()

	var stdoutBuf, stderrBuf bytes.Buffer
	c.cfg.Stdin = strings.NewReader(input)
	exitCode = cmd.Execute(args, &stdoutBuf, &stderrBuf, c.cfg)
	c.cfg.Stdin = nil
	return stdoutBuf.String(), stderrBuf.String(), exitCode
}

// MustExecute runs a CLI command and fails the test if exit code is non-zero.
func (c *CLITest) MustExecute(args ...string) string {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode != 0 {
		c.t.Fatalf("expected exit code 0, got %d: stdout=%s stderr=%s", exitCode, stdout, stderr)
	}
	return stdout
}

// ExecuteAndFail runs a CLI command and fails the test if exit code is zero.
func (c *CLITest) ExecuteAndFail(args ...string) (stdout, stderr string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.Execute(args...)
	if exitCode == 0 {
		c.t.Fatalf("expected non-zero exit code, got 0: stdout=%s", stdout)
	}
	return stdout, stderr
}

// Login logs username in with TestPassword through the login command.
func (c *CLITest) Login(username string) {
	c.t.Helper()

	stdout, stderr, exitCode := c.ExecuteWithInput(TestPassword+"\n", "login", "-u", username, "--password-stdin")
	if exitCode != 0 {
		c.t.Fatalf("login as %s failed (%d): stdout=%s stderr=%s", username, exitCode, stdout, stderr)
	}
}

// AssertContains fails the test if output doesn't contain expected string.
func AssertContains(t *testing.T, output, expected string) {
	t.Helper()
	if !strings.Contains(output, expected) {
		t.Errorf("expected output to contain %q, got:\n%s", expected, output)
	}
}

// AssertNotContains fails the test if output contains unexpected string.
func AssertNotContains(t *testing.T, output, unexpected string) {
	t.Helper()
	if strings.Contains(output, unexpected) {
		t.Errorf("expected output NOT to contain %q, got:\n%s", unexpected, output)
	}
}

// AssertExitCode fails the test if exit code doesn't match expected.
func AssertExitCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("expected exit code %d, got %d", want, got)
	}
}
