package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with an empty environment and returns
// stdout and the command error.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIEnv(t, map[string]string{}, args...)
}

func runCLIEnv(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{Getenv: func(k string) string { return env[k] }}
	cmd := newRootCommand(opts)

	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "nodecheck", cmd.Use)
	assert.Contains(t, cmd.Long, "checking jobs")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, cmdName := range []string{"import", "check", "watch", "checkers", "test"} {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("db"))
}

func TestTargetFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"check", "watch"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		for _, flag := range []string{"alt", "select", "import"} {
			assert.NotNil(t, sub.Flags().Lookup(flag), "%s --%s", name, flag)
		}
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := runCLI(t, "checkers", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestInvalidEnvironmentOverride(t *testing.T) {
	_, err := runCLIEnv(t, map[string]string{"NODECHECK_LOG_LEVEL": "loud"}, "checkers")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMissingConfigFile(t *testing.T) {
	_, err := runCLI(t, "checkers", "--config", "/nonexistent/nodecheck.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestExecute_ReportsErrorsInFormat(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := Execute([]string{"check", "bogus:x", "--format", "json"}, stdout, stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stdout.String(), `"status":"error"`)
	assert.Contains(t, stdout.String(), "INVALID_TARGET")

	stdout.Reset()
	stderr.Reset()
	code = Execute([]string{"check", "bogus:x"}, stdout, stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Error [E_COMMAND]")
}

func TestExecute_Success(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	code := Execute([]string{"checkers"}, stdout, stderr)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout.String(), "required-name")
}
