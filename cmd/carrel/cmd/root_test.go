package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	carrelerrors "github.com/carrelhq/carrel/internal/errors"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCmd_HelpListsSubcommands(t *testing.T) {
	// Given the root command
	// When help is requested
	out, err := execute(t, "--help")
	require.NoError(t, err)

	// Then every subcommand is listed
	for _, name := range []string{
		"ingest", "search", "feedback", "export",
		"stats", "clear", "models", "workspaces", "version",
	} {
		assert.Contains(t, out, name)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "carrel")
}

func TestSearchCmd_RejectsUnknownFormat(t *testing.T) {
	// Given a search invocation with a bad --format value
	// When executed
	_, err := execute(t, "search", "entropy", "--format", "xml")

	// Then it fails before touching the workspace
	require.Error(t, err)
	assert.Equal(t, carrelerrors.ErrCodeInvalidInput, carrelerrors.GetCode(err))
}

func TestFeedbackCmd_RejectsNonNumericID(t *testing.T) {
	_, err := execute(t, "feedback", "not-a-number")

	require.Error(t, err)
	assert.Equal(t, carrelerrors.ErrCodeInvalidInput, carrelerrors.GetCode(err))
}

func TestFeedbackCmd_RejectsNonPositiveID(t *testing.T) {
	_, err := execute(t, "feedback", "0")

	require.Error(t, err)
	assert.Equal(t, carrelerrors.ErrCodeInvalidInput, carrelerrors.GetCode(err))
}

func TestSearchCmd_RequiresQueryArgument(t *testing.T) {
	_, err := execute(t, "search")
	require.Error(t, err)
}
