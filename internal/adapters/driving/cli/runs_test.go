package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunsCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])
	assert.True(t, names["resume"])
}

func TestRunsListCmd_HasLimitFlag(t *testing.T) {
	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "20", flag.DefValue)
}

func TestRunsList_Table(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"runs", "list", "-n", "7"})

	err := rootCmd.Execute()

	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "ingest_pdf")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "run-2")
	assert.Contains(t, out, "failed")
	assert.Equal(t, 7, ts.runs.lastLimit)
}

func TestRunsList_Empty(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.runs.runs = nil

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"runs", "list"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "No runs found.")
}

func TestRunsList_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"runs", "list", "--json"})

	require.NoError(t, rootCmd.Execute())

	var out []runJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "run-1", out[0].ID)
	assert.JSONEq(t, `{"ingested":3}`, string(out[0].Output))
	assert.Equal(t, "generate-answer: connection refused", out[1].Error)
}

func TestRunsShow(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"runs", "show", "run-1"})

	require.NoError(t, rootCmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "Run:         run-1")
	assert.Contains(t, out, "Function:    ingest_pdf")
	assert.Contains(t, out, `Output:      {"ingested":3}`)
	assert.Contains(t, out, "load-and-chunk")
	assert.Contains(t, out, "attempts=2")
}

func TestRunsShow_NoSteps(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"runs", "show", "run-2"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Error:       generate-answer: connection refused")
	assert.Contains(t, buf.String(), "No completed steps.")
}

func TestRunsShow_NotFound(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"runs", "show", "missing"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found: missing")
}

func TestRunsResume(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"runs", "resume", "run-2", "--json"})

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, []string{"run-2"}, ts.runs.resumed)

	var out runJSON
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "run-2", out.ID)
}

func TestRunsResume_ServiceError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.runs.err = errors.New("database is locked")

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"runs", "resume", "run-1"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "resume failed: database is locked")
}
