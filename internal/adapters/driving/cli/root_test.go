package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pdfrag/internal/logger"
)

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "pdfrag", rootCmd.Use)
}

func TestRootCmd_HasVerboseFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag, "verbose flag should exist")
	assert.Equal(t, "v", flag.Shorthand)
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"ingest", "query", "runs", "serve", "config", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_VerboseEnablesLogger(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer logger.SetVerbose(false)

	rootCmd.SetOut(new(bytes.Buffer))
	rootCmd.SetArgs([]string{"version", "--verbose"})

	require.NoError(t, rootCmd.Execute())
	assert.True(t, logger.IsVerbose())
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("")
	assert.Equal(t, original, version)

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

func TestNotConfigured(t *testing.T) {
	original := setupErr
	defer func() { setupErr = original }()

	setupErr = nil
	assert.EqualError(t, notConfigured("query"), "query service not configured")

	cause := errors.New("no embedding provider")
	setupErr = cause
	err := notConfigured("query")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "query service not configured")
}
